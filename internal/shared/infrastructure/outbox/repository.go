package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// Repository persists outbox messages.
type Repository interface {
	// SaveBatch stores messages, inside the caller's transaction when ctx
	// carries one.
	SaveBatch(ctx context.Context, msgs []*Message) error
	// Pending returns unpublished, live messages due at now, oldest first.
	Pending(ctx context.Context, now time.Time, limit int) ([]*Message, error)
	MarkPublished(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, reason string, nextRetryAt time.Time) error
	MarkDead(ctx context.Context, id int64, reason string, at time.Time) error
	// Prune deletes messages published before the cutoff.
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// SQLRepository implements Repository on any database.Connection.
type SQLRepository struct {
	conn database.Connection
}

func NewSQLRepository(conn database.Connection) *SQLRepository {
	return &SQLRepository{conn: conn}
}

func (r *SQLRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	for _, m := range msgs {
		_, err := exec.Exec(ctx, `
			INSERT INTO outbox (event_id, aggregate_type, aggregate_id, routing_key, payload, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.EventID.String(), m.AggregateType, m.AggregateID.String(), m.RoutingKey,
			[]byte(m.Payload), []byte(m.Metadata), m.CreatedAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("save outbox message %s: %w", m.EventID, err)
		}
	}
	return nil
}

func (r *SQLRepository) Pending(ctx context.Context, now time.Time, limit int) ([]*Message, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, `
		SELECT id, event_id, aggregate_type, aggregate_id, routing_key, payload, metadata,
		       created_at, retry_count, last_error, next_retry_at
		FROM outbox
		WHERE published_at IS NULL
		  AND dead_lettered_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY id
		LIMIT ?`, now.UnixNano(), limit)
	if err != nil {
		return nil, fmt.Errorf("query pending outbox: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var (
			m                 Message
			eventID, aggID    string
			payload, metadata []byte
			created           int64
			lastError         *string
			nextRetry         *int64
		)
		if err := rows.Scan(&m.ID, &eventID, &m.AggregateType, &aggID, &m.RoutingKey,
			&payload, &metadata, &created, &m.RetryCount, &lastError, &nextRetry); err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		if m.EventID, err = uuid.Parse(eventID); err != nil {
			return nil, fmt.Errorf("outbox message %d: %w", m.ID, err)
		}
		if m.AggregateID, err = uuid.Parse(aggID); err != nil {
			return nil, fmt.Errorf("outbox message %d: %w", m.ID, err)
		}
		m.Payload, m.Metadata = payload, metadata
		m.CreatedAt = time.Unix(0, created).UTC()
		if lastError != nil {
			m.LastError = *lastError
		}
		if nextRetry != nil {
			t := time.Unix(0, *nextRetry).UTC()
			m.NextRetryAt = &t
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

func (r *SQLRepository) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	return r.exec(ctx, `UPDATE outbox SET published_at = ? WHERE id = ?`, at.UnixNano(), id)
}

func (r *SQLRepository) MarkFailed(ctx context.Context, id int64, reason string, nextRetryAt time.Time) error {
	return r.exec(ctx,
		`UPDATE outbox SET retry_count = retry_count + 1, last_error = ?, next_retry_at = ? WHERE id = ?`,
		reason, nextRetryAt.UnixNano(), id)
}

func (r *SQLRepository) MarkDead(ctx context.Context, id int64, reason string, at time.Time) error {
	return r.exec(ctx,
		`UPDATE outbox SET retry_count = retry_count + 1, last_error = ?, dead_lettered_at = ? WHERE id = ?`,
		reason, at.UnixNano(), id)
}

func (r *SQLRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune outbox: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLRepository) exec(ctx context.Context, query string, args ...any) error {
	if _, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update outbox: %w", err)
	}
	return nil
}
