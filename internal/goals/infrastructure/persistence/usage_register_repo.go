// Package persistence stores usage registers in SQLite or PostgreSQL.
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/cadence/internal/goals/domain"
	planning "github.com/felixgeelhaar/cadence/internal/planning/domain"
	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/database"
)

// UsageRegisterRepository implements domain.Repository over a
// database.Connection. Times are stored as Unix nanoseconds so both
// backends share one schema and one set of statements.
type UsageRegisterRepository struct {
	conn database.Connection
}

// NewUsageRegisterRepository creates a repository on conn.
func NewUsageRegisterRepository(conn database.Connection) *UsageRegisterRepository {
	return &UsageRegisterRepository{conn: conn}
}

const selectRegister = `
	SELECT id, activity_id, goal_id, epoch, timezone, version, created_at, updated_at
	FROM usage_registers`

// Save upserts the register row, guarded by its version, then every bucket.
// Callers run it inside a unit of work so the two stay consistent.
func (r *UsageRegisterRepository) Save(ctx context.Context, register *domain.UsageRegister) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	epoch := register.Epoch()

	res, err := exec.Exec(ctx, `
		INSERT INTO usage_registers (id, activity_id, goal_id, epoch, timezone, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			version = excluded.version,
			updated_at = excluded.updated_at
		WHERE usage_registers.version = ?`,
		register.ID().String(),
		register.ActivityID().String(),
		register.GoalID().String(),
		epoch.UnixNano(),
		epoch.Location().String(),
		register.Version()+1,
		register.CreatedAt().UnixNano(),
		register.UpdatedAt().UnixNano(),
		register.Version(),
	)
	if err != nil {
		return fmt.Errorf("save usage register: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s at version %d", domain.ErrRegisterConflict, register.ID(), register.Version())
	}

	for _, b := range register.Buckets() {
		_, err := exec.Exec(ctx, `
			INSERT INTO usage_buckets (register_id, unit, bucket_index, quantity)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (register_id, unit, bucket_index) DO UPDATE SET quantity = excluded.quantity`,
			register.ID().String(), int(b.Unit), int64(b.Index), int64(b.Quantity),
		)
		if err != nil {
			return fmt.Errorf("save usage bucket %s/%d: %w", b.Unit, b.Index, err)
		}
	}

	register.IncrementVersion()
	return nil
}

func (r *UsageRegisterRepository) FindByActivityAndGoal(
	ctx context.Context,
	activityID planning.ActivityID,
	goalID domain.GoalID,
) (*domain.UsageRegister, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	row := exec.QueryRow(ctx, selectRegister+` WHERE activity_id = ? AND goal_id = ?`,
		activityID.String(), goalID.String())

	rec, err := scanRegister(row)
	if database.IsNoRows(err) {
		return nil, domain.ErrRegisterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find usage register: %w", err)
	}
	return r.load(ctx, exec, rec)
}

func (r *UsageRegisterRepository) FindAll(ctx context.Context) ([]*domain.UsageRegister, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, selectRegister+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list usage registers: %w", err)
	}

	var recs []registerRecord
	for rows.Next() {
		rec, err := scanRegister(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan usage register: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	// SQLite holds a single connection, so the cursor is released before
	// the buckets are read.
	_ = rows.Close()

	out := make([]*domain.UsageRegister, 0, len(recs))
	for _, rec := range recs {
		reg, err := r.load(ctx, exec, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, reg)
	}
	return out, nil
}

type registerRecord struct {
	id, activityID, goalID string
	epoch                  int64
	timezone               string
	version                int
	createdAt, updatedAt   int64
}

func scanRegister(row database.Row) (registerRecord, error) {
	var rec registerRecord
	err := row.Scan(&rec.id, &rec.activityID, &rec.goalID, &rec.epoch, &rec.timezone,
		&rec.version, &rec.createdAt, &rec.updatedAt)
	return rec, err
}

func (r *UsageRegisterRepository) load(ctx context.Context, exec database.Executor, rec registerRecord) (*domain.UsageRegister, error) {
	id, err := uuid.Parse(rec.id)
	if err != nil {
		return nil, fmt.Errorf("usage register id: %w", err)
	}
	activityID, err := planning.ParseActivityID(rec.activityID)
	if err != nil {
		return nil, fmt.Errorf("usage register %s: %w", rec.id, err)
	}
	goalUUID, err := uuid.Parse(rec.goalID)
	if err != nil {
		return nil, fmt.Errorf("usage register %s goal: %w", rec.id, err)
	}
	loc, err := time.LoadLocation(rec.timezone)
	if err != nil {
		return nil, fmt.Errorf("usage register %s timezone: %w", rec.id, err)
	}

	rows, err := exec.Query(ctx,
		`SELECT unit, bucket_index, quantity FROM usage_buckets WHERE register_id = ? ORDER BY unit, bucket_index`,
		rec.id)
	if err != nil {
		return nil, fmt.Errorf("load usage buckets: %w", err)
	}
	defer rows.Close()

	var buckets []domain.Bucket
	for rows.Next() {
		var unit int
		var index, quantity int64
		if err := rows.Scan(&unit, &index, &quantity); err != nil {
			return nil, fmt.Errorf("scan usage bucket: %w", err)
		}
		buckets = append(buckets, domain.Bucket{
			Unit:     domain.TimeUnit(unit),
			Index:    uint64(index),    // #nosec G115 -- written from uint64
			Quantity: uint32(quantity), // #nosec G115 -- written from uint32
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return domain.RehydrateUsageRegister(
		id,
		activityID,
		domain.GoalID(goalUUID),
		time.Unix(0, rec.epoch).In(loc),
		buckets,
		time.Unix(0, rec.createdAt).UTC(),
		time.Unix(0, rec.updatedAt).UTC(),
		rec.version,
	), nil
}
