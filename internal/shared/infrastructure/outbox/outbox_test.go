package outbox

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cadence/internal/shared/application"
	"github.com/felixgeelhaar/cadence/internal/shared/domain"
	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/cadence/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/migrations"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	return m.Called(routingKey, payload).Error(0)
}

func (m *mockPublisher) Close() error { return nil }

type planned struct {
	domain.BaseEvent
	Actions int `json:"actions"`
}

func newEvent(key string, actions int) *planned {
	e := &planned{BaseEvent: domain.NewBaseEvent(uuid.New(), "Plan", key), Actions: actions}
	e.SetMetadata(application.NewEventMetadata(context.Background(), "test"))
	return e
}

func openRepo(t *testing.T) (*SQLRepository, database.Connection) {
	t.Helper()
	ctx := context.Background()
	conn, err := database.Open(ctx, database.Config{SQLitePath: filepath.Join(t.TempDir(), "outbox.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, migrations.Run(ctx, conn))
	return NewSQLRepository(conn), conn
}

func TestNewMessage(t *testing.T) {
	e := newEvent("planning.plan.generated", 3)

	msg, err := NewMessage(e)
	require.NoError(t, err)

	assert.Equal(t, e.EventID(), msg.EventID)
	assert.Equal(t, "Plan", msg.AggregateType)
	assert.JSONEq(t, `{"actions":3}`, string(msg.Payload))
	assert.Equal(t, "test", msg.EventMetadata().Source)
	assert.False(t, msg.IsPublished())
}

func TestSQLRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo, conn := openRepo(t)
	now := time.Now()

	msgs, err := NewMessages([]domain.DomainEvent{newEvent("a.b.c", 1), newEvent("a.b.d", 2)})
	require.NoError(t, err)

	// saved inside a rolled back unit of work: nothing persists
	uow := database.NewUnitOfWork(conn)
	_ = application.WithUnitOfWork(ctx, uow, func(ctx context.Context) error {
		require.NoError(t, repo.SaveBatch(ctx, msgs))
		return errors.New("abort")
	})
	pending, err := repo.Pending(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, repo.SaveBatch(ctx, msgs))
	pending, err = repo.Pending(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "a.b.c", pending[0].RoutingKey)
	assert.Equal(t, msgs[1].EventID, pending[1].EventID)

	require.NoError(t, repo.MarkPublished(ctx, pending[0].ID, now))
	require.NoError(t, repo.MarkFailed(ctx, pending[1].ID, "broker down", now.Add(time.Minute)))

	pending, err = repo.Pending(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "failed message is not due yet")

	pending, err = repo.Pending(ctx, now.Add(2*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)
	assert.Equal(t, "broker down", pending[0].LastError)

	require.NoError(t, repo.MarkDead(ctx, pending[0].ID, "gave up", now))
	pending, err = repo.Pending(ctx, now.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	pruned, err := repo.Prune(ctx, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)
}

func TestProcessor_Drain(t *testing.T) {
	ctx := context.Background()
	repo, _ := openRepo(t)
	msgs, err := NewMessages([]domain.DomainEvent{newEvent("ok.one", 1), newEvent("bad.one", 2), newEvent("ok.two", 3)})
	require.NoError(t, err)
	require.NoError(t, repo.SaveBatch(ctx, msgs))

	pub := new(mockPublisher)
	pub.On("Publish", "ok.one", mock.Anything).Return(nil)
	pub.On("Publish", "ok.two", mock.Anything).Return(nil)
	pub.On("Publish", "bad.one", mock.Anything).Return(errors.New("unroutable"))

	config := DefaultProcessorConfig()
	config.BatchSize = 2
	config.MaxRetries = 2
	p := NewProcessor(repo, pub, config, nil)

	published, err := p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, published)
	assert.Equal(t, Stats{Published: 2, Failed: 1, LastError: "unroutable"}, p.Stats())

	// second attempt reaches MaxRetries and dead-letters
	p.now = func() time.Time { return time.Now().Add(time.Hour) }
	published, err = p.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, published)
	assert.Equal(t, uint64(1), p.Stats().Dead)

	pending, err := repo.Pending(ctx, time.Now().Add(24*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessor_Backoff(t *testing.T) {
	p := NewProcessor(nil, nil, ProcessorConfig{RetryBackoffBase: time.Second, RetryBackoffMax: 10 * time.Second}, nil)

	assert.Equal(t, time.Second, p.backoff(1))
	assert.Equal(t, 4*time.Second, p.backoff(3))
	assert.Equal(t, 10*time.Second, p.backoff(30))
}

func TestProcessor_PublishRate(t *testing.T) {
	ctx := context.Background()
	repo, _ := openRepo(t)
	events := make([]domain.DomainEvent, 0, 4)
	for i := range 4 {
		events = append(events, newEvent("ok.rated", i))
	}
	msgs, err := NewMessages(events)
	require.NoError(t, err)
	require.NoError(t, repo.SaveBatch(ctx, msgs))

	pub := new(mockPublisher)
	pub.On("Publish", "ok.rated", mock.Anything).Return(nil)

	config := DefaultProcessorConfig()
	config.PublishRate = 2
	p := NewProcessor(repo, pub, config, nil)

	start := time.Now()
	published, err := p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, published)
	// a burst of two, then two more at 2/s
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
}

func mustMessages(t *testing.T, events ...domain.DomainEvent) []*Message {
	t.Helper()
	msgs, err := NewMessages(events)
	require.NoError(t, err)
	return msgs
}

func TestPruner(t *testing.T) {
	ctx := context.Background()
	repo, _ := openRepo(t)
	require.NoError(t, repo.SaveBatch(ctx, mustMessages(t, newEvent("a.old", 1), newEvent("a.new", 2))))
	pending, err := repo.Pending(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	now := time.Now()
	require.NoError(t, repo.MarkPublished(ctx, pending[0].ID, now.Add(-48*time.Hour)))
	require.NoError(t, repo.MarkPublished(ctx, pending[1].ID, now.Add(-time.Hour)))

	pruner := NewPruner(repo, 24*time.Hour, nil)
	pruner.now = func() time.Time { return now }
	assert.Equal(t, now.Add(-24*time.Hour), pruner.Cutoff())

	n, err := pruner.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = pruner.Prune(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPruner_Run(t *testing.T) {
	repo, _ := openRepo(t)
	pruner := NewPruner(repo, time.Hour, nil)

	err := pruner.Run(context.Background(), "every tuesday")
	assert.ErrorContains(t, err, "invalid prune schedule")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = pruner.Run(ctx, "@hourly")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
