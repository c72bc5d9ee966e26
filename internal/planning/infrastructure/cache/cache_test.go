package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cadence/internal/planning/domain"
)

type fakeClient struct {
	data     map[string][]byte
	ttls     map[string]time.Duration
	err      error
	getCalls int
}

func newFakeClient() *fakeClient {
	return &fakeClient{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeClient) Get(_ context.Context, key string) *redis.StringCmd {
	f.getCalls++
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeClient) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.data[key] = value.([]byte)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func sampleSchedule(t *testing.T) *domain.Schedule {
	t.Helper()
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	cycle, err := domain.NewCycle(domain.NewDate(2024, time.March, 4), 7)
	require.NoError(t, err)

	run, read := domain.ActivityIDFromName("Run"), domain.ActivityIDFromName("Read")
	s := domain.NewSchedule(cycle, run, read)
	start := time.Date(2024, time.March, 4, 7, 0, 0, 0, berlin)
	for i := range 3 {
		span, err := domain.NewDateTimeRange(start.AddDate(0, 0, i), start.AddDate(0, 0, i).Add(45*time.Minute))
		require.NoError(t, err)
		s.Place(domain.NewAction(run, span))
	}
	s.AddWarning("Read: no minimum, scheduled 0s of 2h0m0s")
	return s
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := sampleSchedule(t)

	data, err := encode(s)
	require.NoError(t, err)
	got, err := decode(data)
	require.NoError(t, err)

	assert.True(t, s.Equal(got))
	assert.Equal(t, s.ActivityIDs(), got.ActivityIDs())
	assert.Equal(t, s.Warnings(), got.Warnings())
	assert.Empty(t, got.Actions(domain.ActivityIDFromName("Read")))
}

func TestRedisCache_GetSet(t *testing.T) {
	client := newFakeClient()
	c := NewRedisCache(client, DefaultConfig(), nil)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err, "a miss is not a failure")
	assert.False(t, ok)

	s := sampleSchedule(t)
	require.NoError(t, c.Set(ctx, "k", s))
	assert.Equal(t, 24*time.Hour, client.ttls["k"])

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, s.Equal(got))
}

func TestRedisCache_CorruptEntryIsMiss(t *testing.T) {
	client := newFakeClient()
	client.data["k"] = []byte("{not json")
	c := NewRedisCache(client, DefaultConfig(), nil)

	_, ok, err := c.Get(context.Background(), "k")

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_BreakerOpens(t *testing.T) {
	client := newFakeClient()
	client.err = errors.New("connection refused")
	c := NewRedisCache(client, Config{FailureThreshold: 2, OpenTimeout: time.Minute}, nil)
	ctx := context.Background()

	for range 2 {
		_, _, err := c.Get(ctx, "k")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}

	_, _, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, c.Set(ctx, "k", sampleSchedule(t)), ErrUnavailable)
	assert.Equal(t, 2, client.getCalls, "open circuit short-circuits the client")
}
