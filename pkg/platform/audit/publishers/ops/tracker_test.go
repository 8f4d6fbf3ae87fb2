package ops

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "firmo/pkg/platform/audit"
	"firmo/pkg/platform/audit/store/memory"
)

func TestTrackPersistsEvent(t *testing.T) {
	store := memory.NewInMemoryStore()
	tracker := NewTracker(store)

	tracker.Track(context.Background(), audit.OpsEvent{
		Subject: "session s-1",
		Action:  string(audit.EventSessionStarted),
	})
	require.NoError(t, tracker.Close())

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventSessionStarted), events[0].Action)
	assert.Equal(t, audit.CategoryOperations, events[0].Category)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestTrackSamplesOut(t *testing.T) {
	store := memory.NewInMemoryStore()
	tracker := NewTracker(store, WithSampler(NewSampler(0)))

	for range 20 {
		tracker.Track(context.Background(), audit.OpsEvent{
			Action: string(audit.EventStatusQueried),
		})
	}
	require.NoError(t, tracker.Close())

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events, "a zero sample rate keeps nothing")
}

func TestTrackPerActionSampling(t *testing.T) {
	store := memory.NewInMemoryStore()
	sampler := NewSampler(1.0)
	sampler.SetRate(string(audit.EventStatusQueried), 0)
	tracker := NewTracker(store, WithSampler(sampler))

	tracker.Track(context.Background(), audit.OpsEvent{Action: string(audit.EventStatusQueried)})
	tracker.Track(context.Background(), audit.OpsEvent{Action: string(audit.EventSessionStarted)})
	require.NoError(t, tracker.Close())

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventSessionStarted), events[0].Action)
}

type countingFailStore struct {
	calls atomic.Int64
}

func (s *countingFailStore) Append(context.Context, audit.Event) error {
	s.calls.Add(1)
	return errors.New("store down")
}

func TestCircuitBreakerStopsHammering(t *testing.T) {
	store := &countingFailStore{}
	cb := NewCircuitBreaker(3, time.Hour)
	tracker := NewTracker(store, WithCircuitBreaker(cb))

	// Three consecutive failures trip the breaker.
	for range 3 {
		tracker.Track(context.Background(), audit.OpsEvent{
			Action: string(audit.EventStepSubmitted),
		})
	}
	require.Eventually(t, func() bool { return cb.IsOpen() }, time.Second, time.Millisecond)
	callsWhenOpen := store.calls.Load()

	// With the circuit open, new events never reach the store.
	for range 10 {
		tracker.Track(context.Background(), audit.OpsEvent{
			Action: string(audit.EventStepSubmitted),
		})
	}
	require.NoError(t, tracker.Close())

	assert.Equal(t, callsWhenOpen, store.calls.Load(),
		"an open circuit must not admit new events")
}

func TestCircuitBreaker(t *testing.T) {
	t.Run("opens after threshold", func(t *testing.T) {
		cb := NewCircuitBreaker(2, time.Minute)
		assert.True(t, cb.Allow())

		cb.RecordFailure()
		assert.False(t, cb.IsOpen())
		cb.RecordFailure()
		assert.True(t, cb.IsOpen())
		assert.False(t, cb.Allow())
	})

	t.Run("success resets the count", func(t *testing.T) {
		cb := NewCircuitBreaker(2, time.Minute)
		cb.RecordFailure()
		cb.RecordSuccess()
		cb.RecordFailure()
		assert.False(t, cb.IsOpen(), "non-consecutive failures must not open the circuit")
	})

	t.Run("half-opens after cooldown", func(t *testing.T) {
		cb := NewCircuitBreaker(1, time.Millisecond)
		cb.RecordFailure()
		require.True(t, cb.IsOpen())

		assert.Eventually(t, cb.Allow, time.Second, time.Millisecond,
			"cooldown expiry lets a probe through")
	})

	t.Run("reset closes immediately", func(t *testing.T) {
		cb := NewCircuitBreaker(1, time.Hour)
		cb.RecordFailure()
		require.True(t, cb.IsOpen())
		cb.Reset()
		assert.True(t, cb.Allow())
	})
}

func TestSamplerClampsRates(t *testing.T) {
	s := NewSampler(2.0)
	assert.True(t, s.ShouldSample("anything"), "rates clamp to 1.0")

	s.SetDefaultRate(-1)
	assert.False(t, s.ShouldSample("anything"), "rates clamp to 0.0")
}
