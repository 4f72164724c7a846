package ops

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "custody/pkg/platform/audit"
	"custody/pkg/platform/audit/store/memory"
)

type failingStore struct {
	calls int
}

func (s *failingStore) Append(context.Context, audit.Event) error {
	s.calls++
	return errors.New("store down")
}

func (s *failingStore) ListBySubject(context.Context, string) ([]audit.Event, error) {
	return nil, nil
}

func TestEmitPersistsWithCategory(t *testing.T) {
	store := memory.NewInMemoryStore()
	m := NewMetricsWith(prometheus.NewRegistry())
	p := New(store, WithMetrics(m))

	require.NoError(t, p.Emit(context.Background(), audit.Event{
		Subject: "custodian-1",
		Action:  string(audit.EventRoleGranted),
	}))

	events, err := store.ListBySubject(context.Background(), "custodian-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategorySecurity, events[0].Category)
	assert.False(t, events[0].Timestamp.IsZero())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Tracked))
}

func TestEmitSwallowsFailuresAndOpensCircuit(t *testing.T) {
	store := &failingStore{}
	m := NewMetricsWith(prometheus.NewRegistry())
	cb := NewCircuitBreaker(2, time.Minute)
	p := New(store, WithMetrics(m), WithCircuitBreaker(cb))

	for range 4 {
		require.NoError(t, p.Emit(context.Background(), audit.Event{Subject: "s", Action: string(audit.EventRoleRevoked)}))
	}

	assert.Equal(t, 2, store.calls, "writes stop once the circuit opens")
	assert.True(t, cb.IsOpen())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PersistFailures))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CircuitBreakerDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitBreakerState))
}

func TestCircuitBreakerHalfOpens(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(3, time.Minute)
	cb.now = func() time.Time { return now }

	for range 3 {
		cb.RecordFailure()
	}
	assert.False(t, cb.Allow())

	now = now.Add(time.Minute + time.Second)
	assert.True(t, cb.Allow(), "cooldown elapsed")
	assert.True(t, cb.RecordFailure(), "a failed probe reopens immediately")
	assert.False(t, cb.Allow())

	now = now.Add(2 * time.Minute)
	require.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.False(t, cb.IsOpen())
	assert.False(t, cb.RecordFailure(), "success resets the failure count")
}
