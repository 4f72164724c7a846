package compliance

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

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error {
	return errors.New("disk full")
}

func (failingStore) ListBySubject(context.Context, string) ([]audit.Event, error) {
	return nil, nil
}

func TestPublisher_Emit(t *testing.T) {
	store := memory.NewInMemoryStore()
	metrics := NewMetricsWith(prometheus.NewRegistry())
	pub := New(store, WithMetrics(metrics))
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{
		Subject: "custodian-1",
		Action:  string(audit.EventVestingReleased),
		Amount:  70,
	})
	require.NoError(t, err)

	events, err := store.ListBySubject(context.Background(), "custodian-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.Equal(t, uint64(70), events[0].Amount)
	assert.False(t, events[0].Timestamp.IsZero())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EventsEmitted.WithLabelValues("compliance")))
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)

	customTime := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		Subject:   "acct",
		Action:    string(audit.EventRoleGranted),
		Timestamp: customTime,
	}))

	events, err := store.ListBySubject(context.Background(), "acct")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, customTime, events[0].Timestamp)
	assert.Equal(t, audit.CategorySecurity, events[0].Category)
}

func TestPublisher_RejectsIncompleteEvents(t *testing.T) {
	pub := New(memory.NewInMemoryStore())

	err := pub.Emit(context.Background(), audit.Event{Action: string(audit.EventVestingUnlocked)})
	assert.ErrorContains(t, err, "requires Subject")

	err = pub.Emit(context.Background(), audit.Event{Subject: "custodian-1"})
	assert.ErrorContains(t, err, "requires Action")
}

func TestPublisher_FailsClosed(t *testing.T) {
	metrics := NewMetricsWith(prometheus.NewRegistry())
	pub := New(failingStore{}, WithMetrics(metrics))

	err := pub.Emit(context.Background(), audit.Event{
		Subject: "custodian-1",
		Action:  string(audit.EventVestingRecovered),
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PersistFailures))
}
