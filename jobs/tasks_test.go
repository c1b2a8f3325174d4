package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tapiceria-erp/tapiceria-erp/internal/alerts"
	"github.com/tapiceria-erp/tapiceria-erp/internal/finance"
)

type staticCompanies struct {
	ids []string
	err error
}

func (s staticCompanies) ListCompanies(context.Context) ([]string, error) {
	return s.ids, s.err
}

type staticLoader struct {
	snaps map[string]finance.Snapshot
	errs  map[string]error
}

func (s staticLoader) Load(_ context.Context, companyID string) (finance.Snapshot, error) {
	if err := s.errs[companyID]; err != nil {
		return finance.Snapshot{}, err
	}
	return s.snaps[companyID], nil
}

type recordingDigests struct {
	inserted []alerts.Digest
}

func (r *recordingDigests) Insert(_ context.Context, d alerts.Digest) error {
	r.inserted = append(r.inserted, d)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDigestRunnerWritesOneDigestPerCompany(t *testing.T) {
	store := &recordingDigests{}
	runner := NewDigestRunner(
		staticCompanies{ids: []string{"c1", "c2"}},
		staticLoader{snaps: map[string]finance.Snapshot{}},
		store, nil, discardLogger(),
	)

	task, err := NewAlertDigestTask(time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, runner.Handle(context.Background(), task))

	require.Len(t, store.inserted, 2)
	for _, d := range store.inserted {
		require.NotEmpty(t, d.ID)
		require.False(t, d.GeneratedAt.IsZero())
		// An empty ledger still yields the cash-flow and projection findings.
		require.NotEmpty(t, d.Alerts)
	}
	require.Equal(t, "c1", store.inserted[0].CompanyID)
	require.Equal(t, "c2", store.inserted[1].CompanyID)
}

func TestDigestRunnerSkipsFailingCompany(t *testing.T) {
	store := &recordingDigests{}
	runner := NewDigestRunner(
		staticCompanies{ids: []string{"broken", "healthy"}},
		staticLoader{
			snaps: map[string]finance.Snapshot{},
			errs:  map[string]error{"broken": errors.New("ledger unavailable")},
		},
		store, nil, discardLogger(),
	)

	task, err := NewAlertDigestTask(time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, runner.Handle(context.Background(), task))

	require.Len(t, store.inserted, 1)
	require.Equal(t, "healthy", store.inserted[0].CompanyID)
}

func TestDigestRunnerFailsWhenNoCompanySucceeds(t *testing.T) {
	store := &recordingDigests{}
	runner := NewDigestRunner(
		staticCompanies{ids: []string{"c1"}},
		staticLoader{errs: map[string]error{"c1": errors.New("ledger unavailable")}},
		store, nil, discardLogger(),
	)

	task, err := NewAlertDigestTask(time.Now().UTC())
	require.NoError(t, err)
	require.Error(t, runner.Handle(context.Background(), task))
	require.Empty(t, store.inserted)
}

type recordingKeys struct {
	olderThan time.Duration
	err       error
}

func (r *recordingKeys) Cleanup(_ context.Context, olderThan time.Duration) error {
	r.olderThan = olderThan
	return r.err
}

func TestCleanupRunnerPassesRetentionWindow(t *testing.T) {
	keys := &recordingKeys{}
	runner := NewCleanupRunner(keys, 7*24*time.Hour, nil, discardLogger())

	require.NoError(t, runner.Handle(context.Background(), NewIdempotencyCleanupTask()))
	require.Equal(t, 7*24*time.Hour, keys.olderThan)
}

func TestCleanupRunnerPropagatesStoreError(t *testing.T) {
	keys := &recordingKeys{err: errors.New("pool closed")}
	runner := NewCleanupRunner(keys, time.Hour, nil, discardLogger())

	require.Error(t, runner.Handle(context.Background(), NewIdempotencyCleanupTask()))
}
