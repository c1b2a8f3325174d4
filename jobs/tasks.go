package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/tapiceria-erp/tapiceria-erp/internal/alerts"
	"github.com/tapiceria-erp/tapiceria-erp/internal/finance"
	"github.com/tapiceria-erp/tapiceria-erp/internal/observability"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAlertDigest runs the alert engine for every company and persists the findings.
	TaskAlertDigest = "alerts:digest"
	// TaskIdempotencyCleanup prunes idempotency keys past their retention window.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

var errAllCompaniesFailed = errors.New("jobs: every company digest failed")

// AlertDigestPayload carries scheduling metadata for a digest run.
type AlertDigestPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewAlertDigestTask constructs an Asynq task for the nightly alert scan.
func NewAlertDigestTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(AlertDigestPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAlertDigest, body, asynq.Queue(QueueDefault)), nil
}

// NewIdempotencyCleanupTask constructs an Asynq task for key cleanup.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.Queue(QueueDefault))
}

// CompanyLister enumerates the companies with ledger activity.
type CompanyLister interface {
	ListCompanies(ctx context.Context) ([]string, error)
}

// SnapshotLoader reads a company's full ledger snapshot.
type SnapshotLoader interface {
	Load(ctx context.Context, companyID string) (finance.Snapshot, error)
}

// DigestStore persists the outcome of a digest run.
type DigestStore interface {
	Insert(ctx context.Context, d alerts.Digest) error
}

// DigestRunner executes the alert engine across companies.
type DigestRunner struct {
	companies CompanyLister
	loader    SnapshotLoader
	digests   DigestStore
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewDigestRunner constructs a DigestRunner.
func NewDigestRunner(companies CompanyLister, loader SnapshotLoader, digests DigestStore, metrics *observability.Metrics, logger *slog.Logger) *DigestRunner {
	return &DigestRunner{companies: companies, loader: loader, digests: digests, metrics: metrics, logger: logger}
}

// Handle processes TaskAlertDigest tasks. A failing company is logged and
// skipped so one broken ledger does not starve the rest of the fleet.
func (r *DigestRunner) Handle(ctx context.Context, t *asynq.Task) error {
	var payload AlertDigestPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	companies, err := r.companies.ListCompanies(ctx)
	if err != nil {
		r.countRun("error")
		return err
	}
	now := time.Now().UTC()
	var failed int
	for _, companyID := range companies {
		if err := r.runCompany(ctx, companyID, now); err != nil {
			failed++
			r.logger.Error("alert digest",
				slog.String("company_id", companyID),
				slog.Any("error", err))
		}
	}
	r.logger.Info("alert digest finished",
		slog.Int("companies", len(companies)),
		slog.Int("failed", failed))
	if failed == len(companies) && failed > 0 {
		r.countRun("error")
		return errAllCompaniesFailed
	}
	r.countRun("ok")
	return nil
}

func (r *DigestRunner) runCompany(ctx context.Context, companyID string, now time.Time) error {
	snap, err := r.loader.Load(ctx, companyID)
	if err != nil {
		return err
	}
	found := alerts.Evaluate(snap, now)
	if r.metrics != nil {
		byPriority := map[alerts.Priority]int{}
		for _, a := range found {
			byPriority[a.Priority]++
		}
		for prio, n := range byPriority {
			r.metrics.CountAlerts(string(prio), n)
		}
	}
	return r.digests.Insert(ctx, alerts.Digest{
		ID:          uuid.NewString(),
		CompanyID:   companyID,
		GeneratedAt: now,
		Alerts:      found,
	})
}

func (r *DigestRunner) countRun(status string) {
	if r.metrics != nil {
		r.metrics.CountJobRun(TaskAlertDigest, status)
	}
}

// KeyStore prunes stale idempotency keys.
type KeyStore interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// CleanupRunner removes idempotency keys older than the retention window.
type CleanupRunner struct {
	keys    KeyStore
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewCleanupRunner constructs a CleanupRunner.
func NewCleanupRunner(keys KeyStore, ttl time.Duration, metrics *observability.Metrics, logger *slog.Logger) *CleanupRunner {
	return &CleanupRunner{keys: keys, ttl: ttl, metrics: metrics, logger: logger}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (r *CleanupRunner) Handle(ctx context.Context, _ *asynq.Task) error {
	if err := r.keys.Cleanup(ctx, r.ttl); err != nil {
		if r.metrics != nil {
			r.metrics.CountJobRun(TaskIdempotencyCleanup, "error")
		}
		return err
	}
	r.logger.Info("idempotency cleanup finished", slog.Duration("ttl", r.ttl))
	if r.metrics != nil {
		r.metrics.CountJobRun(TaskIdempotencyCleanup, "ok")
	}
	return nil
}
