package alerts

import (
	"context"
	"time"

	"github.com/tapiceria-erp/tapiceria-erp/internal/finance"
)

// SnapshotLoader reads full ledger snapshots.
type SnapshotLoader interface {
	Load(ctx context.Context, companyID string) (finance.Snapshot, error)
}

// Service evaluates alerts against live ledgers.
type Service struct {
	loader SnapshotLoader
	now    func() time.Time
}

// NewService builds Service.
func NewService(loader SnapshotLoader) *Service {
	return &Service{loader: loader, now: time.Now}
}

// Evaluate loads the company's ledgers and runs every rule.
func (s *Service) Evaluate(ctx context.Context, companyID string) ([]Alert, error) {
	snap, err := s.loader.Load(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return Evaluate(snap, s.now()), nil
}
