package observability

import (
	"context"

	"github.com/tapiceria-erp/tapiceria-erp/internal/shared"
)

// AuditRecorder is the audit sink the domain services write to.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// InstrumentedAudit wraps an audit sink and counts each recorded action,
// so every ledger mutation shows up in /metrics without the domain
// services knowing about Prometheus.
type InstrumentedAudit struct {
	next    AuditRecorder
	metrics *Metrics
}

// NewInstrumentedAudit builds InstrumentedAudit.
func NewInstrumentedAudit(next AuditRecorder, metrics *Metrics) *InstrumentedAudit {
	return &InstrumentedAudit{next: next, metrics: metrics}
}

// Record counts the action and forwards to the underlying sink.
func (a *InstrumentedAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.metrics.CountAction(log.Action)
	if a.next == nil {
		return nil
	}
	return a.next.Record(ctx, log)
}
