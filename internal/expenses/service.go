package expenses

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tapiceria-erp/tapiceria-erp/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, e Expense) error
	Delete(ctx context.Context, companyID, id string) error
	Get(ctx context.Context, companyID, id string) (Expense, error)
	List(ctx context.Context, companyID string) ([]Expense, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the expense ledger.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// CreateInput describes a new expense record.
type CreateInput struct {
	Name          string
	Category      Category
	Amount        float64
	Kind          ExpenseKind
	PaymentMethod string
	Date          time.Time
	Frequency     Frequency
	HasInvoice    bool
	InvoiceNumber string
	Supplier      string
	SupplierTaxID string
	Area          Area
	Notes         string
}

// Create records one expense.
func (s *Service) Create(ctx context.Context, companyID string, in CreateInput) (Expense, error) {
	if in.Amount <= 0 {
		return Expense{}, ErrInvalidAmount
	}
	if !in.Category.Valid() {
		return Expense{}, fmt.Errorf("%w: %q", ErrInvalidCategory, in.Category)
	}
	if in.Frequency == "" {
		in.Frequency = FrequencyOnce
	}
	if in.Kind == "" {
		in.Kind = KindVariable
	}
	if in.Area == "" {
		in.Area = AreaGeneral
	}
	date := in.Date
	if date.IsZero() {
		date = s.now()
	}
	e := Expense{
		ID:            uuid.NewString(),
		CompanyID:     companyID,
		Name:          in.Name,
		Category:      in.Category,
		Amount:        in.Amount,
		Kind:          in.Kind,
		PaymentMethod: in.PaymentMethod,
		Date:          date,
		Frequency:     in.Frequency,
		HasInvoice:    in.HasInvoice,
		InvoiceNumber: in.InvoiceNumber,
		Supplier:      in.Supplier,
		SupplierTaxID: in.SupplierTaxID,
		Area:          in.Area,
		Notes:         in.Notes,
	}
	if err := s.repo.Insert(ctx, e); err != nil {
		return Expense{}, err
	}
	s.recordAudit(ctx, companyID, "expense.create", e.ID, map[string]any{
		"category": string(e.Category),
		"amount":   e.Amount,
	})
	return e, nil
}

// RecordMaterialPurchase books capitalized inventory spend linked to a
// material purchase. Satisfies the recorder port the material ledger
// calls after each purchase commit.
func (s *Service) RecordMaterialPurchase(ctx context.Context, companyID, materialName string, amount float64, hasInvoice bool, date time.Time) error {
	if amount <= 0 {
		// Zero-cost intakes carry no cash flow worth booking.
		return nil
	}
	_, err := s.Create(ctx, companyID, CreateInput{
		Name:       "Compra Material: " + materialName,
		Category:   CategoryMaterialPurchase,
		Amount:     amount,
		Kind:       KindVariable,
		Date:       date,
		Frequency:  FrequencyOnce,
		HasInvoice: hasInvoice,
		Area:       AreaProduction,
	})
	return err
}

// Delete removes one expense record.
func (s *Service) Delete(ctx context.Context, companyID, id string) error {
	if err := s.repo.Delete(ctx, companyID, id); err != nil {
		return err
	}
	s.recordAudit(ctx, companyID, "expense.delete", id, nil)
	return nil
}

// Get returns one expense.
func (s *Service) Get(ctx context.Context, companyID, id string) (Expense, error) {
	return s.repo.Get(ctx, companyID, id)
}

// List returns all expenses for the company.
func (s *Service) List(ctx context.Context, companyID string) ([]Expense, error) {
	return s.repo.List(ctx, companyID)
}

func (s *Service) recordAudit(ctx context.Context, companyID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		CompanyID: companyID,
		Action:    action,
		Entity:    "expense",
		EntityID:  entityID,
		Meta:      meta,
	})
}
