package materials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tapiceria-erp/tapiceria-erp/internal/shared"
)

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetMaterialForUpdate(ctx context.Context, companyID, id string) (Material, error)
	FindMaterialByName(ctx context.Context, companyID, name string) (Material, error)
	InsertMaterial(ctx context.Context, m Material) error
	UpdateMaterialStock(ctx context.Context, companyID, id string, qty, avgCost float64) error
}

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, companyID, id string) (Material, error)
	List(ctx context.Context, companyID string) ([]Material, error)
	InsertMovement(ctx context.Context, mv Movement) error
	ListMovements(ctx context.Context, companyID string) ([]Movement, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ExpenseRecorder links material purchases to the expense ledger. The
// ledger itself stays decoupled from expense persistence; main wires this
// to the expenses service.
type ExpenseRecorder interface {
	RecordMaterialPurchase(ctx context.Context, companyID, materialName string, amount float64, hasInvoice bool, date time.Time) error
}

// Service owns per-material stock quantity and weighted-average unit cost.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	expenses ExpenseRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, expenses ExpenseRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, expenses: expenses, logger: logger, now: time.Now}
}

// CreateInput describes a new material.
type CreateInput struct {
	Name      string
	Kind      string
	Unit      string
	Quantity  float64
	UnitCost  float64
	MinStock  float64
	CreatedAt time.Time
}

// Create registers a new material.
func (s *Service) Create(ctx context.Context, companyID string, in CreateInput) (Material, error) {
	if companyID == "" {
		return Material{}, shared.ErrCompanyRequired
	}
	if in.Name == "" {
		return Material{}, errors.New("materials: name required")
	}
	if in.Quantity < 0 || in.UnitCost < 0 || in.MinStock < 0 {
		return Material{}, ErrInvalidCost
	}
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	m := Material{
		ID:             uuid.NewString(),
		CompanyID:      companyID,
		Name:           in.Name,
		Kind:           defaultString(in.Kind, KindFinishedProduct),
		Unit:           defaultString(in.Unit, UnitEach),
		QuantityOnHand: in.Quantity,
		AvgUnitCost:    in.UnitCost,
		MinStock:       in.MinStock,
		CreatedAt:      createdAt,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.InsertMaterial(ctx, m)
	})
	if err != nil {
		return Material{}, err
	}
	s.recordAudit(ctx, companyID, "materials:create", m.ID, map[string]any{"name": m.Name})
	return m, nil
}

// PurchaseInput describes a stock purchase.
type PurchaseInput struct {
	MaterialID string
	Quantity   float64
	TotalCost  float64
	HasInvoice bool
}

// RegisterPurchase blends a purchase into the weighted average:
// new_avg = (Q*C + cost) / (Q+q). New purchases re-weight the existing
// average, never replace it.
func (s *Service) RegisterPurchase(ctx context.Context, companyID string, in PurchaseInput) (Material, error) {
	if companyID == "" {
		return Material{}, shared.ErrCompanyRequired
	}
	if in.Quantity <= 0 {
		return Material{}, ErrInvalidQuantity
	}
	if in.TotalCost < 0 {
		return Material{}, ErrInvalidCost
	}

	var updated Material
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := tx.GetMaterialForUpdate(ctx, companyID, in.MaterialID)
		if err != nil {
			return err
		}
		newQty := m.QuantityOnHand + in.Quantity
		newAvg := 0.0
		if newQty > 0 {
			newAvg = (m.QuantityOnHand*m.AvgUnitCost + in.TotalCost) / newQty
		}
		if err := tx.UpdateMaterialStock(ctx, companyID, m.ID, newQty, newAvg); err != nil {
			return err
		}
		updated = m
		updated.QuantityOnHand = newQty
		updated.AvgUnitCost = newAvg
		return nil
	})
	if err != nil {
		return Material{}, err
	}

	s.appendMovement(ctx, Movement{
		CompanyID:  companyID,
		MaterialID: in.MaterialID,
		Kind:       MovementPurchase,
		Quantity:   in.Quantity,
		TotalCost:  in.TotalCost,
	})
	if s.expenses != nil {
		if err := s.expenses.RecordMaterialPurchase(ctx, companyID, updated.Name, in.TotalCost, in.HasInvoice, s.now()); err != nil {
			s.logger.Error("record purchase expense", slog.String("material_id", in.MaterialID), slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, companyID, "materials:purchase", in.MaterialID, map[string]any{
		"quantity":   in.Quantity,
		"total_cost": in.TotalCost,
	})
	return updated, nil
}

// RegisterWaste writes off quantity while holding total capitalized value
// constant: the surviving units absorb the lost quantity's value. No new
// expense is created, the cost was already incurred at purchase time.
func (s *Service) RegisterWaste(ctx context.Context, companyID, materialID string, quantity float64) (Material, error) {
	if companyID == "" {
		return Material{}, shared.ErrCompanyRequired
	}
	if quantity <= 0 {
		return Material{}, ErrInvalidQuantity
	}

	var updated Material
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := tx.GetMaterialForUpdate(ctx, companyID, materialID)
		if err != nil {
			return err
		}
		if quantity > m.QuantityOnHand {
			return &InsufficientStockError{Shortfalls: []Shortfall{{
				MaterialID: m.ID,
				Name:       m.Name,
				Required:   quantity,
				Available:  m.QuantityOnHand,
			}}}
		}
		totalValue := m.QuantityOnHand * m.AvgUnitCost
		newQty := m.QuantityOnHand - quantity
		newAvg := 0.0
		if newQty > 0 {
			newAvg = totalValue / newQty
		}
		if err := tx.UpdateMaterialStock(ctx, companyID, m.ID, newQty, newAvg); err != nil {
			return err
		}
		updated = m
		updated.QuantityOnHand = newQty
		updated.AvgUnitCost = newAvg
		return nil
	})
	if err != nil {
		return Material{}, err
	}

	// Cost 0: value merely redistributes onto remaining units.
	s.appendMovement(ctx, Movement{
		CompanyID:  companyID,
		MaterialID: materialID,
		Kind:       MovementWaste,
		Quantity:   quantity,
		TotalCost:  0,
	})
	s.recordAudit(ctx, companyID, "materials:waste", materialID, map[string]any{"quantity": quantity})
	return updated, nil
}

// AssetIntakeInput describes recovered assets entering stock.
type AssetIntakeInput struct {
	Name      string
	Kind      string
	Unit      string
	Quantity  float64
	TotalCost float64
	Note      string
	OrderRef  string
	CreatedAt time.Time
}

// RegisterAssetIntake finds or creates a material by name and blends the
// intake like a purchase. When OrderRef is set, the movement is tagged as
// recovered from that order.
func (s *Service) RegisterAssetIntake(ctx context.Context, companyID string, in AssetIntakeInput) (Material, error) {
	if companyID == "" {
		return Material{}, shared.ErrCompanyRequired
	}
	if in.Name == "" {
		return Material{}, errors.New("materials: name required")
	}
	if in.Quantity <= 0 {
		return Material{}, ErrInvalidQuantity
	}
	if in.TotalCost < 0 {
		return Material{}, ErrInvalidCost
	}
	if in.OrderRef != "" {
		if _, err := uuid.Parse(in.OrderRef); err != nil {
			return Material{}, fmt.Errorf("materials: invalid order reference: %w", err)
		}
	}

	var updated Material
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := tx.FindMaterialByName(ctx, companyID, in.Name)
		if errors.Is(err, shared.ErrNotFound) {
			createdAt := in.CreatedAt
			if createdAt.IsZero() {
				createdAt = s.now()
			}
			m = Material{
				ID:        uuid.NewString(),
				CompanyID: companyID,
				Name:      in.Name,
				Kind:      defaultString(in.Kind, KindFinishedProduct),
				Unit:      defaultString(in.Unit, UnitEach),
				CreatedAt: createdAt,
			}
			if err := tx.InsertMaterial(ctx, m); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		newQty := m.QuantityOnHand + in.Quantity
		newAvg := 0.0
		if newQty > 0 {
			newAvg = (m.QuantityOnHand*m.AvgUnitCost + in.TotalCost) / newQty
		}
		if err := tx.UpdateMaterialStock(ctx, companyID, m.ID, newQty, newAvg); err != nil {
			return err
		}
		updated = m
		updated.QuantityOnHand = newQty
		updated.AvgUnitCost = newAvg
		return nil
	})
	if err != nil {
		return Material{}, err
	}

	origin := "Activo"
	if in.OrderRef != "" {
		origin = "ActivoRecuperado"
	}
	if in.Note != "" {
		origin = origin + ": " + in.Note
	}
	s.appendMovement(ctx, Movement{
		CompanyID:   companyID,
		MaterialID:  updated.ID,
		Kind:        MovementAssetIntake,
		Quantity:    in.Quantity,
		TotalCost:   in.TotalCost,
		OriginNote:  origin,
		ReferenceID: in.OrderRef,
	})
	s.recordAudit(ctx, companyID, "materials:asset_intake", updated.ID, map[string]any{
		"quantity":   in.Quantity,
		"total_cost": in.TotalCost,
	})
	return updated, nil
}

// RegisterCorrection removes quantity and its proportional value at the
// current average cost, modeling "this was never really here". Average
// cost is unchanged, unlike waste. Returns the cost removed so the caller
// can reverse a linked expense.
func (s *Service) RegisterCorrection(ctx context.Context, companyID, materialID string, quantity float64, reason string) (float64, error) {
	if companyID == "" {
		return 0, shared.ErrCompanyRequired
	}
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}

	var costRemoved float64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := tx.GetMaterialForUpdate(ctx, companyID, materialID)
		if err != nil {
			return err
		}
		if quantity > m.QuantityOnHand {
			return &InsufficientStockError{Shortfalls: []Shortfall{{
				MaterialID: m.ID,
				Name:       m.Name,
				Required:   quantity,
				Available:  m.QuantityOnHand,
			}}}
		}
		costRemoved = quantity * m.AvgUnitCost
		newQty := m.QuantityOnHand - quantity
		return tx.UpdateMaterialStock(ctx, companyID, m.ID, newQty, m.AvgUnitCost)
	})
	if err != nil {
		return 0, err
	}

	s.appendMovement(ctx, Movement{
		CompanyID:  companyID,
		MaterialID: materialID,
		Kind:       MovementCorrection,
		Quantity:   -quantity,
		TotalCost:  -costRemoved,
		OriginNote: reason,
	})
	s.recordAudit(ctx, companyID, "materials:correction", materialID, map[string]any{
		"quantity":     quantity,
		"cost_removed": costRemoved,
		"reason":       reason,
	})
	return costRemoved, nil
}

// Get returns one material.
func (s *Service) Get(ctx context.Context, companyID, id string) (Material, error) {
	if companyID == "" {
		return Material{}, shared.ErrCompanyRequired
	}
	return s.repo.Get(ctx, companyID, id)
}

// List returns all materials for a company.
func (s *Service) List(ctx context.Context, companyID string) ([]Material, error) {
	if companyID == "" {
		return nil, shared.ErrCompanyRequired
	}
	return s.repo.List(ctx, companyID)
}

// ListMovements returns the movement log, newest first.
func (s *Service) ListMovements(ctx context.Context, companyID string) ([]Movement, error) {
	if companyID == "" {
		return nil, shared.ErrCompanyRequired
	}
	return s.repo.ListMovements(ctx, companyID)
}

// appendMovement writes the audit-trail movement. Failures are logged and
// never roll back the primary mutation.
func (s *Service) appendMovement(ctx context.Context, mv Movement) {
	mv.ID = uuid.NewString()
	if mv.Date.IsZero() {
		mv.Date = s.now()
	}
	if err := s.repo.InsertMovement(ctx, mv); err != nil {
		s.logger.Error("append inventory movement",
			slog.String("material_id", mv.MaterialID),
			slog.String("kind", string(mv.Kind)),
			slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, companyID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		CompanyID: companyID,
		Action:    action,
		Entity:    "material",
		EntityID:  entityID,
		Meta:      meta,
	})
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
