package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tapiceria-erp/tapiceria-erp/internal/catalog"
	"github.com/tapiceria-erp/tapiceria-erp/internal/materials"
	"github.com/tapiceria-erp/tapiceria-erp/internal/shared"
)

// TxRepository exposes transactional operations used by the service.
// Material quantity adjustments ride the same transaction as the order
// rows so a failure anywhere rolls the whole reservation back.
type TxRepository interface {
	GetMaterialForUpdate(ctx context.Context, companyID, materialID string) (materials.Material, error)
	AdjustMaterialQuantity(ctx context.Context, companyID, materialID string, delta float64) error
	InsertOrder(ctx context.Context, o Order) error
	GetOrderForUpdate(ctx context.Context, companyID, orderID string) (Order, error)
	UpdateOrderState(ctx context.Context, companyID, orderID string, state State, balance float64) error
	InsertPayment(ctx context.Context, p Payment) error
	DeletePaymentsByOrder(ctx context.Context, companyID, orderID string) error
	DeleteMovementsByReference(ctx context.Context, companyID, orderID string) error
	DeleteOrder(ctx context.Context, companyID, orderID string) error
}

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, companyID, orderID string) (Order, error)
	List(ctx context.Context, companyID string) ([]Order, error)
	ListPayments(ctx context.Context, companyID string) ([]Payment, error)
	ListPaymentsByOrder(ctx context.Context, companyID, orderID string) ([]Payment, error)
	InsertMovement(ctx context.Context, mv materials.Movement) error
}

// ProductSource resolves the recipe an order consumes.
type ProductSource interface {
	Get(ctx context.Context, companyID, id string) (catalog.Product, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the work order lifecycle and its payment ledger.
type Service struct {
	repo     RepositoryPort
	products ProductSource
	audit    AuditPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, products ProductSource, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, products: products, audit: audit, logger: logger, now: time.Now}
}

// CreateInput carries the operator-entered order fields.
type CreateInput struct {
	Client        Client
	ProductID     string
	WorkType      string
	SalePrice     float64
	DownPayment   float64
	InvoiceType   InvoiceType
	Customization Customization
	Notes         string
	CreatedAt     time.Time
}

// Create validates recipe availability against live stock, freezes the
// material cost snapshot, deducts quantities and persists the order in one
// transaction. On any shortfall no partial order is created. Consumption
// movements are appended after commit; a movement failure never undoes the
// order.
func (s *Service) Create(ctx context.Context, companyID string, in CreateInput) (Order, error) {
	if in.SalePrice < 0 || in.DownPayment < 0 || in.DownPayment > in.SalePrice {
		return Order{}, ErrInvalidAmount
	}
	if in.InvoiceType != InvoiceFactura && in.InvoiceType != InvoiceConsumerFinal {
		in.InvoiceType = InvoiceConsumerFinal
	}

	product, err := s.products.Get(ctx, companyID, in.ProductID)
	if err != nil {
		return Order{}, fmt.Errorf("resolve product: %w", err)
	}

	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	order := Order{
		ID:            uuid.NewString(),
		CompanyID:     companyID,
		Client:        in.Client,
		ProductID:     product.ID,
		WorkType:      in.WorkType,
		SalePrice:     in.SalePrice,
		DownPayment:   in.DownPayment,
		Balance:       in.SalePrice - in.DownPayment,
		InvoiceType:   in.InvoiceType,
		State:         StateInProgress,
		Customization: in.Customization,
		Notes:         in.Notes,
		CreatedAt:     createdAt,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var shortfalls []materials.Shortfall
		items := make([]OrderItem, 0, len(product.Recipe))
		for _, item := range product.Recipe {
			mat, err := tx.GetMaterialForUpdate(ctx, companyID, item.MaterialID)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					shortfalls = append(shortfalls, materials.Shortfall{
						MaterialID: item.MaterialID,
						Name:       "Material Desconocido",
						Required:   item.Quantity,
					})
					continue
				}
				return err
			}
			if mat.QuantityOnHand < item.Quantity {
				shortfalls = append(shortfalls, materials.Shortfall{
					MaterialID: mat.ID,
					Name:       mat.Name,
					Required:   item.Quantity,
					Available:  mat.QuantityOnHand,
				})
				continue
			}
			items = append(items, OrderItem{
				MaterialID:   mat.ID,
				Quantity:     item.Quantity,
				ComputedCost: item.Quantity * mat.AvgUnitCost,
			})
		}
		if len(shortfalls) > 0 {
			return &materials.InsufficientStockError{Shortfalls: shortfalls}
		}
		for _, item := range items {
			if err := tx.AdjustMaterialQuantity(ctx, companyID, item.MaterialID, -item.Quantity); err != nil {
				return fmt.Errorf("deduct material %s: %w", item.MaterialID, err)
			}
		}
		order.MaterialsUsed = items
		return tx.InsertOrder(ctx, order)
	})
	if err != nil {
		return Order{}, err
	}

	for _, item := range order.MaterialsUsed {
		s.appendMovement(ctx, materials.Movement{
			CompanyID:   companyID,
			MaterialID:  item.MaterialID,
			Kind:        materials.MovementConsumption,
			Quantity:    item.Quantity,
			TotalCost:   item.ComputedCost,
			OriginNote:  "Orden de trabajo",
			ReferenceID: order.ID,
			Date:        order.CreatedAt,
		})
	}
	s.recordAudit(ctx, companyID, "order.create", order.ID, map[string]any{
		"product_id": order.ProductID,
		"sale_price": order.SalePrice,
	})
	return order, nil
}

// Transition overwrites the order state for forward progress. No inventory
// or money moves. Terminal exception states are reachable only through
// Cancel.
func (s *Service) Transition(ctx context.Context, companyID, orderID string, next State) (Order, error) {
	if !next.Valid() || next.Terminal() {
		return Order{}, ErrInvalidState
	}
	var out Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, companyID, orderID)
		if err != nil {
			return err
		}
		if order.State.Terminal() {
			return ErrInvalidState
		}
		if err := tx.UpdateOrderState(ctx, companyID, orderID, next, order.Balance); err != nil {
			return err
		}
		order.State = next
		out = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, companyID, "order.transition", orderID, map[string]any{"state": string(next)})
	return out, nil
}

// PaymentInput carries the fields of a payment event.
type PaymentInput struct {
	OrderID    string
	Amount     float64
	Method     PaymentMethod
	HasInvoice bool
	Notes      string
	Date       time.Time
}

// RegisterPayment records the sale settlement. The amount is the full sale
// value booked in one event, so the order always snaps to balance zero and
// PAGADO regardless of the amount registered. A zero amount skips the
// payment record but still settles the order.
func (s *Service) RegisterPayment(ctx context.Context, companyID string, in PaymentInput) (Order, error) {
	var out Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, companyID, in.OrderID)
		if err != nil {
			return err
		}
		if in.Amount < 0 || in.Amount > order.SalePrice {
			return ErrInvalidAmount
		}
		if in.Amount > 0 {
			date := in.Date
			if date.IsZero() {
				date = s.now()
			}
			payment := Payment{
				ID:         uuid.NewString(),
				CompanyID:  companyID,
				OrderID:    order.ID,
				Amount:     in.Amount,
				Method:     in.Method,
				HasInvoice: in.HasInvoice,
				Date:       date,
				Notes:      in.Notes,
			}
			if err := tx.InsertPayment(ctx, payment); err != nil {
				return err
			}
		}
		if err := tx.UpdateOrderState(ctx, companyID, order.ID, StateFullyPaid, 0); err != nil {
			return err
		}
		order.State = StateFullyPaid
		order.Balance = 0
		out = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, companyID, "order.payment", in.OrderID, map[string]any{
		"amount":      in.Amount,
		"has_invoice": in.HasInvoice,
	})
	return out, nil
}

// Cancel redirects the order to a terminal exception state. Payments are
// removed from the financial ledger; consumed materials stay consumed and
// their movements remain on record.
func (s *Service) Cancel(ctx context.Context, companyID, orderID string, reason State) (Order, error) {
	if !reason.Terminal() {
		return Order{}, ErrInvalidCancelReason
	}
	var out Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, companyID, orderID)
		if err != nil {
			return err
		}
		if err := tx.DeletePaymentsByOrder(ctx, companyID, orderID); err != nil {
			return err
		}
		if err := tx.UpdateOrderState(ctx, companyID, orderID, reason, 0); err != nil {
			return err
		}
		order.State = reason
		order.Balance = 0
		out = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, companyID, "order.cancel", orderID, map[string]any{"reason": string(reason)})
	return out, nil
}

// Delete erases the order as if it never existed. Consumed quantities are
// restored to stock without touching average costs, then payments, line
// items, consumption movements and the order row are removed together.
func (s *Service) Delete(ctx context.Context, companyID, orderID string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, companyID, orderID)
		if err != nil {
			return err
		}
		for _, item := range order.MaterialsUsed {
			err := tx.AdjustMaterialQuantity(ctx, companyID, item.MaterialID, item.Quantity)
			if errors.Is(err, shared.ErrNotFound) {
				// The material was removed after the order was created;
				// the erasure still proceeds.
				s.logger.Warn("material missing during order delete",
					slog.String("material_id", item.MaterialID),
					slog.String("order_id", orderID))
				continue
			}
			if err != nil {
				return fmt.Errorf("restore material %s: %w", item.MaterialID, err)
			}
		}
		if err := tx.DeletePaymentsByOrder(ctx, companyID, orderID); err != nil {
			return err
		}
		if err := tx.DeleteMovementsByReference(ctx, companyID, orderID); err != nil {
			return err
		}
		return tx.DeleteOrder(ctx, companyID, orderID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, companyID, "order.delete", orderID, nil)
	return nil
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, companyID, orderID string) (Order, error) {
	return s.repo.Get(ctx, companyID, orderID)
}

// List returns all orders for the company.
func (s *Service) List(ctx context.Context, companyID string) ([]Order, error) {
	return s.repo.List(ctx, companyID)
}

// ListPayments returns the payment ledger, optionally scoped to one order.
func (s *Service) ListPayments(ctx context.Context, companyID, orderID string) ([]Payment, error) {
	if orderID == "" {
		return s.repo.ListPayments(ctx, companyID)
	}
	return s.repo.ListPaymentsByOrder(ctx, companyID, orderID)
}

// appendMovement writes the consumption audit record. Failures are logged
// and never roll back the committed order.
func (s *Service) appendMovement(ctx context.Context, mv materials.Movement) {
	mv.ID = uuid.NewString()
	if err := s.repo.InsertMovement(ctx, mv); err != nil {
		s.logger.Error("append consumption movement",
			slog.String("material_id", mv.MaterialID),
			slog.String("order_id", mv.ReferenceID),
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
		Entity:    "order",
		EntityID:  entityID,
		Meta:      meta,
	})
}
