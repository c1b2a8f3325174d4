package orders

import (
	"errors"
	"time"
)

// State enumerates the work order lifecycle.
type State string

const (
	// StateInProgress is the initial state of every order.
	StateInProgress State = "EN_PROCESO"
	// StateFinished marks manufacturing complete.
	StateFinished State = "TERMINADO"
	// StateDelivered marks the order handed over to the client.
	StateDelivered State = "ENTREGADO"
	// StatePartiallyDelivered marks a partial hand-over.
	StatePartiallyDelivered State = "ENTREGADO_PARCIAL"
	// StateFullyPaid marks the sale settled.
	StateFullyPaid State = "PAGADO"
	// StateReturned is a terminal exception state reached via cancellation.
	StateReturned State = "DEVOLUCION"
	// StateManufacturingError is a terminal exception state reached via
	// cancellation.
	StateManufacturingError State = "CANCELADO_FABRICACION"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateInProgress, StateFinished, StateDelivered, StatePartiallyDelivered,
		StateFullyPaid, StateReturned, StateManufacturingError:
		return true
	}
	return false
}

// Terminal reports whether s is an exception state no order leaves.
func (s State) Terminal() bool {
	return s == StateReturned || s == StateManufacturingError
}

// InvoiceType enumerates the order-level receipt type. Note that tax
// classification of income follows the payment's has_invoice flag, not
// this field.
type InvoiceType string

const (
	InvoiceFactura       InvoiceType = "FACTURA"
	InvoiceConsumerFinal InvoiceType = "CONSUMIDOR_FINAL"
)

// PaymentMethod enumerates accepted payment channels.
type PaymentMethod string

const (
	MethodCash     PaymentMethod = "Efectivo"
	MethodTransfer PaymentMethod = "Transferencia"
	MethodCard     PaymentMethod = "Tarjeta"
	MethodDeposit  PaymentMethod = "Depósito"
	MethodOther    PaymentMethod = "Otro"
)

// OrderItem is a frozen cost snapshot: ComputedCost equals quantity times
// the material's average unit cost at order creation and is never
// recalculated afterwards.
type OrderItem struct {
	MaterialID   string  `json:"material_id"`
	Quantity     float64 `json:"quantity"`
	ComputedCost float64 `json:"computed_cost"`
}

// Client groups order contact fields.
type Client struct {
	Name       string `json:"name"`
	NationalID string `json:"national_id,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
	Vehicle    string `json:"vehicle,omitempty"`
}

// Customization captures the upholstery finish choices.
type Customization struct {
	MainMaterialColor      string `json:"main_material_color,omitempty"`
	SecondaryMaterialColor string `json:"secondary_material_color,omitempty"`
	MainStitchColor        string `json:"main_stitch_color,omitempty"`
	SecondaryStitchColor   string `json:"secondary_stitch_color,omitempty"`
	MainStitchType         string `json:"main_stitch_type,omitempty"`
	SecondaryStitchType    string `json:"secondary_stitch_type,omitempty"`
}

// Order is a work order with its frozen material cost snapshot.
type Order struct {
	ID            string        `json:"id"`
	CompanyID     string        `json:"company_id"`
	Client        Client        `json:"client"`
	ProductID     string        `json:"product_id"`
	WorkType      string        `json:"work_type"`
	SalePrice     float64       `json:"sale_price"`
	DownPayment   float64       `json:"down_payment"`
	Balance       float64       `json:"balance"`
	InvoiceType   InvoiceType   `json:"invoice_type"`
	State         State         `json:"state"`
	MaterialsUsed []OrderItem   `json:"materials_used"`
	Customization Customization `json:"customization"`
	Notes         string        `json:"notes,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Payment is an income record against an order. HasInvoice on the payment
// is authoritative for the tax ledger, independent of the order's own
// invoice type.
type Payment struct {
	ID         string        `json:"id"`
	CompanyID  string        `json:"company_id"`
	OrderID    string        `json:"order_id"`
	Amount     float64       `json:"amount"`
	Method     PaymentMethod `json:"method"`
	HasInvoice bool          `json:"has_invoice"`
	Date       time.Time     `json:"date"`
	Notes      string        `json:"notes,omitempty"`
}

var (
	// ErrInvalidAmount indicates a payment outside [0, sale_price].
	ErrInvalidAmount = errors.New("orders: payment amount out of range")
	// ErrInvalidState indicates an unknown or disallowed state transition.
	ErrInvalidState = errors.New("orders: invalid state transition")
	// ErrInvalidCancelReason indicates a cancellation into a non-exception state.
	ErrInvalidCancelReason = errors.New("orders: cancel reason must be DEVOLUCION or CANCELADO_FABRICACION")
)
