package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	SalePrice decimal.Decimal `json:"sale_price"`
	// CostPrice is the weighted-average unit cost across the combined stock of
	// every variant of this product. It is recalculated on each restock and is
	// only meaningful while total variant stock is above zero.
	CostPrice decimal.Decimal `json:"cost_price"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type ProductVariant struct {
	ID            string `json:"id"`
	ProductID     string `json:"product_id"`
	SKU           string `json:"sku"`
	Size          string `json:"size"`
	Color         string `json:"color"`
	StockQuantity int    `json:"stock_quantity"`
	MinStock      int    `json:"min_stock"`
	Active        bool   `json:"active"`
}

type ProductCreateRequest struct {
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	SalePrice decimal.Decimal `json:"sale_price"`
}

type ProductUpdateRequest struct {
	Name      *string          `json:"name,omitempty"`
	Category  *string          `json:"category,omitempty"`
	SalePrice *decimal.Decimal `json:"sale_price,omitempty"`
	Active    *bool            `json:"active,omitempty"`
}

type VariantCreateRequest struct {
	ProductID string `json:"product_id"`
	SKU       string `json:"sku"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	MinStock  int    `json:"min_stock"`
}

type OrderItem struct {
	VariantID string          `json:"variant_id"`
	Name      string          `json:"name"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type Order struct {
	ID              string          `json:"id"`
	CustomerID      string          `json:"customer_id,omitempty"`
	CashRegisterID  string          `json:"cash_register_id,omitempty"`
	IdempotencyKey  string          `json:"idempotency_key,omitempty"`
	Status          string          `json:"status"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Total           decimal.Decimal `json:"total"`
	Items           []OrderItem     `json:"items"`
	Active          bool            `json:"active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type Payment struct {
	ID      string          `json:"id"`
	OrderID string          `json:"order_id"`
	Method  string          `json:"method"`
	Amount  decimal.Decimal `json:"amount"`
}

type PaymentInput struct {
	Method  string          `json:"method"`
	Amount  decimal.Decimal `json:"amount"`
	DueDate string          `json:"due_date,omitempty"`
}

type OrderSubmitRequest struct {
	OrderID         string          `json:"order_id,omitempty"`
	IdempotencyKey  string          `json:"idempotency_key,omitempty"`
	CustomerID      string          `json:"customer_id,omitempty"`
	Items           []OrderItem     `json:"items"`
	Payments        []PaymentInput  `json:"payments"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	OverridePIN     string          `json:"override_pin,omitempty"`
	TargetStatus    string          `json:"target_status"`
}

type OrderResponse struct {
	Order    Order     `json:"order"`
	Payments []Payment `json:"payments"`
}

// SettlementEffects carries the financial side effects of completing an order.
// The store applies them atomically with the stock deduction, and only on the
// transition into COMPLETED, so a re-save of a completed order cannot
// double-book the ledger or spawn duplicate receivables.
type SettlementEffects struct {
	Receivables     []AccountReceivable
	TreasuryEntries []TreasuryTransaction
}

type AccountReceivable struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"order_id"`
	CustomerID string          `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	DueDate    time.Time       `json:"due_date"`
	Status     string          `json:"status"`
	PaidAt     *time.Time      `json:"paid_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

type CashRegister struct {
	ID             string          `json:"id"`
	Status         string          `json:"status"`
	InitialAmount  decimal.Decimal `json:"initial_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	RetainedAmount decimal.Decimal `json:"retained_amount"`
	OpenedBy       string          `json:"opened_by"`
	OpenedAt       time.Time       `json:"opened_at"`
	ClosedAt       *time.Time      `json:"closed_at,omitempty"`
}

type RegisterOpenRequest struct {
	InitialAmount     decimal.Decimal `json:"initial_amount"`
	ConfirmWithdrawal bool            `json:"confirm_withdrawal"`
}

type RegisterCloseRequest struct {
	CountedCash    decimal.Decimal `json:"counted_cash"`
	TransferAmount decimal.Decimal `json:"transfer_amount"`
}

type RegisterCloseResponse struct {
	Register     CashRegister    `json:"register"`
	ExpectedCash decimal.Decimal `json:"expected_cash"`
	Difference   decimal.Decimal `json:"difference"`
}

type RegisterStatusResponse struct {
	Open           bool                       `json:"open"`
	Register       *CashRegister              `json:"register,omitempty"`
	TotalsByMethod map[string]decimal.Decimal `json:"totals_by_method,omitempty"`
	ExpectedCash   decimal.Decimal            `json:"expected_cash"`
	SuggestedFloat decimal.Decimal            `json:"suggested_float"`
}

type TreasuryTransaction struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	Category    string          `json:"category"`
	Date        time.Time       `json:"date"`
}

type TreasuryEntryRequest struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
}

type StockMovement struct {
	ID        string    `json:"id"`
	VariantID string    `json:"variant_id"`
	Type      string    `json:"type"`
	Qty       int       `json:"qty"`
	Reason    string    `json:"reason"`
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type RestockRequest struct {
	VariantID  string                `json:"variant_id,omitempty"`
	NewVariant *VariantCreateRequest `json:"new_variant,omitempty"`
	Qty        int                   `json:"qty"`
	UnitCost   decimal.Decimal       `json:"unit_cost"`
}

type RestockResponse struct {
	Variant ProductVariant  `json:"variant"`
	NewCost decimal.Decimal `json:"new_cost"`
}

type ReturnItem struct {
	VariantID string `json:"variant_id"`
	Qty       int    `json:"qty"`
}

type ReturnRequest struct {
	OrderID      string          `json:"order_id"`
	Items        []ReturnItem    `json:"items"`
	Restock      bool            `json:"restock"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	Reason       string          `json:"reason"`
}

type OrderReturn struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"order_id"`
	Items        []ReturnItem    `json:"items"`
	Restocked    bool            `json:"restocked"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	Reason       string          `json:"reason"`
	ProcessedBy  string          `json:"processed_by"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string          `json:"access_token"`
	Role        string          `json:"role"`
	MaxDiscount decimal.Decimal `json:"max_discount_percent"`
	ExpiresAt   string          `json:"expires_at"`
}

type Actor struct {
	Username    string
	Role        string
	MaxDiscount decimal.Decimal
}

type CashierCreateRequest struct {
	Username    string          `json:"username"`
	Password    string          `json:"password"`
	MaxDiscount decimal.Decimal `json:"max_discount_percent"`
}

type CashierUser struct {
	Username    string          `json:"username"`
	Role        string          `json:"role"`
	MaxDiscount decimal.Decimal `json:"max_discount_percent"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username    string
	Password    string
	Role        string
	MaxDiscount decimal.Decimal
	Active      bool
	CreatedAt   time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	OrderStatusPending   = "PENDING"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusCancelled = "CANCELLED"
)

const (
	PaymentCash      = "DINHEIRO"
	PaymentCard      = "CARTAO"
	PaymentPix       = "PIX"
	PaymentCrediario = "CREDIARIO"
)

const (
	ReceivablePending = "PENDING"
	ReceivablePaid    = "PAID"
	ReceivableOverdue = "OVERDUE"
)

const (
	RegisterOpen   = "OPEN"
	RegisterClosed = "CLOSED"
)

const (
	TreasuryIn  = "IN"
	TreasuryOut = "OUT"
)

const (
	CategorySupplyPDV         = "SUPPLY_PDV"
	CategoryBreakage          = "BREAKAGE"
	CategorySurplus           = "SURPLUS"
	CategoryInternalTransfer  = "INTERNAL_TRANSFER"
	CategoryDigitalSale       = "DIGITAL_SALE"
	CategoryRestock           = "RESTOCK"
	CategoryRefund            = "REFUND"
	CategoryReceivableSettled = "RECEIVABLE_SETTLED"
	CategoryManualIn          = "MANUAL_IN"
	CategoryManualOut         = "MANUAL_OUT"
)

const (
	MovementIn  = "IN"
	MovementOut = "OUT"
)

// CashTolerance is the rounding tolerance applied to every cash comparison:
// payment sums, change detection and drawer reconciliation at close.
var CashTolerance = decimal.NewFromFloat(0.01)
