package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"modaloja/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// InsufficientStockError names the variant that could not be deducted and how
// many units were actually available. errors.Is(err, ErrInsufficientStock)
// matches it.
type InsufficientStockError struct {
	SKU       string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.SKU, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

type Repository interface {
	// Products and variants.
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateVariant(ctx context.Context, variant domain.ProductVariant) (*domain.ProductVariant, error)
	GetVariantByID(ctx context.Context, id string) (*domain.ProductVariant, error)
	GetVariantBySKU(ctx context.Context, sku string) (*domain.ProductVariant, error)
	ListVariantsByProduct(ctx context.Context, productID string) ([]domain.ProductVariant, error)
	ListLowStockVariants(ctx context.Context) ([]domain.ProductVariant, error)
	DeactivateVariant(ctx context.Context, id string) error

	// Orders and settlement. SaveOrder persists the order and its payments
	// (overwriting prior payments), and applies the settlement effects plus
	// the stock deduction only on the transition into COMPLETED, all in one
	// atomic unit. A caller-supplied ID must name an existing order
	// (ErrNotFound otherwise), and orders already in a terminal status
	// reject the update with ErrValidation.
	SaveOrder(ctx context.Context, order domain.Order, payments []domain.Payment, effects domain.SettlementEffects) (*domain.Order, error)
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	FindOrderByIdempotency(ctx context.Context, key string) (*domain.Order, error)
	ListOrders(ctx context.Context, from time.Time, to time.Time, status string, limit int) ([]domain.Order, error)
	ListPaymentsByOrder(ctx context.Context, orderID string) ([]domain.Payment, error)
	CancelOrder(ctx context.Context, id string, at time.Time) (*domain.Order, error)

	// Cash register lifecycle. OpenRegister fails with ErrConflict when a
	// register is already OPEN; when confirmWithdrawal is set it books the
	// SUPPLY_PDV top-up (initial amount minus the last closed register's
	// retained float, when positive) in the same atomic unit as the open.
	// CloseOpenRegister computes expected cash from
	// the register's DINHEIRO payments, writes the breakage/surplus and
	// transfer ledger entries, and transitions the register to CLOSED; it
	// returns the closed register and the counted-minus-expected difference.
	OpenRegister(ctx context.Context, register domain.CashRegister, confirmWithdrawal bool) (*domain.CashRegister, error)
	CloseOpenRegister(ctx context.Context, countedCash decimal.Decimal, transferAmount decimal.Decimal, closedAt time.Time) (*domain.CashRegister, decimal.Decimal, error)
	GetOpenRegister(ctx context.Context) (*domain.CashRegister, error)
	GetLastClosedRegister(ctx context.Context) (*domain.CashRegister, error)
	SumPaymentsByMethod(ctx context.Context, registerID string) (map[string]decimal.Decimal, error)

	// Restock and inventory. RestockVariant recomputes the product-level
	// weighted-average cost, increments the variant stock, and writes the
	// stock movement and treasury expense in one transaction.
	RestockVariant(ctx context.Context, variantID string, qty int, unitCost decimal.Decimal) (*domain.ProductVariant, decimal.Decimal, error)
	ApplyReturn(ctx context.Context, ret domain.OrderReturn, refund domain.TreasuryTransaction) (*domain.OrderReturn, error)
	ListStockMovements(ctx context.Context, variantID string, limit int) ([]domain.StockMovement, error)

	// Receivables.
	GetReceivableByID(ctx context.Context, id string) (*domain.AccountReceivable, error)
	MarkReceivablePaid(ctx context.Context, id string, paidAt time.Time) (*domain.AccountReceivable, error)
	ListReceivables(ctx context.Context, customerID string, status string, limit int) ([]domain.AccountReceivable, error)

	// Treasury ledger (append-only).
	CreateTreasuryTransaction(ctx context.Context, entry domain.TreasuryTransaction) (*domain.TreasuryTransaction, error)
	ListTreasuryTransactions(ctx context.Context, from time.Time, to time.Time, category string, limit int) ([]domain.TreasuryTransaction, error)

	// Customer directory.
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	SearchCustomers(ctx context.Context, query string, limit int) ([]domain.Customer, error)

	// Audit trail and auth accounts.
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
