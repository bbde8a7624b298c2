package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"modaloja/backend/internal/domain"
	"modaloja/backend/internal/store"
	"modaloja/backend/internal/xid"
)

// Store is the in-memory repository used for dev mode and tests. A single
// mutex makes every operation atomic, mirroring the serializable transaction
// each postgres operation runs in.
type Store struct {
	mu               sync.Mutex
	products         map[string]domain.Product
	variants         map[string]domain.ProductVariant
	ordersByID       map[string]*domain.Order
	ordersByIdem     map[string]string
	paymentsByOrder  map[string][]domain.Payment
	receivablesByID  map[string]domain.AccountReceivable
	registersByID    map[string]domain.CashRegister
	treasury         []domain.TreasuryTransaction
	movements        []domain.StockMovement
	returnsByID      map[string]domain.OrderReturn
	returnedByOrder  map[string]map[string]int
	customersByID    map[string]domain.Customer
	auditLogs        []domain.AuditLog
	usersByUsername  map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_SELLER_PASSWORD; if
// unset, hardcoded dev defaults are used with a warning. Production
// deployments use PostgreSQL (DATABASE_URL) and never hit this path.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	sellerPwd := envOr("SEED_SELLER_PASSWORD", "vendedor123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_SELLER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_SELLER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username    string
		password    string
		role        string
		maxDiscount decimal.Decimal
	}{
		{"admin", adminPwd, "admin", decimal.NewFromInt(100)},
		{"vendedor", sellerPwd, "seller", decimal.NewFromInt(10)},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:    u.username,
			Password:    string(hash),
			Role:        u.role,
			MaxDiscount: u.maxDiscount,
			Active:      true,
			CreatedAt:   now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	products := []domain.Product{
		{ID: "prod-camiseta", Name: "Camiseta Básica", Category: "camisetas", SalePrice: dec("49.90"), CostPrice: dec("18.00"), Active: true},
		{ID: "prod-calca", Name: "Calça Jeans Slim", Category: "calcas", SalePrice: dec("159.90"), CostPrice: dec("72.50"), Active: true},
		{ID: "prod-vestido", Name: "Vestido Midi Floral", Category: "vestidos", SalePrice: dec("189.90"), CostPrice: dec("85.00"), Active: true},
		{ID: "prod-jaqueta", Name: "Jaqueta Corta-Vento", Category: "jaquetas", SalePrice: dec("229.90"), CostPrice: dec("110.00"), Active: true},
	}
	variants := []domain.ProductVariant{
		{ID: "var-camiseta-p", ProductID: "prod-camiseta", SKU: "CAM-BAS-P-BRANCO", Size: "P", Color: "branco", StockQuantity: 20, MinStock: 5, Active: true},
		{ID: "var-camiseta-m", ProductID: "prod-camiseta", SKU: "CAM-BAS-M-PRETO", Size: "M", Color: "preto", StockQuantity: 25, MinStock: 5, Active: true},
		{ID: "var-calca-38", ProductID: "prod-calca", SKU: "CAL-JEA-38-AZUL", Size: "38", Color: "azul", StockQuantity: 12, MinStock: 3, Active: true},
		{ID: "var-calca-40", ProductID: "prod-calca", SKU: "CAL-JEA-40-AZUL", Size: "40", Color: "azul", StockQuantity: 10, MinStock: 3, Active: true},
		{ID: "var-vestido-m", ProductID: "prod-vestido", SKU: "VES-MID-M-FLORAL", Size: "M", Color: "floral", StockQuantity: 8, MinStock: 2, Active: true},
		{ID: "var-jaqueta-g", ProductID: "prod-jaqueta", SKU: "JAQ-CV-G-VERDE", Size: "G", Color: "verde", StockQuantity: 6, MinStock: 2, Active: true},
	}
	customers := []domain.Customer{
		{ID: "cust-maria", Name: "Maria Souza", Phone: "11 98888-1111", Active: true, CreatedAt: time.Now().UTC()},
		{ID: "cust-joao", Name: "João Pereira", Phone: "11 97777-2222", Active: true, CreatedAt: time.Now().UTC()},
	}

	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		p.CreatedAt = time.Now().UTC()
		p.UpdatedAt = p.CreatedAt
		productMap[p.ID] = p
	}
	variantMap := make(map[string]domain.ProductVariant, len(variants))
	for _, v := range variants {
		variantMap[v.ID] = v
	}
	customerMap := make(map[string]domain.Customer, len(customers))
	for _, c := range customers {
		customerMap[c.ID] = c
	}

	return &Store{
		products:        productMap,
		variants:        variantMap,
		ordersByID:      make(map[string]*domain.Order),
		ordersByIdem:    make(map[string]string),
		paymentsByOrder: make(map[string][]domain.Payment),
		receivablesByID: make(map[string]domain.AccountReceivable),
		registersByID:   make(map[string]domain.CashRegister),
		treasury:        make([]domain.TreasuryTransaction, 0, 128),
		movements:       make([]domain.StockMovement, 0, 128),
		returnsByID:     make(map[string]domain.OrderReturn),
		returnedByOrder: make(map[string]map[string]int),
		customersByID:   customerMap,
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ---- products & variants ----

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.Category == "" || product.SalePrice.LessThanOrEqual(decimal.Zero) {
		return nil, store.ErrValidation
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrConflict
	}
	now := time.Now().UTC()
	product.Active = true
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if product.Name == "" || product.Category == "" || product.SalePrice.LessThanOrEqual(decimal.Zero) {
		return nil, store.ErrValidation
	}
	product.CostPrice = existing.CostPrice
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := product
	return &copied, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.Category, b.Category)
	})
	return products, nil
}

func (s *Store) CreateVariant(_ context.Context, variant domain.ProductVariant) (*domain.ProductVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createVariantLocked(variant)
}

func (s *Store) createVariantLocked(variant domain.ProductVariant) (*domain.ProductVariant, error) {
	if variant.ProductID == "" || variant.SKU == "" {
		return nil, store.ErrValidation
	}
	if variant.MinStock < 0 {
		return nil, store.ErrValidation
	}
	if _, ok := s.products[variant.ProductID]; !ok {
		return nil, store.ErrNotFound
	}
	for _, v := range s.variants {
		if v.SKU == variant.SKU {
			return nil, store.ErrConflict
		}
	}
	if variant.ID == "" {
		variant.ID = xid.New("var")
	}
	// New variants always start at zero stock; units arrive through restock.
	variant.StockQuantity = 0
	variant.Active = true
	s.variants[variant.ID] = variant
	created := variant
	return &created, nil
}

func (s *Store) GetVariantByID(_ context.Context, id string) (*domain.ProductVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	variant, ok := s.variants[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := variant
	return &copied, nil
}

func (s *Store) GetVariantBySKU(_ context.Context, sku string) (*domain.ProductVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.variants {
		if v.SKU == sku {
			copied := v
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListVariantsByProduct(_ context.Context, productID string) ([]domain.ProductVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	variants := make([]domain.ProductVariant, 0, 8)
	for _, v := range s.variants {
		if v.ProductID == productID {
			variants = append(variants, v)
		}
	}
	slices.SortFunc(variants, func(a, b domain.ProductVariant) int {
		return strings.Compare(a.SKU, b.SKU)
	})
	return variants, nil
}

func (s *Store) ListLowStockVariants(_ context.Context) ([]domain.ProductVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	variants := make([]domain.ProductVariant, 0, 8)
	for _, v := range s.variants {
		if v.Active && v.StockQuantity <= v.MinStock {
			variants = append(variants, v)
		}
	}
	slices.SortFunc(variants, func(a, b domain.ProductVariant) int {
		return strings.Compare(a.SKU, b.SKU)
	})
	return variants, nil
}

// DeactivateVariant hides a variant from sale. Variants are never deleted:
// their stock movements must stay resolvable.
func (s *Store) DeactivateVariant(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	variant, ok := s.variants[id]
	if !ok {
		return store.ErrNotFound
	}
	variant.Active = false
	s.variants[id] = variant
	return nil
}

// ---- orders & settlement ----

func (s *Store) SaveOrder(_ context.Context, order domain.Order, payments []domain.Payment, effects domain.SettlementEffects) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(order.Items) == 0 {
		return nil, fmt.Errorf("%w: order has no items", store.ErrValidation)
	}
	for _, item := range order.Items {
		if item.VariantID == "" || item.Qty < 1 {
			return nil, fmt.Errorf("%w: invalid order item", store.ErrValidation)
		}
	}

	if order.IdempotencyKey != "" {
		if existingID, ok := s.ordersByIdem[order.IdempotencyKey]; ok {
			existing := *s.ordersByID[existingID]
			return &existing, nil
		}
	}

	priorStatus := ""
	if order.ID != "" {
		existing, ok := s.ordersByID[order.ID]
		if !ok || !existing.Active {
			return nil, fmt.Errorf("%w: order %s", store.ErrNotFound, order.ID)
		}
		priorStatus = existing.Status
		order.CreatedAt = existing.CreatedAt
	}
	// Completed and cancelled orders are immutable: their payments and ledger
	// effects were applied together and an update would split them apart.
	if priorStatus == domain.OrderStatusCompleted || priorStatus == domain.OrderStatusCancelled {
		return nil, fmt.Errorf("%w: order in status %s cannot be updated", store.ErrValidation, priorStatus)
	}
	if order.ID == "" {
		order.ID = xid.New("order")
	}

	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	order.Active = true

	// Stock is deducted exactly once, on the transition into COMPLETED.
	completing := order.Status == domain.OrderStatusCompleted && priorStatus != domain.OrderStatusCompleted
	if completing {
		for _, item := range order.Items {
			variant, ok := s.variants[item.VariantID]
			if !ok {
				return nil, fmt.Errorf("%w: variant %s", store.ErrNotFound, item.VariantID)
			}
			if variant.StockQuantity < item.Qty {
				return nil, &store.InsufficientStockError{SKU: variant.SKU, Requested: item.Qty, Available: variant.StockQuantity}
			}
		}
		for _, item := range order.Items {
			variant := s.variants[item.VariantID]
			variant.StockQuantity -= item.Qty
			s.variants[item.VariantID] = variant
			s.movements = append(s.movements, domain.StockMovement{
				ID:        xid.New("mov"),
				VariantID: item.VariantID,
				Type:      domain.MovementOut,
				Qty:       item.Qty,
				Reason:    "venda",
				Reference: order.ID,
				CreatedAt: now,
			})
		}
		for _, receivable := range effects.Receivables {
			if receivable.ID == "" {
				receivable.ID = xid.New("ar")
			}
			receivable.OrderID = order.ID
			receivable.Status = domain.ReceivablePending
			receivable.CreatedAt = now
			s.receivablesByID[receivable.ID] = receivable
		}
		for _, entry := range effects.TreasuryEntries {
			if entry.ID == "" {
				entry.ID = xid.New("tt")
			}
			if entry.Date.IsZero() {
				entry.Date = now
			}
			s.treasury = append(s.treasury, entry)
		}
	}

	// Payments are overwritten, not appended: an order update replaces the
	// prior split entirely.
	saved := make([]domain.Payment, 0, len(payments))
	for _, payment := range payments {
		if payment.ID == "" {
			payment.ID = xid.New("pay")
		}
		payment.OrderID = order.ID
		saved = append(saved, payment)
	}
	s.paymentsByOrder[order.ID] = saved

	stored := order
	s.ordersByID[order.ID] = &stored
	if order.IdempotencyKey != "" {
		s.ordersByIdem[order.IdempotencyKey] = order.ID
	}
	result := stored
	return &result, nil
}

func (s *Store) GetOrderByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.ordersByID[id]
	if !ok || !order.Active {
		return nil, store.ErrNotFound
	}
	copied := *order
	return &copied, nil
}

func (s *Store) FindOrderByIdempotency(_ context.Context, key string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.ordersByIdem[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *s.ordersByID[id]
	return &copied, nil
}

func (s *Store) ListOrders(_ context.Context, from time.Time, to time.Time, status string, limit int) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit < 1 {
		limit = 100
	}
	orders := make([]domain.Order, 0, limit)
	for _, order := range s.ordersByID {
		if !order.Active {
			continue
		}
		if status != "" && order.Status != status {
			continue
		}
		if !from.IsZero() && order.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !order.CreatedAt.Before(to) {
			continue
		}
		orders = append(orders, *order)
	}
	slices.SortFunc(orders, func(a, b domain.Order) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (s *Store) ListPaymentsByOrder(_ context.Context, orderID string) ([]domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payments := s.paymentsByOrder[orderID]
	result := make([]domain.Payment, len(payments))
	copy(result, payments)
	return result, nil
}

func (s *Store) CancelOrder(_ context.Context, id string, at time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.ordersByID[id]
	if !ok || !order.Active {
		return nil, store.ErrNotFound
	}
	if order.Status == domain.OrderStatusCancelled {
		return nil, fmt.Errorf("%w: order already cancelled", store.ErrValidation)
	}

	// Cancelling a completed order reverses the deduction, unit for unit.
	if order.Status == domain.OrderStatusCompleted {
		for _, item := range order.Items {
			variant, ok := s.variants[item.VariantID]
			if !ok {
				continue
			}
			variant.StockQuantity += item.Qty
			s.variants[item.VariantID] = variant
			s.movements = append(s.movements, domain.StockMovement{
				ID:        xid.New("mov"),
				VariantID: item.VariantID,
				Type:      domain.MovementIn,
				Qty:       item.Qty,
				Reason:    "cancelamento",
				Reference: order.ID,
				CreatedAt: at,
			})
		}
	}

	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = at
	copied := *order
	return &copied, nil
}

// ---- cash register ----

func (s *Store) OpenRegister(_ context.Context, register domain.CashRegister, confirmWithdrawal bool) (*domain.CashRegister, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.registersByID {
		if existing.Status == domain.RegisterOpen {
			return nil, fmt.Errorf("%w: a cash register is already open", store.ErrConflict)
		}
	}

	if register.ID == "" {
		register.ID = xid.New("reg")
	}
	if register.OpenedAt.IsZero() {
		register.OpenedAt = time.Now().UTC()
	}
	register.Status = domain.RegisterOpen
	register.RetainedAmount = decimal.Zero
	register.FinalAmount = decimal.Zero
	register.ClosedAt = nil
	s.registersByID[register.ID] = register

	// The last close's retained float is already in the drawer, so only the
	// top-up to the requested opening amount leaves the treasury. Reading it
	// under the same lock keeps the amount consistent with a racing close.
	if confirmWithdrawal {
		previous := decimal.Zero
		if last := s.lastClosedLocked(); last != nil {
			previous = last.RetainedAmount
		}
		topUp := register.InitialAmount.Sub(previous)
		if topUp.GreaterThan(decimal.Zero) {
			s.treasury = append(s.treasury, domain.TreasuryTransaction{
				ID:          xid.New("tt"),
				Description: "suprimento de caixa",
				Amount:      topUp,
				Type:        domain.TreasuryOut,
				Category:    domain.CategorySupplyPDV,
				Date:        register.OpenedAt,
			})
		}
	}

	created := register
	return &created, nil
}

func (s *Store) CloseOpenRegister(_ context.Context, countedCash decimal.Decimal, transferAmount decimal.Decimal, closedAt time.Time) (*domain.CashRegister, decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var open *domain.CashRegister
	for id := range s.registersByID {
		register := s.registersByID[id]
		if register.Status == domain.RegisterOpen {
			open = &register
			break
		}
	}
	if open == nil {
		return nil, decimal.Zero, fmt.Errorf("%w: no open cash register", store.ErrValidation)
	}
	if transferAmount.GreaterThan(countedCash) {
		return nil, decimal.Zero, fmt.Errorf("%w: transfer exceeds counted cash", store.ErrValidation)
	}

	expected := open.InitialAmount.Add(s.sumCashPaymentsLocked(open.ID))
	difference := countedCash.Sub(expected)

	if difference.Abs().GreaterThan(domain.CashTolerance) {
		entry := domain.TreasuryTransaction{
			ID:     xid.New("tt"),
			Amount: difference.Abs(),
			Date:   closedAt,
		}
		if difference.IsNegative() {
			entry.Type = domain.TreasuryOut
			entry.Category = domain.CategoryBreakage
			entry.Description = "quebra de caixa " + open.ID
		} else {
			entry.Type = domain.TreasuryIn
			entry.Category = domain.CategorySurplus
			entry.Description = "sobra de caixa " + open.ID
		}
		s.treasury = append(s.treasury, entry)
	}
	if transferAmount.GreaterThan(decimal.Zero) {
		s.treasury = append(s.treasury, domain.TreasuryTransaction{
			ID:          xid.New("tt"),
			Description: "sangria " + open.ID,
			Amount:      transferAmount,
			Type:        domain.TreasuryIn,
			Category:    domain.CategoryInternalTransfer,
			Date:        closedAt,
		})
	}

	open.Status = domain.RegisterClosed
	open.FinalAmount = countedCash
	open.RetainedAmount = countedCash.Sub(transferAmount)
	open.ClosedAt = &closedAt
	s.registersByID[open.ID] = *open

	closed := *open
	return &closed, difference, nil
}

func (s *Store) GetOpenRegister(_ context.Context) (*domain.CashRegister, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, register := range s.registersByID {
		if register.Status == domain.RegisterOpen {
			copied := register
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetLastClosedRegister(_ context.Context) (*domain.CashRegister, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	last := s.lastClosedLocked()
	if last == nil {
		return nil, store.ErrNotFound
	}
	return last, nil
}

func (s *Store) lastClosedLocked() *domain.CashRegister {
	var last *domain.CashRegister
	for id := range s.registersByID {
		register := s.registersByID[id]
		if register.Status != domain.RegisterClosed || register.ClosedAt == nil {
			continue
		}
		if last == nil || register.ClosedAt.After(*last.ClosedAt) {
			copied := register
			last = &copied
		}
	}
	return last
}

func (s *Store) SumPaymentsByMethod(_ context.Context, registerID string) (map[string]decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	totals := map[string]decimal.Decimal{}
	for _, order := range s.ordersByID {
		if order.CashRegisterID != registerID || order.Status != domain.OrderStatusCompleted {
			continue
		}
		for _, payment := range s.paymentsByOrder[order.ID] {
			totals[payment.Method] = totals[payment.Method].Add(payment.Amount)
		}
	}
	return totals, nil
}

func (s *Store) sumCashPaymentsLocked(registerID string) decimal.Decimal {
	sum := decimal.Zero
	for _, order := range s.ordersByID {
		if order.CashRegisterID != registerID || order.Status != domain.OrderStatusCompleted {
			continue
		}
		for _, payment := range s.paymentsByOrder[order.ID] {
			if payment.Method == domain.PaymentCash {
				sum = sum.Add(payment.Amount)
			}
		}
	}
	return sum
}

// ---- restock & inventory ----

func (s *Store) RestockVariant(_ context.Context, variantID string, qty int, unitCost decimal.Decimal) (*domain.ProductVariant, decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if qty < 1 || unitCost.LessThanOrEqual(decimal.Zero) {
		return nil, decimal.Zero, fmt.Errorf("%w: qty and unit cost must be positive", store.ErrValidation)
	}
	variant, ok := s.variants[variantID]
	if !ok {
		return nil, decimal.Zero, fmt.Errorf("%w: variant %s", store.ErrNotFound, variantID)
	}
	product, ok := s.products[variant.ProductID]
	if !ok {
		return nil, decimal.Zero, fmt.Errorf("%w: product %s", store.ErrNotFound, variant.ProductID)
	}

	// The cost basis is product-wide: all variants of one garment share it.
	totalStock := 0
	for _, v := range s.variants {
		if v.ProductID == product.ID {
			totalStock += v.StockQuantity
		}
	}
	newCost := weightedAverageCost(totalStock, product.CostPrice, qty, unitCost)

	now := time.Now().UTC()
	variant.StockQuantity += qty
	s.variants[variant.ID] = variant
	product.CostPrice = newCost
	product.UpdatedAt = now
	s.products[product.ID] = product

	s.movements = append(s.movements, domain.StockMovement{
		ID:        xid.New("mov"),
		VariantID: variant.ID,
		Type:      domain.MovementIn,
		Qty:       qty,
		Reason:    "reposicao",
		CreatedAt: now,
	})
	s.treasury = append(s.treasury, domain.TreasuryTransaction{
		ID:          xid.New("tt"),
		Description: fmt.Sprintf("reposição %s x%d", variant.SKU, qty),
		Amount:      unitCost.Mul(decimal.NewFromInt(int64(qty))).Round(2),
		Type:        domain.TreasuryOut,
		Category:    domain.CategoryRestock,
		Date:        now,
	})

	restocked := variant
	return &restocked, newCost, nil
}

// weightedAverageCost blends the existing cost basis with the incoming units.
// With zero prior stock the formula collapses to the new unit cost, which is
// exactly the reset behavior wanted after a product sells out.
func weightedAverageCost(currentStock int, currentCost decimal.Decimal, qty int, unitCost decimal.Decimal) decimal.Decimal {
	current := decimal.NewFromInt(int64(currentStock))
	incoming := decimal.NewFromInt(int64(qty))
	if currentStock <= 0 {
		return unitCost.Round(4)
	}
	blended := current.Mul(currentCost).Add(incoming.Mul(unitCost))
	return blended.Div(current.Add(incoming)).Round(4)
}

func (s *Store) ApplyReturn(_ context.Context, ret domain.OrderReturn, refund domain.TreasuryTransaction) (*domain.OrderReturn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.ordersByID[ret.OrderID]
	if !ok || !order.Active {
		return nil, fmt.Errorf("%w: order %s", store.ErrNotFound, ret.OrderID)
	}
	if order.Status != domain.OrderStatusCompleted {
		return nil, fmt.Errorf("%w: only completed orders can be returned", store.ErrValidation)
	}

	soldByVariant := make(map[string]int, len(order.Items))
	for _, item := range order.Items {
		soldByVariant[item.VariantID] += item.Qty
	}
	returned := s.returnedByOrder[ret.OrderID]
	if returned == nil {
		returned = map[string]int{}
	}
	for _, item := range ret.Items {
		if item.Qty < 1 {
			return nil, fmt.Errorf("%w: return qty must be positive", store.ErrValidation)
		}
		if returned[item.VariantID]+item.Qty > soldByVariant[item.VariantID] {
			return nil, fmt.Errorf("%w: return exceeds sold quantity for variant %s", store.ErrValidation, item.VariantID)
		}
	}

	now := time.Now().UTC()
	for _, item := range ret.Items {
		returned[item.VariantID] += item.Qty
		if !ret.Restocked {
			continue
		}
		variant, ok := s.variants[item.VariantID]
		if !ok {
			continue
		}
		variant.StockQuantity += item.Qty
		s.variants[item.VariantID] = variant
		s.movements = append(s.movements, domain.StockMovement{
			ID:        xid.New("mov"),
			VariantID: item.VariantID,
			Type:      domain.MovementIn,
			Qty:       item.Qty,
			Reason:    "devolucao",
			Reference: ret.OrderID,
			CreatedAt: now,
		})
	}
	s.returnedByOrder[ret.OrderID] = returned

	if ret.ID == "" {
		ret.ID = xid.New("ret")
	}
	ret.CreatedAt = now
	s.returnsByID[ret.ID] = ret

	if refund.ID == "" {
		refund.ID = xid.New("tt")
	}
	if refund.Date.IsZero() {
		refund.Date = now
	}
	s.treasury = append(s.treasury, refund)

	created := ret
	return &created, nil
}

func (s *Store) ListStockMovements(_ context.Context, variantID string, limit int) ([]domain.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit < 1 {
		limit = 100
	}
	result := make([]domain.StockMovement, 0, limit)
	for i := len(s.movements) - 1; i >= 0 && len(result) < limit; i-- {
		if variantID != "" && s.movements[i].VariantID != variantID {
			continue
		}
		result = append(result, s.movements[i])
	}
	return result, nil
}

// ---- receivables ----

func (s *Store) GetReceivableByID(_ context.Context, id string) (*domain.AccountReceivable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	receivable, ok := s.receivablesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := withDerivedStatus(receivable, time.Now().UTC())
	return &copied, nil
}

func (s *Store) MarkReceivablePaid(_ context.Context, id string, paidAt time.Time) (*domain.AccountReceivable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	receivable, ok := s.receivablesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if receivable.Status == domain.ReceivablePaid {
		return nil, fmt.Errorf("%w: receivable already settled", store.ErrValidation)
	}

	receivable.Status = domain.ReceivablePaid
	receivable.PaidAt = &paidAt
	s.receivablesByID[id] = receivable

	// Crediário revenue is recognized here and nowhere else.
	s.treasury = append(s.treasury, domain.TreasuryTransaction{
		ID:          xid.New("tt"),
		Description: "crediário quitado " + receivable.OrderID,
		Amount:      receivable.Amount,
		Type:        domain.TreasuryIn,
		Category:    domain.CategoryReceivableSettled,
		Date:        paidAt,
	})

	copied := receivable
	return &copied, nil
}

func (s *Store) ListReceivables(_ context.Context, customerID string, status string, limit int) ([]domain.AccountReceivable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit < 1 {
		limit = 100
	}
	now := time.Now().UTC()
	result := make([]domain.AccountReceivable, 0, limit)
	for _, receivable := range s.receivablesByID {
		derived := withDerivedStatus(receivable, now)
		if customerID != "" && derived.CustomerID != customerID {
			continue
		}
		if status != "" && derived.Status != status {
			continue
		}
		result = append(result, derived)
	}
	slices.SortFunc(result, func(a, b domain.AccountReceivable) int {
		if a.DueDate.Equal(b.DueDate) {
			return strings.Compare(a.ID, b.ID)
		}
		if a.DueDate.Before(b.DueDate) {
			return -1
		}
		return 1
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// withDerivedStatus reports OVERDUE for pending receivables past their due
// date. The stored status stays PENDING until the receivable is settled.
func withDerivedStatus(receivable domain.AccountReceivable, now time.Time) domain.AccountReceivable {
	if receivable.Status == domain.ReceivablePending && receivable.DueDate.Before(now) {
		receivable.Status = domain.ReceivableOverdue
	}
	return receivable
}

// ---- treasury ----

func (s *Store) CreateTreasuryTransaction(_ context.Context, entry domain.TreasuryTransaction) (*domain.TreasuryTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: treasury amount must be positive", store.ErrValidation)
	}
	if entry.Type != domain.TreasuryIn && entry.Type != domain.TreasuryOut {
		return nil, fmt.Errorf("%w: treasury type must be IN or OUT", store.ErrValidation)
	}
	if entry.ID == "" {
		entry.ID = xid.New("tt")
	}
	if entry.Date.IsZero() {
		entry.Date = time.Now().UTC()
	}
	s.treasury = append(s.treasury, entry)
	created := entry
	return &created, nil
}

func (s *Store) ListTreasuryTransactions(_ context.Context, from time.Time, to time.Time, category string, limit int) ([]domain.TreasuryTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit < 1 {
		limit = 200
	}
	result := make([]domain.TreasuryTransaction, 0, limit)
	for i := len(s.treasury) - 1; i >= 0 && len(result) < limit; i-- {
		entry := s.treasury[i]
		if category != "" && entry.Category != category {
			continue
		}
		if !from.IsZero() && entry.Date.Before(from) {
			continue
		}
		if !to.IsZero() && !entry.Date.Before(to) {
			continue
		}
		result = append(result, entry)
	}
	return result, nil
}

// ---- customers ----

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.Name == "" {
		return nil, fmt.Errorf("%w: customer name required", store.ErrValidation)
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	customer.Active = true
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	s.customersByID[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, ok := s.customersByID[id]
	if !ok || !customer.Active {
		return nil, store.ErrNotFound
	}
	copied := customer
	return &copied, nil
}

func (s *Store) SearchCustomers(_ context.Context, query string, limit int) ([]domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit < 1 {
		limit = 50
	}
	query = strings.ToLower(strings.TrimSpace(query))
	result := make([]domain.Customer, 0, limit)
	for _, customer := range s.customersByID {
		if !customer.Active {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(customer.Name), query) && !strings.Contains(customer.Phone, query) {
			continue
		}
		result = append(result, customer)
	}
	slices.SortFunc(result, func(a, b domain.Customer) int {
		return strings.Compare(a.Name, b.Name)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ---- audit & users ----

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit < 1 {
		limit = 100
	}
	result := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0 && len(result) < limit; i-- {
		entry := s.auditLogs[i]
		if !from.IsZero() && entry.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" || user.Password == "" {
		return store.ErrValidation
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrConflict
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}
