package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"modaloja/backend/internal/cache"
	"modaloja/backend/internal/domain"
	"modaloja/backend/internal/store"
)

// ErrForbidden marks operations rejected because the actor is missing or
// lacks the required role.
var ErrForbidden = errors.New("forbidden")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const registerStatusCacheKey = "register:status"

type Service struct {
	repo              store.Repository
	statusCache       cache.RegisterStatusCache
	ownerPIN          string
	ownerMaxDiscount  decimal.Decimal
	receivableDueDays int
	statusTTL         time.Duration
}

func New(repo store.Repository, statusCache cache.RegisterStatusCache, ownerPIN string, ownerMaxDiscount decimal.Decimal, receivableDueDays int, statusTTL time.Duration) *Service {
	if statusCache == nil {
		statusCache = cache.NoopRegisterStatusCache{}
	}
	if receivableDueDays < 1 {
		receivableDueDays = 30
	}
	if statusTTL <= 0 {
		statusTTL = 15 * time.Second
	}

	return &Service{
		repo:              repo,
		statusCache:       statusCache,
		ownerPIN:          ownerPIN,
		ownerMaxDiscount:  ownerMaxDiscount,
		receivableDueDays: receivableDueDays,
		statusTTL:         statusTTL,
	}
}

// ---- cash register ----

func (s *Service) OpenRegister(ctx context.Context, req domain.RegisterOpenRequest) (domain.CashRegister, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.CashRegister{}, fmt.Errorf("%w: authenticated actor required", ErrForbidden)
	}
	if req.InitialAmount.IsNegative() {
		return domain.CashRegister{}, fmt.Errorf("%w: initial amount must not be negative", store.ErrValidation)
	}

	// The previous day's retained float is what should already be in the
	// drawer. Topping it up to the requested opening amount is a treasury
	// withdrawal, booked by the store in the same atomic unit as the open
	// and only when the operator confirms it.
	register := domain.CashRegister{
		InitialAmount: req.InitialAmount,
		OpenedBy:      actor.Username,
		OpenedAt:      time.Now().UTC(),
	}
	opened, err := s.repo.OpenRegister(ctx, register, req.ConfirmWithdrawal)
	if err != nil {
		return domain.CashRegister{}, err
	}

	s.invalidateRegisterStatus(ctx)
	s.logAudit(ctx, "register_open", "cash_register", opened.ID, fmt.Sprintf("initial=%s,confirm_withdrawal=%t", req.InitialAmount.StringFixed(2), req.ConfirmWithdrawal))
	return *opened, nil
}

func (s *Service) CloseRegister(ctx context.Context, req domain.RegisterCloseRequest) (domain.RegisterCloseResponse, error) {
	if req.CountedCash.IsNegative() || req.TransferAmount.IsNegative() {
		return domain.RegisterCloseResponse{}, fmt.Errorf("%w: amounts must not be negative", store.ErrValidation)
	}
	if req.TransferAmount.GreaterThan(req.CountedCash) {
		return domain.RegisterCloseResponse{}, fmt.Errorf("%w: transfer exceeds counted cash", store.ErrValidation)
	}

	closed, difference, err := s.repo.CloseOpenRegister(ctx, req.CountedCash, req.TransferAmount, time.Now().UTC())
	if err != nil {
		return domain.RegisterCloseResponse{}, err
	}

	s.invalidateRegisterStatus(ctx)
	s.logAudit(ctx, "register_close", "cash_register", closed.ID, fmt.Sprintf("counted=%s,transfer=%s,difference=%s", req.CountedCash.StringFixed(2), req.TransferAmount.StringFixed(2), difference.StringFixed(2)))

	return domain.RegisterCloseResponse{
		Register:     *closed,
		ExpectedCash: req.CountedCash.Sub(difference),
		Difference:   difference,
	}, nil
}

func (s *Service) GetRegisterStatus(ctx context.Context) (domain.RegisterStatusResponse, error) {
	if cached, ok, err := s.statusCache.Get(ctx, registerStatusCacheKey); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: register status cache get failed: %v", err)
	}

	resp := domain.RegisterStatusResponse{
		ExpectedCash:   decimal.Zero,
		SuggestedFloat: decimal.Zero,
	}
	if last, err := s.repo.GetLastClosedRegister(ctx); err == nil {
		resp.SuggestedFloat = last.RetainedAmount
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.RegisterStatusResponse{}, err
	}

	open, err := s.repo.GetOpenRegister(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return domain.RegisterStatusResponse{}, err
		}
	} else {
		totals, err := s.repo.SumPaymentsByMethod(ctx, open.ID)
		if err != nil {
			return domain.RegisterStatusResponse{}, err
		}
		resp.Open = true
		resp.Register = open
		resp.TotalsByMethod = totals
		resp.ExpectedCash = open.InitialAmount.Add(totals[domain.PaymentCash])
	}

	if err := s.statusCache.Set(ctx, registerStatusCacheKey, &resp, s.statusTTL); err != nil {
		log.Printf("[service] WARN: register status cache set failed: %v", err)
	}
	return resp, nil
}

func (s *Service) invalidateRegisterStatus(ctx context.Context) {
	if err := s.statusCache.Invalidate(ctx, registerStatusCacheKey); err != nil {
		log.Printf("[service] WARN: register status cache invalidate failed: %v", err)
	}
}

// ---- orders ----

func (s *Service) SubmitOrder(ctx context.Context, req domain.OrderSubmitRequest) (domain.OrderResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.OrderResponse{}, fmt.Errorf("%w: authenticated actor required", ErrForbidden)
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}
	if existing, err := s.repo.FindOrderByIdempotency(ctx, req.IdempotencyKey); err == nil {
		return s.orderResponse(ctx, existing)
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.OrderResponse{}, err
	}

	if req.TargetStatus == "" {
		req.TargetStatus = domain.OrderStatusCompleted
	}
	if req.TargetStatus != domain.OrderStatusPending && req.TargetStatus != domain.OrderStatusCompleted {
		return domain.OrderResponse{}, fmt.Errorf("%w: target status must be PENDING or COMPLETED", store.ErrValidation)
	}
	if len(req.Items) == 0 {
		return domain.OrderResponse{}, fmt.Errorf("%w: order has no items", store.ErrValidation)
	}

	// Prices and names come from the catalog, never from the client.
	items := make([]domain.OrderItem, 0, len(req.Items))
	subtotal := decimal.Zero
	for _, item := range req.Items {
		if item.Qty < 1 {
			return domain.OrderResponse{}, fmt.Errorf("%w: item qty must be positive", store.ErrValidation)
		}
		variant, err := s.repo.GetVariantByID(ctx, item.VariantID)
		if err != nil {
			return domain.OrderResponse{}, err
		}
		if !variant.Active {
			return domain.OrderResponse{}, fmt.Errorf("%w: variant %s is inactive", store.ErrValidation, variant.SKU)
		}
		product, err := s.repo.GetProductByID(ctx, variant.ProductID)
		if err != nil {
			return domain.OrderResponse{}, err
		}
		line := domain.OrderItem{
			VariantID: variant.ID,
			Name:      fmt.Sprintf("%s %s %s", product.Name, variant.Size, variant.Color),
			Qty:       item.Qty,
			UnitPrice: product.SalePrice,
		}
		items = append(items, line)
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Qty))))
	}
	subtotal = subtotal.Round(2)

	discountPercent, total, err := s.applyDiscount(actor, subtotal, req.DiscountPercent, req.DiscountAmount, req.OverridePIN)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	if req.CustomerID != "" {
		if _, err := s.repo.GetCustomerByID(ctx, req.CustomerID); err != nil {
			return domain.OrderResponse{}, err
		}
	}

	order := domain.Order{
		ID:              req.OrderID,
		CustomerID:      req.CustomerID,
		IdempotencyKey:  req.IdempotencyKey,
		Status:          req.TargetStatus,
		Subtotal:        subtotal,
		DiscountPercent: discountPercent,
		Total:           total,
		Items:           items,
	}

	var payments []domain.Payment
	var effects domain.SettlementEffects
	if req.TargetStatus == domain.OrderStatusCompleted {
		payments, effects, err = s.settle(ctx, &order, req.Payments)
		if err != nil {
			return domain.OrderResponse{}, err
		}
	} else {
		for _, input := range req.Payments {
			payments = append(payments, domain.Payment{Method: input.Method, Amount: input.Amount})
		}
	}

	saved, err := s.repo.SaveOrder(ctx, order, payments, effects)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	s.invalidateRegisterStatus(ctx)
	s.logAudit(ctx, "order_submit", "order", saved.ID, fmt.Sprintf("status=%s,total=%s,items=%d", saved.Status, saved.Total.StringFixed(2), len(saved.Items)))
	return s.orderResponse(ctx, saved)
}

// applyDiscount validates the requested discount against the actor's ceiling
// and returns the normalized percent plus the resulting total. A valid owner
// PIN raises the ceiling for this settlement only.
func (s *Service) applyDiscount(actor domain.Actor, subtotal decimal.Decimal, percent decimal.Decimal, amount decimal.Decimal, overridePIN string) (decimal.Decimal, decimal.Decimal, error) {
	if percent.IsNegative() || amount.IsNegative() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: discount must not be negative", store.ErrValidation)
	}
	if percent.GreaterThan(decimal.Zero) && amount.GreaterThan(decimal.Zero) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: use discount percent or amount, not both", store.ErrValidation)
	}

	effective := percent
	if amount.GreaterThan(decimal.Zero) {
		if subtotal.LessThanOrEqual(decimal.Zero) || amount.GreaterThan(subtotal) {
			return decimal.Zero, decimal.Zero, fmt.Errorf("%w: discount exceeds subtotal", store.ErrValidation)
		}
		effective = amount.Div(subtotal).Mul(decimal.NewFromInt(100)).Round(3)
	}
	if effective.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: discount exceeds 100%%", store.ErrValidation)
	}

	ceiling := actor.MaxDiscount
	if overridePIN != "" {
		if s.ownerPIN == "" || overridePIN != s.ownerPIN {
			return decimal.Zero, decimal.Zero, fmt.Errorf("%w: invalid override pin", store.ErrValidation)
		}
		ceiling = s.ownerMaxDiscount
	}
	if effective.GreaterThan(ceiling.Add(domain.CashTolerance)) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: discount %s%% exceeds allowed %s%%", store.ErrValidation, effective.StringFixed(1), ceiling.StringFixed(1))
	}

	discount := subtotal.Mul(effective).Div(decimal.NewFromInt(100)).Round(2)
	return effective, subtotal.Sub(discount), nil
}

// settle validates the payment split against the order total and derives the
// settlement side effects: change subtraction on the cash leg, receivables
// for crediário legs and digital-sale ledger entries for PIX/card legs.
func (s *Service) settle(ctx context.Context, order *domain.Order, inputs []domain.PaymentInput) ([]domain.Payment, domain.SettlementEffects, error) {
	if len(inputs) == 0 {
		return nil, domain.SettlementEffects{}, fmt.Errorf("%w: completed order requires payments", store.ErrValidation)
	}

	payments := make([]domain.Payment, 0, len(inputs))
	paid := decimal.Zero
	cashIdx := -1
	for i, input := range inputs {
		switch input.Method {
		case domain.PaymentCash, domain.PaymentCard, domain.PaymentPix, domain.PaymentCrediario:
		default:
			return nil, domain.SettlementEffects{}, fmt.Errorf("%w: unknown payment method %q", store.ErrValidation, input.Method)
		}
		if input.Amount.LessThanOrEqual(decimal.Zero) {
			return nil, domain.SettlementEffects{}, fmt.Errorf("%w: payment amount must be positive", store.ErrValidation)
		}
		if input.Method == domain.PaymentCash {
			if cashIdx >= 0 {
				return nil, domain.SettlementEffects{}, fmt.Errorf("%w: at most one cash payment per order", store.ErrValidation)
			}
			cashIdx = i
		}
		payments = append(payments, domain.Payment{Method: input.Method, Amount: input.Amount})
		paid = paid.Add(input.Amount)
	}

	// Overpayment is change handed back from the drawer, so it can only come
	// off a cash tender.
	change := paid.Sub(order.Total)
	if change.GreaterThan(domain.CashTolerance) {
		if cashIdx < 0 {
			return nil, domain.SettlementEffects{}, fmt.Errorf("%w: change without cash tender", store.ErrValidation)
		}
		if payments[cashIdx].Amount.LessThan(change) {
			return nil, domain.SettlementEffects{}, fmt.Errorf("%w: cash tender smaller than change due", store.ErrValidation)
		}
		payments[cashIdx].Amount = payments[cashIdx].Amount.Sub(change)
		paid = paid.Sub(change)
	}
	if paid.Sub(order.Total).Abs().GreaterThan(domain.CashTolerance) {
		return nil, domain.SettlementEffects{}, fmt.Errorf("%w: payments sum %s does not match total %s", store.ErrValidation, paid.StringFixed(2), order.Total.StringFixed(2))
	}

	// A cash sale needs an open drawer to take the money.
	openRegister, err := s.repo.GetOpenRegister(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, domain.SettlementEffects{}, err
	}
	if openRegister != nil {
		order.CashRegisterID = openRegister.ID
	} else if cashIdx >= 0 && payments[cashIdx].Amount.GreaterThan(decimal.Zero) {
		return nil, domain.SettlementEffects{}, fmt.Errorf("%w: cash payment requires an open register", store.ErrValidation)
	}

	var effects domain.SettlementEffects
	now := time.Now().UTC()
	for i, payment := range payments {
		switch payment.Method {
		case domain.PaymentCrediario:
			if order.CustomerID == "" {
				return nil, domain.SettlementEffects{}, fmt.Errorf("%w: crediário requires a customer", store.ErrValidation)
			}
			// payments is index-aligned with inputs, so each crediário leg
			// keeps the due date it was submitted with.
			dueDate := now.AddDate(0, 0, s.receivableDueDays)
			if raw := inputs[i].DueDate; raw != "" {
				parsed, err := time.Parse("2006-01-02", raw)
				if err != nil {
					return nil, domain.SettlementEffects{}, fmt.Errorf("%w: invalid due date %q", store.ErrValidation, raw)
				}
				if parsed.Before(now.Truncate(24 * time.Hour)) {
					return nil, domain.SettlementEffects{}, fmt.Errorf("%w: due date in the past", store.ErrValidation)
				}
				dueDate = parsed
			}
			effects.Receivables = append(effects.Receivables, domain.AccountReceivable{
				CustomerID: order.CustomerID,
				Amount:     payment.Amount,
				DueDate:    dueDate,
			})
		case domain.PaymentPix, domain.PaymentCard:
			effects.TreasuryEntries = append(effects.TreasuryEntries, domain.TreasuryTransaction{
				Description: fmt.Sprintf("venda digital %s", strings.ToLower(payment.Method)),
				Amount:      payment.Amount,
				Type:        domain.TreasuryIn,
				Category:    domain.CategoryDigitalSale,
			})
		}
	}

	return payments, effects, nil
}

func (s *Service) orderResponse(ctx context.Context, order *domain.Order) (domain.OrderResponse, error) {
	payments, err := s.repo.ListPaymentsByOrder(ctx, order.ID)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	return domain.OrderResponse{Order: *order, Payments: payments}, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.OrderResponse, error) {
	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	return s.orderResponse(ctx, order)
}

func (s *Service) ListOrders(ctx context.Context, from time.Time, to time.Time, status string, limit int) ([]domain.Order, error) {
	return s.repo.ListOrders(ctx, from, to, status, limit)
}

func (s *Service) CancelOrder(ctx context.Context, id string) (domain.Order, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Order{}, fmt.Errorf("%w: admin role required", ErrForbidden)
	}

	cancelled, err := s.repo.CancelOrder(ctx, id, time.Now().UTC())
	if err != nil {
		return domain.Order{}, err
	}
	s.invalidateRegisterStatus(ctx)
	s.logAudit(ctx, "order_cancel", "order", cancelled.ID, fmt.Sprintf("total=%s", cancelled.Total.StringFixed(2)))
	return *cancelled, nil
}

// ---- restock & returns ----

func (s *Service) Restock(ctx context.Context, req domain.RestockRequest) (domain.RestockResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.RestockResponse{}, fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	if req.Qty < 1 || req.UnitCost.LessThanOrEqual(decimal.Zero) {
		return domain.RestockResponse{}, fmt.Errorf("%w: qty and unit cost must be positive", store.ErrValidation)
	}

	variantID := req.VariantID
	if req.NewVariant != nil {
		created, err := s.repo.CreateVariant(ctx, domain.ProductVariant{
			ProductID: req.NewVariant.ProductID,
			SKU:       strings.ToUpper(strings.TrimSpace(req.NewVariant.SKU)),
			Size:      strings.TrimSpace(req.NewVariant.Size),
			Color:     strings.TrimSpace(req.NewVariant.Color),
			MinStock:  req.NewVariant.MinStock,
		})
		if err != nil {
			return domain.RestockResponse{}, err
		}
		variantID = created.ID
	}
	if variantID == "" {
		return domain.RestockResponse{}, fmt.Errorf("%w: variant required", store.ErrValidation)
	}

	variant, newCost, err := s.repo.RestockVariant(ctx, variantID, req.Qty, req.UnitCost)
	if err != nil {
		return domain.RestockResponse{}, err
	}

	s.logAudit(ctx, "restock", "product_variant", variant.ID, fmt.Sprintf("sku=%s,qty=%d,unit_cost=%s,new_cost=%s", variant.SKU, req.Qty, req.UnitCost.StringFixed(2), newCost.StringFixed(4)))
	return domain.RestockResponse{Variant: *variant, NewCost: newCost}, nil
}

func (s *Service) ProcessReturn(ctx context.Context, req domain.ReturnRequest) (domain.OrderReturn, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.OrderReturn{}, fmt.Errorf("%w: authenticated actor required", ErrForbidden)
	}
	if len(req.Items) == 0 {
		return domain.OrderReturn{}, fmt.Errorf("%w: return has no items", store.ErrValidation)
	}
	if req.RefundAmount.LessThanOrEqual(decimal.Zero) {
		return domain.OrderReturn{}, fmt.Errorf("%w: refund amount must be positive", store.ErrValidation)
	}

	ret := domain.OrderReturn{
		OrderID:      req.OrderID,
		Items:        req.Items,
		Restocked:    req.Restock,
		RefundAmount: req.RefundAmount,
		Reason:       strings.TrimSpace(req.Reason),
		ProcessedBy:  actor.Username,
	}
	refund := domain.TreasuryTransaction{
		Description: "devolução " + req.OrderID,
		Amount:      req.RefundAmount,
		Type:        domain.TreasuryOut,
		Category:    domain.CategoryRefund,
	}

	saved, err := s.repo.ApplyReturn(ctx, ret, refund)
	if err != nil {
		return domain.OrderReturn{}, err
	}

	s.logAudit(ctx, "order_return", "order", req.OrderID, fmt.Sprintf("items=%d,restock=%t,refund=%s", len(req.Items), req.Restock, req.RefundAmount.StringFixed(2)))
	return *saved, nil
}

// ---- receivables ----

func (s *Service) MarkReceivablePaid(ctx context.Context, id string) (domain.AccountReceivable, error) {
	settled, err := s.repo.MarkReceivablePaid(ctx, id, time.Now().UTC())
	if err != nil {
		return domain.AccountReceivable{}, err
	}
	s.logAudit(ctx, "receivable_paid", "account_receivable", settled.ID, fmt.Sprintf("amount=%s", settled.Amount.StringFixed(2)))
	return *settled, nil
}

func (s *Service) GetReceivable(ctx context.Context, id string) (domain.AccountReceivable, error) {
	receivable, err := s.repo.GetReceivableByID(ctx, id)
	if err != nil {
		return domain.AccountReceivable{}, err
	}
	return *receivable, nil
}

func (s *Service) ListReceivables(ctx context.Context, customerID string, status string, limit int) ([]domain.AccountReceivable, error) {
	return s.repo.ListReceivables(ctx, customerID, status, limit)
}

// ---- treasury ----

func (s *Service) CreateManualTreasuryEntry(ctx context.Context, req domain.TreasuryEntryRequest) (domain.TreasuryTransaction, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.TreasuryTransaction{}, fmt.Errorf("%w: admin role required", ErrForbidden)
	}

	entry := domain.TreasuryTransaction{
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount,
		Type:        req.Type,
	}
	switch req.Type {
	case domain.TreasuryIn:
		entry.Category = domain.CategoryManualIn
	case domain.TreasuryOut:
		entry.Category = domain.CategoryManualOut
	default:
		return domain.TreasuryTransaction{}, fmt.Errorf("%w: type must be IN or OUT", store.ErrValidation)
	}
	if entry.Description == "" {
		return domain.TreasuryTransaction{}, fmt.Errorf("%w: description required", store.ErrValidation)
	}

	created, err := s.repo.CreateTreasuryTransaction(ctx, entry)
	if err != nil {
		return domain.TreasuryTransaction{}, err
	}
	s.logAudit(ctx, "treasury_manual", "treasury_transaction", created.ID, fmt.Sprintf("type=%s,amount=%s", created.Type, created.Amount.StringFixed(2)))
	return *created, nil
}

func (s *Service) ListTreasuryTransactions(ctx context.Context, from time.Time, to time.Time, category string, limit int) ([]domain.TreasuryTransaction, error) {
	return s.repo.ListTreasuryTransactions(ctx, from, to, category, limit)
}

// ---- catalog ----

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("%w: admin role required", ErrForbidden)
	}

	product := domain.Product{
		Name:      strings.TrimSpace(req.Name),
		Category:  strings.ToLower(strings.TrimSpace(req.Category)),
		SalePrice: req.SalePrice,
		CostPrice: decimal.Zero,
	}
	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%s", created.Name, created.SalePrice.StringFixed(2)))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("%w: admin role required", ErrForbidden)
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrValidation
		}
		updated.Name = name
	}
	if req.Category != nil {
		category := strings.ToLower(strings.TrimSpace(*req.Category))
		if category == "" {
			return domain.Product{}, store.ErrValidation
		}
		updated.Category = category
	}
	if req.SalePrice != nil {
		if req.SalePrice.LessThanOrEqual(decimal.Zero) {
			return domain.Product{}, store.ErrValidation
		}
		updated.SalePrice = *req.SalePrice
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("active=%t,price=%s", saved.Active, saved.SalePrice.StringFixed(2)))
	return *saved, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, []domain.ProductVariant, error) {
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, nil, err
	}
	variants, err := s.repo.ListVariantsByProduct(ctx, id)
	if err != nil {
		return domain.Product{}, nil, err
	}
	return *product, variants, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateVariant(ctx context.Context, req domain.VariantCreateRequest) (domain.ProductVariant, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.ProductVariant{}, fmt.Errorf("%w: admin role required", ErrForbidden)
	}

	created, err := s.repo.CreateVariant(ctx, domain.ProductVariant{
		ProductID: req.ProductID,
		SKU:       strings.ToUpper(strings.TrimSpace(req.SKU)),
		Size:      strings.TrimSpace(req.Size),
		Color:     strings.ToLower(strings.TrimSpace(req.Color)),
		MinStock:  req.MinStock,
	})
	if err != nil {
		return domain.ProductVariant{}, err
	}
	s.logAudit(ctx, "variant_create", "product_variant", created.ID, fmt.Sprintf("sku=%s", created.SKU))
	return *created, nil
}

func (s *Service) DeactivateVariant(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	if err := s.repo.DeactivateVariant(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "variant_deactivate", "product_variant", id, "")
	return nil
}

func (s *Service) ListLowStockVariants(ctx context.Context) ([]domain.ProductVariant, error) {
	return s.repo.ListLowStockVariants(ctx)
}

func (s *Service) ListStockMovements(ctx context.Context, variantID string, limit int) ([]domain.StockMovement, error) {
	return s.repo.ListStockMovements(ctx, variantID, limit)
}

// ---- customers ----

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:  strings.TrimSpace(req.Name),
		Phone: strings.TrimSpace(req.Phone),
	})
	if err != nil {
		return domain.Customer{}, err
	}
	s.logAudit(ctx, "customer_create", "customer", created.ID, created.Name)
	return *created, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomerByID(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) SearchCustomers(ctx context.Context, query string, limit int) ([]domain.Customer, error) {
	return s.repo.SearchCustomers(ctx, query, limit)
}

// ---- cashiers & audit ----

func (s *Service) CreateCashier(ctx context.Context, req domain.CashierCreateRequest) (domain.CashierUser, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.CashierUser{}, fmt.Errorf("%w: admin role required", ErrForbidden)
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || len(req.Password) < 8 {
		return domain.CashierUser{}, fmt.Errorf("%w: username and a password of at least 8 characters are required", store.ErrValidation)
	}
	if req.MaxDiscount.IsNegative() || req.MaxDiscount.GreaterThan(decimal.NewFromInt(100)) {
		return domain.CashierUser{}, fmt.Errorf("%w: max discount must be between 0 and 100", store.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.CashierUser{}, err
	}
	user := domain.UserAccount{
		Username:    username,
		Password:    string(hash),
		Role:        "seller",
		MaxDiscount: req.MaxDiscount,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return domain.CashierUser{}, err
	}

	s.logAudit(ctx, "cashier_create", "user", username, fmt.Sprintf("max_discount=%s", req.MaxDiscount.StringFixed(1)))
	return domain.CashierUser{
		Username:    user.Username,
		Role:        user.Role,
		MaxDiscount: user.MaxDiscount,
		Active:      user.Active,
		CreatedAt:   user.CreatedAt,
	}, nil
}

func (s *Service) ResetCashierPassword(ctx context.Context, username string, newPassword string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("%w: admin role required", ErrForbidden)
	}

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return fmt.Errorf("%w: username required", store.ErrValidation)
	}
	if len(newPassword) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", store.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateUserPassword(ctx, username, string(hash)); err != nil {
		return err
	}

	s.logAudit(ctx, "password_reset", "user", username, "")
	return nil
}

func (s *Service) ListCashiers(ctx context.Context) ([]domain.CashierUser, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	cashiers := make([]domain.CashierUser, 0, len(users))
	for _, user := range users {
		cashiers = append(cashiers, domain.CashierUser{
			Username:    user.Username,
			Role:        user.Role,
			MaxDiscount: user.MaxDiscount,
			Active:      user.Active,
			CreatedAt:   user.CreatedAt,
		})
	}
	return cashiers, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, _ := ActorFromContext(ctx)
	entry := domain.AuditLog{
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		log.Printf("[service] WARN: failed to write audit log action=%s: %v", action, err)
	}
}
