package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"modaloja/backend/internal/cache"
	"modaloja/backend/internal/domain"
	"modaloja/backend/internal/store"
	"modaloja/backend/internal/store/memory"
)

func newTestService() *Service {
	repo := memory.NewSeeded()
	return New(repo, cache.NoopRegisterStatusCache{}, "249173", decimal.NewFromInt(100), 30, 5*time.Second)
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		Username:    "admin",
		Role:        "admin",
		MaxDiscount: decimal.NewFromInt(100),
	})
}

func sellerCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		Username:    "vendedor",
		Role:        "seller",
		MaxDiscount: decimal.NewFromInt(10),
	})
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func sumByCategory(t *testing.T, svc *Service, category string) (int, decimal.Decimal) {
	t.Helper()
	entries, err := svc.ListTreasuryTransactions(context.Background(), time.Time{}, time.Time{}, category, 100)
	if err != nil {
		t.Fatalf("list treasury failed: %v", err)
	}
	total := decimal.Zero
	for _, entry := range entries {
		total = total.Add(entry.Amount)
	}
	return len(entries), total
}

// ---- cash register ----

func TestOpenRegisterRejectsSecondOpen(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	if _, err := svc.OpenRegister(ctx, domain.RegisterOpenRequest{InitialAmount: dec(t, "100")}); err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	_, err := svc.OpenRegister(ctx, domain.RegisterOpenRequest{InitialAmount: dec(t, "50")})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict on second open, got %v", err)
	}
}

func TestOpenRegisterBooksConfirmedWithdrawal(t *testing.T) {
	svc := newTestService()

	_, err := svc.OpenRegister(sellerCtx(), domain.RegisterOpenRequest{
		InitialAmount:     dec(t, "50"),
		ConfirmWithdrawal: true,
	})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	count, total := sumByCategory(t, svc, domain.CategorySupplyPDV)
	if count != 1 {
		t.Fatalf("expected exactly one supply entry, got %d", count)
	}
	if !total.Equal(dec(t, "50")) {
		t.Fatalf("expected supply of 50, got %s", total)
	}
}

func TestOpenRegisterWithoutConfirmationSkipsWithdrawal(t *testing.T) {
	svc := newTestService()

	_, err := svc.OpenRegister(sellerCtx(), domain.RegisterOpenRequest{
		InitialAmount:     dec(t, "50"),
		ConfirmWithdrawal: false,
	})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	count, _ := sumByCategory(t, svc, domain.CategorySupplyPDV)
	if count != 0 {
		t.Fatalf("expected no supply entry, got %d", count)
	}
}

func TestOpenRegisterTopUpUsesRetainedFloat(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	if _, err := svc.OpenRegister(ctx, domain.RegisterOpenRequest{InitialAmount: dec(t, "100")}); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	closed, err := svc.CloseRegister(ctx, domain.RegisterCloseRequest{
		CountedCash:    dec(t, "100"),
		TransferAmount: dec(t, "60"),
	})
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !closed.Register.RetainedAmount.Equal(dec(t, "40")) {
		t.Fatalf("expected retained float of 40, got %s", closed.Register.RetainedAmount)
	}

	// The drawer already holds the 40 retained at close, so topping up to
	// 100 withdraws only the 60 difference.
	_, err = svc.OpenRegister(ctx, domain.RegisterOpenRequest{
		InitialAmount:     dec(t, "100"),
		ConfirmWithdrawal: true,
	})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	count, total := sumByCategory(t, svc, domain.CategorySupplyPDV)
	if count != 1 {
		t.Fatalf("expected exactly one supply entry, got %d", count)
	}
	if !total.Equal(dec(t, "60")) {
		t.Fatalf("expected supply of 60, got %s", total)
	}
}

func TestCloseRegisterRejectsTransferAboveCounted(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	if _, err := svc.OpenRegister(ctx, domain.RegisterOpenRequest{InitialAmount: dec(t, "100")}); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	_, err := svc.CloseRegister(ctx, domain.RegisterCloseRequest{
		CountedCash:    dec(t, "100"),
		TransferAmount: dec(t, "150"),
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCloseRegisterWithoutOpenFails(t *testing.T) {
	svc := newTestService()

	_, err := svc.CloseRegister(sellerCtx(), domain.RegisterCloseRequest{CountedCash: dec(t, "100")})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCloseRegisterBooksSurplusAndTransfer(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	if _, err := svc.OpenRegister(ctx, domain.RegisterOpenRequest{InitialAmount: dec(t, "100")}); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	// Cash sale: 2x camiseta at 49.90 = 99.80.
	_, err := svc.SubmitOrder(ctx, domain.OrderSubmitRequest{
		IdempotencyKey: "close-surplus-sale",
		Items:          []domain.OrderItem{{VariantID: "var-camiseta-p", Qty: 2}},
		Payments:       []domain.PaymentInput{{Method: domain.PaymentCash, Amount: dec(t, "99.80")}},
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	// Expected cash is 199.80; counting 209.80 leaves a 10.00 surplus.
	resp, err := svc.CloseRegister(ctx, domain.RegisterCloseRequest{
		CountedCash:    dec(t, "209.80"),
		TransferAmount: dec(t, "30"),
	})
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !resp.ExpectedCash.Equal(dec(t, "199.80")) {
		t.Fatalf("expected cash 199.80, got %s", resp.ExpectedCash)
	}
	if !resp.Difference.Equal(dec(t, "10")) {
		t.Fatalf("expected difference 10, got %s", resp.Difference)
	}
	if !resp.Register.RetainedAmount.Equal(dec(t, "179.80")) {
		t.Fatalf("expected retained 179.80, got %s", resp.Register.RetainedAmount)
	}

	if count, total := sumByCategory(t, svc, domain.CategorySurplus); count != 1 || !total.Equal(dec(t, "10")) {
		t.Fatalf("expected one surplus entry of 10, got %d/%s", count, total)
	}
	if count, total := sumByCategory(t, svc, domain.CategoryInternalTransfer); count != 1 || !total.Equal(dec(t, "30")) {
		t.Fatalf("expected one transfer entry of 30, got %d/%s", count, total)
	}
}

func TestCloseRegisterBooksBreakage(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	if _, err := svc.OpenRegister(ctx, domain.RegisterOpenRequest{InitialAmount: dec(t, "100")}); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	resp, err := svc.CloseRegister(ctx, domain.RegisterCloseRequest{CountedCash: dec(t, "95")})
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !resp.Difference.Equal(dec(t, "-5")) {
		t.Fatalf("expected difference -5, got %s", resp.Difference)
	}
	if count, total := sumByCategory(t, svc, domain.CategoryBreakage); count != 1 || !total.Equal(dec(t, "5")) {
		t.Fatalf("expected one breakage entry of 5, got %d/%s", count, total)
	}
}

// ---- orders & settlement ----

func TestSubmitOrderSplitPaymentSubtractsChangeFromCash(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	if _, err := svc.OpenRegister(ctx, domain.RegisterOpenRequest{InitialAmount: dec(t, "100")}); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	// Total 99.80, tendered 60 cash + 50 card: the 10.20 change comes off
	// the cash leg, which must persist as 49.80.
	resp, err := svc.SubmitOrder(ctx, domain.OrderSubmitRequest{
		IdempotencyKey: "split-change",
		Items:          []domain.OrderItem{{VariantID: "var-camiseta-p", Qty: 2}},
		Payments: []domain.PaymentInput{
			{Method: domain.PaymentCash, Amount: dec(t, "60")},
			{Method: domain.PaymentCard, Amount: dec(t, "50")},
		},
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	var cashAmount, cardAmount decimal.Decimal
	for _, payment := range resp.Payments {
		switch payment.Method {
		case domain.PaymentCash:
			cashAmount = payment.Amount
		case domain.PaymentCard:
			cardAmount = payment.Amount
		}
	}
	if !cashAmount.Equal(dec(t, "49.80")) {
		t.Fatalf("expected cash leg 49.80, got %s", cashAmount)
	}
	if !cardAmount.Equal(dec(t, "50")) {
		t.Fatalf("expected card leg 50, got %s", cardAmount)
	}

	if count, total := sumByCategory(t, svc, domain.CategoryDigitalSale); count != 1 || !total.Equal(dec(t, "50")) {
		t.Fatalf("expected one digital sale entry of 50, got %d/%s", count, total)
	}
}

func TestSubmitOrderChangeWithoutCashFails(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	_, err := svc.SubmitOrder(ctx, domain.OrderSubmitRequest{
		IdempotencyKey: "card-overpay",
		Items:          []domain.OrderItem{{VariantID: "var-camiseta-p", Qty: 2}},
		Payments:       []domain.PaymentInput{{Method: domain.PaymentCard, Amount: dec(t, "120")}},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for change without cash tender, got %v", err)
	}
}

func TestSubmitOrderRejectsUnderpayment(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	_, err := svc.SubmitOrder(ctx, domain.OrderSubmitRequest{
		IdempotencyKey: "underpay",
		Items:          []domain.OrderItem{{VariantID: "var-camiseta-p", Qty: 2}},
		Payments:       []domain.PaymentInput{{Method: domain.PaymentCard, Amount: dec(t, "90")}},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for underpayment, got %v", err)
	}
}

func TestSubmitOrderCashRequiresOpenRegister(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	_, err := svc.SubmitOrder(ctx, domain.OrderSubmitRequest{
		IdempotencyKey: "cash-no-register",
		Items:          []domain.OrderItem{{VariantID: "var-camiseta-p", Qty: 1}},
		Payments:       []domain.PaymentInput{{Method: domain.PaymentCash, Amount: dec(t, "49.90")}},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for cash sale without register, got %v", err)
	}
}

func TestCrediarioRequiresCustomer(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	_, err := svc.SubmitOrder(ctx, domain.OrderSubmitRequest{
		IdempotencyKey: "crediario-anon",
		Items:          []domain.OrderItem{{VariantID: "var-camiseta-p", Qty: 1}},
		Payments:       []domain.PaymentInput{{Method: domain.PaymentCrediario, Amount: dec(t, "49.90")}},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for crediário without customer, got %v", err)
	}
}

func TestCrediarioCreatesReceivable(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	resp, err := svc.SubmitOrder(ctx, domain.OrderSubmitRequest{
		IdempotencyKey: "crediario-ok",
		CustomerID:     "cust-maria",
		Items:          []domain.OrderItem{{VariantID: "var-camiseta-p", Qty: 1}},
		Payments:       []domain.PaymentInput{{Method: domain.PaymentCrediario, Amount: dec(t, "49.90")}},
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	receivables, err := svc.ListReceivables(ctx, "cust-maria", "", 10)
	if err != nil {
		t.Fatalf("list receivables failed: %v", err)
	}
	if len(receivables) != 1 {
		t.Fatalf("expected one receivable, got %d", len(receivables))
	}
	receivable := receivables[0]
	if receivable.OrderID != resp.Order.ID {
		t.Fatalf("receivable bound to wrong order")
	}
	if receivable.Status != domain.ReceivablePending {
		t.Fatalf("expected PENDING receivable, got %s", receivable.Status)
	}
	wantDue := time.Now().UTC().AddDate(0, 0, 30)
	if receivable.DueDate.Before(wantDue.Add(-time.Hour)) || receivable.DueDate.After(wantDue.Add(time.Hour)) {
		t.Fatalf("expected due date ~30 days out, got %s", receivable.DueDate)
	}

	// Crediário revenue is deferred: no ledger entry until settlement.
	if count, _ := sumByCategory(t, svc, domain.CategoryDigitalSale); count != 0 {
		t.Fatalf("crediário must not create a digital sale entry")
	}
}

func TestCrediarioLegsKeepTheirOwnDueDates(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	firstDue := time.Now().UTC().AddDate(0, 0, 15).Format("2006-01-02")
	secondDue := time.Now().UTC().AddDate(0, 0, 45).Format("2006-01-02")
	_, err := svc.SubmitOrder(ctx, domain.OrderSubmitRequest{
		IdempotencyKey: "crediario-split-due",
		CustomerID:     "cust-maria",
		Items:          []domain.OrderItem{{VariantID: "var-camiseta-p", Qty: 2}},
		Payments: []domain.PaymentInput{
			{Method: domain.PaymentCrediario, Amount: dec(t, "50"), DueDate: firstDue},
			{Method: domain.PaymentCrediario, Amount: dec(t, "49.80"), DueDate: secondDue},
		},
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	receivables, err := svc.ListReceivables(ctx, "cust-maria", "", 10)
	if err != nil {
		t.Fatalf("list receivables failed: %v", err)
	}
	if len(receivables) != 2 {
		t.Fatalf("expected two receivables, got %d", len(receivables))
	}
	dueByAmount := map[string]string{}
	for _, receivable := range receivables {
		dueByAmount[receivable.Amount.StringFixed(2)] = receivable.DueDate.Format("2006-01-02")
	}
	if dueByAmount["50.00"] != firstDue {
		t.Fatalf("expected first leg due %s, got %s", firstDue, dueByAmount["50.00"])
	}
	if dueByAmount["49.80"] != secondDue {
		t.Fatalf("expected second leg due %s, got %s", secondDue, dueByAmount["49.80"])
	}
}

func TestMarkReceivablePaidSettlesOnce(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	_, err := svc.SubmitOrder(ctx, domain.OrderSubmitRequest{
		IdempotencyKey: "crediario-settle",
		CustomerID:     "cust-maria",
		Items:          []domain.OrderItem{{VariantID: "var-camiseta-p", Qty: 1}},
		Payments:       []domain.PaymentInput{{Method: domain.PaymentCrediario, Amount: dec(t, "49.90")}},
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	receivables, err := svc.ListReceivables(ctx, "cust-maria", "", 10)
	if err != nil || len(receivables) != 1 {
		t.Fatalf("expected one receivable, got %d (err %v)", len(receivables), err)
	}

	settled, err := svc.MarkReceivablePaid(ctx, receivables[0].ID)
	if err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	if settled.Status != domain.ReceivablePaid || settled.PaidAt == nil {
		t.Fatalf("expected PAID receivable with paid_at set")
	}
	if count, total := sumByCategory(t, svc, domain.CategoryReceivableSettled); count != 1 || !total.Equal(dec(t, "49.90")) {
		t.Fatalf("expected one settlement entry of 49.90, got %d/%s", count, total)
	}

	_, err = svc.MarkReceivablePaid(ctx, receivables[0].ID)
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error on double settlement, got %v", err)
	}
}

func TestSubmitOrderIdempotentResubmit(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	req := domain.OrderSubmitRequest{
		IdempotencyKey: "resubmit",
		Items:          []domain.OrderItem{{VariantID: "var-camiseta-p", Qty: 3}},
		Payments:       []domain.PaymentInput{{Method: domain.PaymentCard, Amount: dec(t, "149.70")}},
	}
	first, err := svc.SubmitOrder(ctx, req)
	if err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	second, err := svc.SubmitOrder(ctx, req)
	if err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	if first.Order.ID != second.Order.ID {
		t.Fatalf("resubmit must return the same order")
	}

	movements, err := svc.ListStockMovements(ctx, "var-camiseta-p", 10)
	if err != nil {
		t.Fatalf("list movements failed: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("expected a single stock deduction, got %d movements", len(movements))
	}
	if count, _ := sumByCategory(t, svc, domain.CategoryDigitalSale); count != 1 {
		t.Fatalf("resubmit must not duplicate ledger entries")
	}
}

func TestCompletedOrderRejectsLaterUpdate(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	first, err := svc.SubmitOrder(ctx, domain.OrderSubmitRequest{
		IdempotencyKey: "card-then-edit",
		Items:          []domain.OrderItem{{VariantID: "var-camiseta-p", Qty: 1}},
		Payments:       []domain.PaymentInput{{Method: domain.PaymentCard, Amount: dec(t, "49.90")}},
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	// Rewriting a completed order under a fresh idempotency key must fail:
	// its payments and ledger effects were persisted together.
	_, err = svc.SubmitOrder(ctx, domain.OrderSubmitRequest{
		OrderID:        first.Order.ID,
		IdempotencyKey: "card-then-edit-2",
		CustomerID:     "cust-maria",
		Items:          []domain.OrderItem{{VariantID: "var-camiseta-p", Qty: 1}},
		Payments: []domain.PaymentInput{
			{Method: domain.PaymentCrediario, Amount: dec(t, "25")},
			{Method: domain.PaymentCrediario, Amount: dec(t, "24.90")},
		},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error on completed-order update, got %v", err)
	}

	receivables, err := svc.ListReceivables(ctx, "cust-maria", "", 10)
	if err != nil {
		t.Fatalf("list receivables failed: %v", err)
	}
	if len(receivables) != 0 {
		t.Fatalf("rejected update must not create receivables, got %d", len(receivables))
	}
	resp, err := svc.GetOrder(ctx, first.Order.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if len(resp.Payments) != 1 || resp.Payments[0].Method != domain.PaymentCard {
		t.Fatalf("rejected update must leave the original card payment intact")
	}
}

func TestSubmitOrderUnknownOrderIDNotFound(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	_, err := svc.SubmitOrder(ctx, domain.OrderSubmitRequest{
		OrderID:        "order-does-not-exist",
		IdempotencyKey: "edit-missing",
		Items:          []domain.OrderItem{{VariantID: "var-camiseta-p", Qty: 1}},
		Payments:       []domain.PaymentInput{{Method: domain.PaymentCard, Amount: dec(t, "49.90")}},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown order id, got %v", err)
	}
}

func TestConcurrentLastUnitSellsExactlyOnce(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	admin := adminCtx()
	product, err := svc.CreateProduct(admin, domain.ProductCreateRequest{
		Name: "Cinto Couro", Category: "acessorios", SalePrice: dec(t, "79.90"),
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	restocked, err := svc.Restock(admin, domain.RestockRequest{
		NewVariant: &domain.VariantCreateRequest{ProductID: product.ID, SKU: "CIN-COU-U-MARROM"},
		Qty:        1,
		UnitCost:   dec(t, "30"),
	})
	if err != nil {
		t.Fatalf("restock failed: %v", err)
	}
	variantID := restocked.Variant.ID

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, results[slot] = svc.SubmitOrder(ctx, domain.OrderSubmitRequest{
				IdempotencyKey: "race-" + string(rune('a'+slot)),
				Items:          []domain.OrderItem{{VariantID: variantID, Qty: 1}},
				Payments:       []domain.PaymentInput{{Method: domain.PaymentCard, Amount: dec(t, "79.90")}},
			})
		}(i)
	}
	wg.Wait()

	var succeeded, outOfStock int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, store.ErrInsufficientStock):
			outOfStock++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || outOfStock != 1 {
		t.Fatalf("expected one success and one stock failure, got %d/%d", succeeded, outOfStock)
	}
}

func TestSubmitOrderReportsMissingStockPerItem(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	_, err := svc.SubmitOrder(ctx, domain.OrderSubmitRequest{
		IdempotencyKey: "overdraw",
		Items:          []domain.OrderItem{{VariantID: "var-vestido-m", Qty: 9}},
		Payments:       []domain.PaymentInput{{Method: domain.PaymentCard, Amount: dec(t, "1709.10")}},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	var stockErr *store.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected typed stock error, got %T", err)
	}
	if stockErr.SKU != "VES-MID-M-FLORAL" || stockErr.Available != 8 {
		t.Fatalf("stock error must name the variant and availability, got %+v", stockErr)
	}
}

// ---- discounts ----

func TestDiscountCeilingEnforced(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	_, err := svc.SubmitOrder(ctx, domain.OrderSubmitRequest{
		IdempotencyKey:  "discount-over",
		Items:           []domain.OrderItem{{VariantID: "var-camiseta-p", Qty: 2}},
		DiscountPercent: dec(t, "15"),
		Payments:        []domain.PaymentInput{{Method: domain.PaymentCard, Amount: dec(t, "84.83")}},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for discount above ceiling, got %v", err)
	}
}

func TestDiscountOwnerOverride(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	// 15% on 99.80 leaves 84.83.
	resp, err := svc.SubmitOrder(ctx, domain.OrderSubmitRequest{
		IdempotencyKey:  "discount-override",
		Items:           []domain.OrderItem{{VariantID: "var-camiseta-p", Qty: 2}},
		DiscountPercent: dec(t, "15"),
		OverridePIN:     "249173",
		Payments:        []domain.PaymentInput{{Method: domain.PaymentCard, Amount: dec(t, "84.83")}},
	})
	if err != nil {
		t.Fatalf("submit with override failed: %v", err)
	}
	if !resp.Order.Total.Equal(dec(t, "84.83")) {
		t.Fatalf("expected total 84.83, got %s", resp.Order.Total)
	}

	_, err = svc.SubmitOrder(ctx, domain.OrderSubmitRequest{
		IdempotencyKey:  "discount-bad-pin",
		Items:           []domain.OrderItem{{VariantID: "var-camiseta-p", Qty: 2}},
		DiscountPercent: dec(t, "15"),
		OverridePIN:     "000000",
		Payments:        []domain.PaymentInput{{Method: domain.PaymentCard, Amount: dec(t, "84.83")}},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for wrong pin, got %v", err)
	}
}

func TestFlatDiscountNormalizedAgainstCeiling(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	// 9.98 on 99.80 is exactly 10%, at the seller's ceiling.
	resp, err := svc.SubmitOrder(ctx, domain.OrderSubmitRequest{
		IdempotencyKey: "discount-flat",
		Items:          []domain.OrderItem{{VariantID: "var-camiseta-p", Qty: 2}},
		DiscountAmount: dec(t, "9.98"),
		Payments:       []domain.PaymentInput{{Method: domain.PaymentCard, Amount: dec(t, "89.82")}},
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !resp.Order.Total.Equal(dec(t, "89.82")) {
		t.Fatalf("expected total 89.82, got %s", resp.Order.Total)
	}
}

// ---- restock ----

func TestRestockWeightedAverageCost(t *testing.T) {
	svc := newTestService()
	admin := adminCtx()

	product, err := svc.CreateProduct(admin, domain.ProductCreateRequest{
		Name: "Meia Esportiva", Category: "meias", SalePrice: dec(t, "19.90"),
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}

	first, err := svc.Restock(admin, domain.RestockRequest{
		NewVariant: &domain.VariantCreateRequest{ProductID: product.ID, SKU: "MEI-ESP-U-BRANCO"},
		Qty:        10,
		UnitCost:   dec(t, "5"),
	})
	if err != nil {
		t.Fatalf("first restock failed: %v", err)
	}
	if !first.NewCost.Equal(dec(t, "5")) {
		t.Fatalf("expected cost 5 after first restock, got %s", first.NewCost)
	}

	second, err := svc.Restock(admin, domain.RestockRequest{
		VariantID: first.Variant.ID,
		Qty:       10,
		UnitCost:  dec(t, "7"),
	})
	if err != nil {
		t.Fatalf("second restock failed: %v", err)
	}
	if !second.NewCost.Equal(dec(t, "6")) {
		t.Fatalf("expected blended cost 6.00, got %s", second.NewCost)
	}
	if second.Variant.StockQuantity != 20 {
		t.Fatalf("expected stock 20, got %d", second.Variant.StockQuantity)
	}

	if count, total := sumByCategory(t, svc, domain.CategoryRestock); count != 2 || !total.Equal(dec(t, "120")) {
		t.Fatalf("expected two restock expenses totalling 120, got %d/%s", count, total)
	}
}

func TestRestockCostSpansAllVariantsOfProduct(t *testing.T) {
	svc := newTestService()
	admin := adminCtx()

	product, err := svc.CreateProduct(admin, domain.ProductCreateRequest{
		Name: "Bermuda Sarja", Category: "bermudas", SalePrice: dec(t, "89.90"),
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	first, err := svc.Restock(admin, domain.RestockRequest{
		NewVariant: &domain.VariantCreateRequest{ProductID: product.ID, SKU: "BER-SAR-40-CAQUI", Size: "40"},
		Qty:        10,
		UnitCost:   dec(t, "40"),
	})
	if err != nil {
		t.Fatalf("first restock failed: %v", err)
	}
	if first.Variant.StockQuantity != 10 {
		t.Fatalf("expected stock 10 on first variant, got %d", first.Variant.StockQuantity)
	}

	// The second variant's intake blends against the stock of the first.
	second, err := svc.Restock(admin, domain.RestockRequest{
		NewVariant: &domain.VariantCreateRequest{ProductID: product.ID, SKU: "BER-SAR-42-CAQUI", Size: "42"},
		Qty:        10,
		UnitCost:   dec(t, "50"),
	})
	if err != nil {
		t.Fatalf("second restock failed: %v", err)
	}
	if !second.NewCost.Equal(dec(t, "45")) {
		t.Fatalf("expected product-wide blended cost 45, got %s", second.NewCost)
	}
}

func TestRestockRequiresAdmin(t *testing.T) {
	svc := newTestService()

	_, err := svc.Restock(sellerCtx(), domain.RestockRequest{
		VariantID: "var-camiseta-p",
		Qty:       5,
		UnitCost:  dec(t, "10"),
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

// ---- returns & cancellation ----

func TestReturnRestocksAndRefunds(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	sale, err := svc.SubmitOrder(ctx, domain.OrderSubmitRequest{
		IdempotencyKey: "return-sale",
		Items:          []domain.OrderItem{{VariantID: "var-calca-38", Qty: 2}},
		Payments:       []domain.PaymentInput{{Method: domain.PaymentPix, Amount: dec(t, "319.80")}},
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	ret, err := svc.ProcessReturn(ctx, domain.ReturnRequest{
		OrderID:      sale.Order.ID,
		Items:        []domain.ReturnItem{{VariantID: "var-calca-38", Qty: 1}},
		Restock:      true,
		RefundAmount: dec(t, "159.90"),
		Reason:       "troca de tamanho",
	})
	if err != nil {
		t.Fatalf("return failed: %v", err)
	}
	if !ret.Restocked {
		t.Fatalf("expected restocked return")
	}
	if count, total := sumByCategory(t, svc, domain.CategoryRefund); count != 1 || !total.Equal(dec(t, "159.90")) {
		t.Fatalf("expected one refund entry of 159.90, got %d/%s", count, total)
	}

	// 12 seeded, 2 sold, 1 back.
	_, variants, err := svc.GetProduct(ctx, "prod-calca")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	for _, variant := range variants {
		if variant.ID == "var-calca-38" && variant.StockQuantity != 11 {
			t.Fatalf("expected stock 11 after return, got %d", variant.StockQuantity)
		}
	}

	// Cumulative returns cannot exceed the sold quantity.
	_, err = svc.ProcessReturn(ctx, domain.ReturnRequest{
		OrderID:      sale.Order.ID,
		Items:        []domain.ReturnItem{{VariantID: "var-calca-38", Qty: 2}},
		Restock:      true,
		RefundAmount: dec(t, "319.80"),
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for over-return, got %v", err)
	}
}

func TestCancelCompletedOrderRestoresStock(t *testing.T) {
	svc := newTestService()
	seller := sellerCtx()

	sale, err := svc.SubmitOrder(seller, domain.OrderSubmitRequest{
		IdempotencyKey: "cancel-sale",
		Items:          []domain.OrderItem{{VariantID: "var-jaqueta-g", Qty: 2}},
		Payments:       []domain.PaymentInput{{Method: domain.PaymentCard, Amount: dec(t, "459.80")}},
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if _, err := svc.CancelOrder(seller, sale.Order.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("seller must not cancel orders, got %v", err)
	}

	cancelled, err := svc.CancelOrder(adminCtx(), sale.Order.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}

	_, variants, err := svc.GetProduct(seller, "prod-jaqueta")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	for _, variant := range variants {
		if variant.ID == "var-jaqueta-g" && variant.StockQuantity != 6 {
			t.Fatalf("expected stock restored to 6, got %d", variant.StockQuantity)
		}
	}
}

// ---- register status ----

func TestRegisterStatusReflectsOpenDrawer(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	status, err := svc.GetRegisterStatus(ctx)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.Open {
		t.Fatalf("expected closed drawer")
	}

	if _, err := svc.OpenRegister(ctx, domain.RegisterOpenRequest{InitialAmount: dec(t, "100")}); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	_, err = svc.SubmitOrder(ctx, domain.OrderSubmitRequest{
		IdempotencyKey: "status-sale",
		Items:          []domain.OrderItem{{VariantID: "var-camiseta-m", Qty: 1}},
		Payments:       []domain.PaymentInput{{Method: domain.PaymentCash, Amount: dec(t, "49.90")}},
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	status, err = svc.GetRegisterStatus(ctx)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !status.Open || status.Register == nil {
		t.Fatalf("expected open drawer")
	}
	if !status.ExpectedCash.Equal(dec(t, "149.90")) {
		t.Fatalf("expected cash 149.90, got %s", status.ExpectedCash)
	}
	if !status.TotalsByMethod[domain.PaymentCash].Equal(dec(t, "49.90")) {
		t.Fatalf("expected cash total 49.90, got %s", status.TotalsByMethod[domain.PaymentCash])
	}
}

func TestRegisterStatusSuggestsRetainedFloat(t *testing.T) {
	svc := newTestService()
	ctx := sellerCtx()

	if _, err := svc.OpenRegister(ctx, domain.RegisterOpenRequest{InitialAmount: dec(t, "100")}); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := svc.CloseRegister(ctx, domain.RegisterCloseRequest{CountedCash: dec(t, "100"), TransferAmount: dec(t, "60")}); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	status, err := svc.GetRegisterStatus(ctx)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !status.SuggestedFloat.Equal(dec(t, "40")) {
		t.Fatalf("expected suggested float 40, got %s", status.SuggestedFloat)
	}
}
