package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"modaloja/backend/internal/domain"
	"modaloja/backend/internal/store"
	"modaloja/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ---- products & variants ----

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Category == "" || product.SalePrice.LessThanOrEqual(decimal.Zero) {
		return nil, store.ErrValidation
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	product.Active = true
	product.CreatedAt = now
	product.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, sale_price, cost_price, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, product.ID, product.Name, product.Category, product.SalePrice, product.CostPrice, product.Active, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Category == "" || product.SalePrice.LessThanOrEqual(decimal.Zero) {
		return nil, store.ErrValidation
	}
	product.UpdatedAt = time.Now().UTC()

	// cost_price is intentionally not touched here: only restock moves it.
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, sale_price = $4, active = $5, updated_at = $6
		WHERE id = $1
	`, product.ID, product.Name, product.Category, product.SalePrice, product.Active, product.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetProductByID(ctx, product.ID)
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, sale_price, cost_price, active, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&product.ID, &product.Name, &product.Category, &product.SalePrice, &product.CostPrice, &product.Active, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, sale_price, cost_price, active, created_at, updated_at
		FROM products
		WHERE active = true
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.SalePrice, &p.CostPrice, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) CreateVariant(ctx context.Context, variant domain.ProductVariant) (*domain.ProductVariant, error) {
	if variant.ProductID == "" || variant.SKU == "" || variant.MinStock < 0 {
		return nil, store.ErrValidation
	}
	if variant.ID == "" {
		variant.ID = xid.New("var")
	}
	variant.StockQuantity = 0
	variant.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO product_variants (id, product_id, sku, size, color, stock_quantity, min_stock, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, variant.ID, variant.ProductID, variant.SKU, variant.Size, variant.Color, variant.StockQuantity, variant.MinStock, variant.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	created := variant
	return &created, nil
}

func (s *Store) GetVariantByID(ctx context.Context, id string) (*domain.ProductVariant, error) {
	return s.getVariant(ctx, "id", id)
}

func (s *Store) GetVariantBySKU(ctx context.Context, sku string) (*domain.ProductVariant, error) {
	return s.getVariant(ctx, "sku", sku)
}

func (s *Store) getVariant(ctx context.Context, column string, value string) (*domain.ProductVariant, error) {
	var v domain.ProductVariant
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, product_id, sku, size, color, stock_quantity, min_stock, active
		FROM product_variants
		WHERE %s = $1
	`, column), value).Scan(&v.ID, &v.ProductID, &v.SKU, &v.Size, &v.Color, &v.StockQuantity, &v.MinStock, &v.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (s *Store) ListVariantsByProduct(ctx context.Context, productID string) ([]domain.ProductVariant, error) {
	return s.listVariants(ctx, `WHERE product_id = $1 ORDER BY sku`, productID)
}

func (s *Store) ListLowStockVariants(ctx context.Context) ([]domain.ProductVariant, error) {
	return s.listVariants(ctx, `WHERE active = true AND stock_quantity <= min_stock ORDER BY sku`)
}

func (s *Store) listVariants(ctx context.Context, clause string, args ...any) ([]domain.ProductVariant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, sku, size, color, stock_quantity, min_stock, active
		FROM product_variants
	`+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	variants := make([]domain.ProductVariant, 0, 32)
	for rows.Next() {
		var v domain.ProductVariant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Size, &v.Color, &v.StockQuantity, &v.MinStock, &v.Active); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

func (s *Store) DeactivateVariant(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE product_variants SET active = false WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ---- orders & settlement ----

func (s *Store) SaveOrder(ctx context.Context, order domain.Order, payments []domain.Payment, effects domain.SettlementEffects) (*domain.Order, error) {
	if len(order.Items) == 0 {
		return nil, fmt.Errorf("%w: order has no items", store.ErrValidation)
	}
	for _, item := range order.Items {
		if item.VariantID == "" || item.Qty < 1 {
			return nil, fmt.Errorf("%w: invalid order item", store.ErrValidation)
		}
	}

	if order.IdempotencyKey != "" {
		existing, err := s.FindOrderByIdempotency(ctx, order.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	priorStatus := ""
	isNew := order.ID == ""
	if isNew {
		order.ID = xid.New("order")
		order.CreatedAt = now
	} else {
		var createdAt time.Time
		err := tx.QueryRowContext(ctx, `
			SELECT status, created_at FROM orders WHERE id = $1 AND active = true FOR UPDATE
		`, order.ID).Scan(&priorStatus, &createdAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %s", store.ErrNotFound, order.ID)
		}
		if err != nil {
			return nil, err
		}
		order.CreatedAt = createdAt
	}
	// Completed and cancelled orders are immutable: their payments and ledger
	// effects were applied together and an update would split them apart.
	if priorStatus == domain.OrderStatusCompleted || priorStatus == domain.OrderStatusCancelled {
		return nil, fmt.Errorf("%w: order in status %s cannot be updated", store.ErrValidation, priorStatus)
	}
	order.UpdatedAt = now
	order.Active = true

	// Stock is deducted exactly once, on the transition into COMPLETED. The
	// settlement side effects ride the same guard so a re-save of a completed
	// order cannot double-book the ledger.
	completing := order.Status == domain.OrderStatusCompleted && priorStatus != domain.OrderStatusCompleted
	if completing {
		for _, item := range order.Items {
			var sku string
			var available int
			err := tx.QueryRowContext(ctx, `
				SELECT sku, stock_quantity FROM product_variants WHERE id = $1 FOR UPDATE
			`, item.VariantID).Scan(&sku, &available)
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("%w: variant %s", store.ErrNotFound, item.VariantID)
			}
			if err != nil {
				return nil, err
			}
			if available < item.Qty {
				return nil, &store.InsufficientStockError{SKU: sku, Requested: item.Qty, Available: available}
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE product_variants SET stock_quantity = stock_quantity - $2 WHERE id = $1
			`, item.VariantID, item.Qty); err != nil {
				return nil, err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO stock_movements (id, variant_id, type, qty, reason, reference, created_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7)
			`, xid.New("mov"), item.VariantID, domain.MovementOut, item.Qty, "venda", order.ID, now); err != nil {
				return nil, err
			}
		}
		for _, receivable := range effects.Receivables {
			if receivable.ID == "" {
				receivable.ID = xid.New("ar")
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO accounts_receivable (id, order_id, customer_id, amount, due_date, status, created_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7)
			`, receivable.ID, order.ID, receivable.CustomerID, receivable.Amount, receivable.DueDate, domain.ReceivablePending, now); err != nil {
				return nil, err
			}
		}
		for _, entry := range effects.TreasuryEntries {
			if err := insertTreasuryTx(ctx, tx, entry, now); err != nil {
				return nil, err
			}
		}
	}

	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return nil, err
	}
	if isNew {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO orders (id, customer_id, cash_register_id, idempotency_key, status, subtotal, discount_percent, total, items, active, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`, order.ID, nullIfEmpty(order.CustomerID), nullIfEmpty(order.CashRegisterID), nullIfEmpty(order.IdempotencyKey),
			order.Status, order.Subtotal, order.DiscountPercent, order.Total, itemsJSON, order.Active, order.CreatedAt, order.UpdatedAt)
		if err != nil {
			// A concurrent submit with the same idempotency key won the insert;
			// surface its order instead of failing.
			if isUniqueViolation(err) && order.IdempotencyKey != "" {
				_ = tx.Rollback()
				return s.FindOrderByIdempotency(ctx, order.IdempotencyKey)
			}
			if isUniqueViolation(err) {
				return nil, store.ErrConflict
			}
			return nil, err
		}
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE orders
			SET customer_id = $2, cash_register_id = $3, status = $4, subtotal = $5,
			    discount_percent = $6, total = $7, items = $8, updated_at = $9
			WHERE id = $1
		`, order.ID, nullIfEmpty(order.CustomerID), nullIfEmpty(order.CashRegisterID), order.Status,
			order.Subtotal, order.DiscountPercent, order.Total, itemsJSON, order.UpdatedAt)
		if err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE order_id = $1`, order.ID); err != nil {
		return nil, err
	}
	for _, payment := range payments {
		if payment.ID == "" {
			payment.ID = xid.New("pay")
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO payments (id, order_id, method, amount) VALUES ($1,$2,$3,$4)
		`, payment.ID, order.ID, payment.Method, payment.Amount); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	saved := order
	return &saved, nil
}

func (s *Store) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	return s.findOrder(ctx, "id", id)
}

func (s *Store) FindOrderByIdempotency(ctx context.Context, key string) (*domain.Order, error) {
	return s.findOrder(ctx, "idempotency_key", key)
}

func (s *Store) findOrder(ctx context.Context, column string, value string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, customer_id, cash_register_id, idempotency_key, status, subtotal,
		       discount_percent, total, items, active, created_at, updated_at
		FROM orders
		WHERE %s = $1 AND active = true
	`, column), value)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var customerID, registerID, idemKey sql.NullString
	var itemsRaw []byte
	err := row.Scan(&order.ID, &customerID, &registerID, &idemKey, &order.Status, &order.Subtotal,
		&order.DiscountPercent, &order.Total, &itemsRaw, &order.Active, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	order.CustomerID = customerID.String
	order.CashRegisterID = registerID.String
	order.IdempotencyKey = idemKey.String
	if err := json.Unmarshal(itemsRaw, &order.Items); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) ListOrders(ctx context.Context, from time.Time, to time.Time, status string, limit int) ([]domain.Order, error) {
	if limit < 1 {
		limit = 100
	}
	clauses := []string{"active = true"}
	args := []any{}
	if status != "" {
		args = append(args, status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if !from.IsZero() {
		args = append(args, from)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		clauses = append(clauses, fmt.Sprintf("created_at < $%d", len(args)))
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, customer_id, cash_register_id, idempotency_key, status, subtotal,
		       discount_percent, total, items, active, created_at, updated_at
		FROM orders
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d
	`, strings.Join(clauses, " AND "), len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, limit)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

func (s *Store) ListPaymentsByOrder(ctx context.Context, orderID string) ([]domain.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, method, amount FROM payments WHERE order_id = $1 ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0, 4)
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Method, &p.Amount); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (s *Store) CancelOrder(ctx context.Context, id string, at time.Time) (*domain.Order, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT id, customer_id, cash_register_id, idempotency_key, status, subtotal,
		       discount_percent, total, items, active, created_at, updated_at
		FROM orders
		WHERE id = $1 AND active = true
		FOR UPDATE
	`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if order.Status == domain.OrderStatusCancelled {
		return nil, fmt.Errorf("%w: order already cancelled", store.ErrValidation)
	}

	if order.Status == domain.OrderStatusCompleted {
		for _, item := range order.Items {
			if _, err := tx.ExecContext(ctx, `
				UPDATE product_variants SET stock_quantity = stock_quantity + $2 WHERE id = $1
			`, item.VariantID, item.Qty); err != nil {
				return nil, err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO stock_movements (id, variant_id, type, qty, reason, reference, created_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7)
			`, xid.New("mov"), item.VariantID, domain.MovementIn, item.Qty, "cancelamento", order.ID, at); err != nil {
				return nil, err
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1
	`, id, domain.OrderStatusCancelled, at); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = at
	return order, nil
}

// ---- cash register ----

func (s *Store) OpenRegister(ctx context.Context, register domain.CashRegister, confirmWithdrawal bool) (*domain.CashRegister, error) {
	if register.ID == "" {
		register.ID = xid.New("reg")
	}
	if register.OpenedAt.IsZero() {
		register.OpenedAt = time.Now().UTC()
	}
	register.Status = domain.RegisterOpen

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// The last close's retained float is already in the drawer, so only the
	// top-up to the requested opening amount leaves the treasury. Reading it
	// inside the transaction keeps the amount consistent with a racing close.
	previousRetained := decimal.Zero
	err = tx.QueryRowContext(ctx, `
		SELECT retained_amount FROM cash_registers
		WHERE status = $1
		ORDER BY closed_at DESC
		LIMIT 1
		FOR UPDATE
	`, domain.RegisterClosed).Scan(&previousRetained)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// The partial unique index on (status) WHERE status='OPEN' turns a
	// concurrent double-open into a unique violation.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO cash_registers (id, status, initial_amount, final_amount, retained_amount, opened_by, opened_at)
		VALUES ($1,$2,$3,0,0,$4,$5)
	`, register.ID, register.Status, register.InitialAmount, register.OpenedBy, register.OpenedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: a cash register is already open", store.ErrConflict)
		}
		return nil, err
	}

	if confirmWithdrawal {
		topUp := register.InitialAmount.Sub(previousRetained)
		if topUp.GreaterThan(decimal.Zero) {
			withdrawal := domain.TreasuryTransaction{
				Description: "suprimento de caixa",
				Amount:      topUp,
				Type:        domain.TreasuryOut,
				Category:    domain.CategorySupplyPDV,
			}
			if err := insertTreasuryTx(ctx, tx, withdrawal, register.OpenedAt); err != nil {
				return nil, err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: a cash register is already open", store.ErrConflict)
		}
		return nil, err
	}

	created := register
	return &created, nil
}

func (s *Store) CloseOpenRegister(ctx context.Context, countedCash decimal.Decimal, transferAmount decimal.Decimal, closedAt time.Time) (*domain.CashRegister, decimal.Decimal, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, decimal.Zero, err
	}
	defer func() { _ = tx.Rollback() }()

	var register domain.CashRegister
	err = tx.QueryRowContext(ctx, `
		SELECT id, status, initial_amount, opened_by, opened_at
		FROM cash_registers
		WHERE status = $1
		FOR UPDATE
	`, domain.RegisterOpen).Scan(&register.ID, &register.Status, &register.InitialAmount, &register.OpenedBy, &register.OpenedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, decimal.Zero, fmt.Errorf("%w: no open cash register", store.ErrValidation)
	}
	if err != nil {
		return nil, decimal.Zero, err
	}
	if transferAmount.GreaterThan(countedCash) {
		return nil, decimal.Zero, fmt.Errorf("%w: transfer exceeds counted cash", store.ErrValidation)
	}

	var cashTaken decimal.Decimal
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(p.amount), 0)
		FROM payments p
		JOIN orders o ON o.id = p.order_id
		WHERE o.cash_register_id = $1 AND o.status = $2 AND p.method = $3
	`, register.ID, domain.OrderStatusCompleted, domain.PaymentCash).Scan(&cashTaken)
	if err != nil {
		return nil, decimal.Zero, err
	}

	expected := register.InitialAmount.Add(cashTaken)
	difference := countedCash.Sub(expected)

	if difference.Abs().GreaterThan(domain.CashTolerance) {
		entry := domain.TreasuryTransaction{Amount: difference.Abs()}
		if difference.IsNegative() {
			entry.Type = domain.TreasuryOut
			entry.Category = domain.CategoryBreakage
			entry.Description = "quebra de caixa " + register.ID
		} else {
			entry.Type = domain.TreasuryIn
			entry.Category = domain.CategorySurplus
			entry.Description = "sobra de caixa " + register.ID
		}
		if err := insertTreasuryTx(ctx, tx, entry, closedAt); err != nil {
			return nil, decimal.Zero, err
		}
	}
	if transferAmount.GreaterThan(decimal.Zero) {
		entry := domain.TreasuryTransaction{
			Description: "sangria " + register.ID,
			Amount:      transferAmount,
			Type:        domain.TreasuryIn,
			Category:    domain.CategoryInternalTransfer,
		}
		if err := insertTreasuryTx(ctx, tx, entry, closedAt); err != nil {
			return nil, decimal.Zero, err
		}
	}

	register.Status = domain.RegisterClosed
	register.FinalAmount = countedCash
	register.RetainedAmount = countedCash.Sub(transferAmount)
	register.ClosedAt = &closedAt
	if _, err := tx.ExecContext(ctx, `
		UPDATE cash_registers
		SET status = $2, final_amount = $3, retained_amount = $4, closed_at = $5
		WHERE id = $1
	`, register.ID, register.Status, register.FinalAmount, register.RetainedAmount, closedAt); err != nil {
		return nil, decimal.Zero, err
	}
	if err := tx.Commit(); err != nil {
		return nil, decimal.Zero, err
	}

	closed := register
	return &closed, difference, nil
}

func (s *Store) GetOpenRegister(ctx context.Context) (*domain.CashRegister, error) {
	return s.getRegister(ctx, `WHERE status = 'OPEN'`)
}

func (s *Store) GetLastClosedRegister(ctx context.Context) (*domain.CashRegister, error) {
	return s.getRegister(ctx, `WHERE status = 'CLOSED' ORDER BY closed_at DESC LIMIT 1`)
}

func (s *Store) getRegister(ctx context.Context, clause string) (*domain.CashRegister, error) {
	var register domain.CashRegister
	var closedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, status, initial_amount, final_amount, retained_amount, opened_by, opened_at, closed_at
		FROM cash_registers
	`+clause).Scan(&register.ID, &register.Status, &register.InitialAmount, &register.FinalAmount,
		&register.RetainedAmount, &register.OpenedBy, &register.OpenedAt, &closedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if closedAt.Valid {
		register.ClosedAt = &closedAt.Time
	}
	return &register, nil
}

func (s *Store) SumPaymentsByMethod(ctx context.Context, registerID string) (map[string]decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.method, COALESCE(SUM(p.amount), 0)
		FROM payments p
		JOIN orders o ON o.id = p.order_id
		WHERE o.cash_register_id = $1 AND o.status = $2
		GROUP BY p.method
	`, registerID, domain.OrderStatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := map[string]decimal.Decimal{}
	for rows.Next() {
		var method string
		var total decimal.Decimal
		if err := rows.Scan(&method, &total); err != nil {
			return nil, err
		}
		totals[method] = total
	}
	return totals, rows.Err()
}

// ---- restock & inventory ----

func (s *Store) RestockVariant(ctx context.Context, variantID string, qty int, unitCost decimal.Decimal) (*domain.ProductVariant, decimal.Decimal, error) {
	if qty < 1 || unitCost.LessThanOrEqual(decimal.Zero) {
		return nil, decimal.Zero, fmt.Errorf("%w: qty and unit cost must be positive", store.ErrValidation)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, decimal.Zero, err
	}
	defer func() { _ = tx.Rollback() }()

	var variant domain.ProductVariant
	err = tx.QueryRowContext(ctx, `
		SELECT id, product_id, sku, size, color, stock_quantity, min_stock, active
		FROM product_variants
		WHERE id = $1
		FOR UPDATE
	`, variantID).Scan(&variant.ID, &variant.ProductID, &variant.SKU, &variant.Size, &variant.Color,
		&variant.StockQuantity, &variant.MinStock, &variant.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, decimal.Zero, fmt.Errorf("%w: variant %s", store.ErrNotFound, variantID)
	}
	if err != nil {
		return nil, decimal.Zero, err
	}

	var currentCost decimal.Decimal
	err = tx.QueryRowContext(ctx, `
		SELECT cost_price FROM products WHERE id = $1 FOR UPDATE
	`, variant.ProductID).Scan(&currentCost)
	if err != nil {
		return nil, decimal.Zero, err
	}

	// The cost basis spans every variant of the product.
	var totalStock int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(stock_quantity), 0) FROM product_variants WHERE product_id = $1
	`, variant.ProductID).Scan(&totalStock)
	if err != nil {
		return nil, decimal.Zero, err
	}
	newCost := weightedAverageCost(totalStock, currentCost, qty, unitCost)

	now := time.Now().UTC()
	variant.StockQuantity += qty
	if _, err := tx.ExecContext(ctx, `
		UPDATE product_variants SET stock_quantity = $2 WHERE id = $1
	`, variant.ID, variant.StockQuantity); err != nil {
		return nil, decimal.Zero, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE products SET cost_price = $2, updated_at = $3 WHERE id = $1
	`, variant.ProductID, newCost, now); err != nil {
		return nil, decimal.Zero, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO stock_movements (id, variant_id, type, qty, reason, reference, created_at)
		VALUES ($1,$2,$3,$4,$5,NULL,$6)
	`, xid.New("mov"), variant.ID, domain.MovementIn, qty, "reposicao", now); err != nil {
		return nil, decimal.Zero, err
	}
	expense := domain.TreasuryTransaction{
		Description: fmt.Sprintf("reposição %s x%d", variant.SKU, qty),
		Amount:      unitCost.Mul(decimal.NewFromInt(int64(qty))).Round(2),
		Type:        domain.TreasuryOut,
		Category:    domain.CategoryRestock,
	}
	if err := insertTreasuryTx(ctx, tx, expense, now); err != nil {
		return nil, decimal.Zero, err
	}
	if err := tx.Commit(); err != nil {
		return nil, decimal.Zero, err
	}

	restocked := variant
	return &restocked, newCost, nil
}

// weightedAverageCost blends the existing cost basis with the incoming units.
// With zero prior stock the formula collapses to the new unit cost.
func weightedAverageCost(currentStock int, currentCost decimal.Decimal, qty int, unitCost decimal.Decimal) decimal.Decimal {
	if currentStock <= 0 {
		return unitCost.Round(4)
	}
	current := decimal.NewFromInt(int64(currentStock))
	incoming := decimal.NewFromInt(int64(qty))
	blended := current.Mul(currentCost).Add(incoming.Mul(unitCost))
	return blended.Div(current.Add(incoming)).Round(4)
}

func (s *Store) ApplyReturn(ctx context.Context, ret domain.OrderReturn, refund domain.TreasuryTransaction) (*domain.OrderReturn, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT id, customer_id, cash_register_id, idempotency_key, status, subtotal,
		       discount_percent, total, items, active, created_at, updated_at
		FROM orders
		WHERE id = $1 AND active = true
		FOR UPDATE
	`, ret.OrderID)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %s", store.ErrNotFound, ret.OrderID)
		}
		return nil, err
	}
	if order.Status != domain.OrderStatusCompleted {
		return nil, fmt.Errorf("%w: only completed orders can be returned", store.ErrValidation)
	}

	soldByVariant := make(map[string]int, len(order.Items))
	for _, item := range order.Items {
		soldByVariant[item.VariantID] += item.Qty
	}

	// Prior returns for this order; the FOR UPDATE on the order row
	// serializes concurrent returns against each other.
	returned := map[string]int{}
	rows, err := tx.QueryContext(ctx, `SELECT items FROM order_returns WHERE order_id = $1`, ret.OrderID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			rows.Close()
			return nil, err
		}
		var items []domain.ReturnItem
		if err := json.Unmarshal(raw, &items); err != nil {
			rows.Close()
			return nil, err
		}
		for _, item := range items {
			returned[item.VariantID] += item.Qty
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
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
	if ret.Restocked {
		for _, item := range ret.Items {
			if _, err := tx.ExecContext(ctx, `
				UPDATE product_variants SET stock_quantity = stock_quantity + $2 WHERE id = $1
			`, item.VariantID, item.Qty); err != nil {
				return nil, err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO stock_movements (id, variant_id, type, qty, reason, reference, created_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7)
			`, xid.New("mov"), item.VariantID, domain.MovementIn, item.Qty, "devolucao", ret.OrderID, now); err != nil {
				return nil, err
			}
		}
	}

	if ret.ID == "" {
		ret.ID = xid.New("ret")
	}
	ret.CreatedAt = now
	itemsJSON, err := json.Marshal(ret.Items)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO order_returns (id, order_id, items, restocked, refund_amount, reason, processed_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, ret.ID, ret.OrderID, itemsJSON, ret.Restocked, ret.RefundAmount, ret.Reason, ret.ProcessedBy, now); err != nil {
		return nil, err
	}
	if err := insertTreasuryTx(ctx, tx, refund, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := ret
	return &created, nil
}

func (s *Store) ListStockMovements(ctx context.Context, variantID string, limit int) ([]domain.StockMovement, error) {
	if limit < 1 {
		limit = 100
	}
	clause := ``
	args := []any{}
	if variantID != "" {
		clause = `WHERE variant_id = $1`
		args = append(args, variantID)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, variant_id, type, qty, reason, reference, created_at
		FROM stock_movements
		%s
		ORDER BY created_at DESC
		LIMIT $%d
	`, clause, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]domain.StockMovement, 0, limit)
	for rows.Next() {
		var m domain.StockMovement
		var reference sql.NullString
		if err := rows.Scan(&m.ID, &m.VariantID, &m.Type, &m.Qty, &m.Reason, &reference, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Reference = reference.String
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// ---- receivables ----

func (s *Store) GetReceivableByID(ctx context.Context, id string) (*domain.AccountReceivable, error) {
	var r domain.AccountReceivable
	var paidAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, order_id, customer_id, amount, due_date, status, paid_at, created_at
		FROM accounts_receivable
		WHERE id = $1
	`, id).Scan(&r.ID, &r.OrderID, &r.CustomerID, &r.Amount, &r.DueDate, &r.Status, &paidAt, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if paidAt.Valid {
		r.PaidAt = &paidAt.Time
	}
	derived := withDerivedStatus(r, time.Now().UTC())
	return &derived, nil
}

func (s *Store) MarkReceivablePaid(ctx context.Context, id string, paidAt time.Time) (*domain.AccountReceivable, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var r domain.AccountReceivable
	err = tx.QueryRowContext(ctx, `
		SELECT id, order_id, customer_id, amount, due_date, status, created_at
		FROM accounts_receivable
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&r.ID, &r.OrderID, &r.CustomerID, &r.Amount, &r.DueDate, &r.Status, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if r.Status == domain.ReceivablePaid {
		return nil, fmt.Errorf("%w: receivable already settled", store.ErrValidation)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE accounts_receivable SET status = $2, paid_at = $3 WHERE id = $1
	`, id, domain.ReceivablePaid, paidAt); err != nil {
		return nil, err
	}

	// Crediário revenue is recognized here and nowhere else.
	entry := domain.TreasuryTransaction{
		Description: "crediário quitado " + r.OrderID,
		Amount:      r.Amount,
		Type:        domain.TreasuryIn,
		Category:    domain.CategoryReceivableSettled,
	}
	if err := insertTreasuryTx(ctx, tx, entry, paidAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	r.Status = domain.ReceivablePaid
	r.PaidAt = &paidAt
	return &r, nil
}

func (s *Store) ListReceivables(ctx context.Context, customerID string, status string, limit int) ([]domain.AccountReceivable, error) {
	if limit < 1 {
		limit = 100
	}
	now := time.Now().UTC()

	clauses := []string{"TRUE"}
	args := []any{}
	if customerID != "" {
		args = append(args, customerID)
		clauses = append(clauses, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	// OVERDUE is derived, not stored: translate the filter into a predicate
	// over the stored PENDING status and the due date.
	switch status {
	case domain.ReceivableOverdue:
		args = append(args, now)
		clauses = append(clauses, fmt.Sprintf("status = 'PENDING' AND due_date < $%d", len(args)))
	case domain.ReceivablePending:
		args = append(args, now)
		clauses = append(clauses, fmt.Sprintf("status = 'PENDING' AND due_date >= $%d", len(args)))
	case "":
	default:
		args = append(args, status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, order_id, customer_id, amount, due_date, status, paid_at, created_at
		FROM accounts_receivable
		WHERE %s
		ORDER BY due_date, id
		LIMIT $%d
	`, strings.Join(clauses, " AND "), len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	receivables := make([]domain.AccountReceivable, 0, limit)
	for rows.Next() {
		var r domain.AccountReceivable
		var paidAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.OrderID, &r.CustomerID, &r.Amount, &r.DueDate, &r.Status, &paidAt, &r.CreatedAt); err != nil {
			return nil, err
		}
		if paidAt.Valid {
			r.PaidAt = &paidAt.Time
		}
		receivables = append(receivables, withDerivedStatus(r, now))
	}
	return receivables, rows.Err()
}

func withDerivedStatus(r domain.AccountReceivable, now time.Time) domain.AccountReceivable {
	if r.Status == domain.ReceivablePending && r.DueDate.Before(now) {
		r.Status = domain.ReceivableOverdue
	}
	return r
}

// ---- treasury ----

func (s *Store) CreateTreasuryTransaction(ctx context.Context, entry domain.TreasuryTransaction) (*domain.TreasuryTransaction, error) {
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
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO treasury_transactions (id, description, amount, type, category, date)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, entry.ID, entry.Description, entry.Amount, entry.Type, entry.Category, entry.Date)
	if err != nil {
		return nil, err
	}
	created := entry
	return &created, nil
}

func insertTreasuryTx(ctx context.Context, tx *sql.Tx, entry domain.TreasuryTransaction, fallbackDate time.Time) error {
	if entry.ID == "" {
		entry.ID = xid.New("tt")
	}
	if entry.Date.IsZero() {
		entry.Date = fallbackDate
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO treasury_transactions (id, description, amount, type, category, date)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, entry.ID, entry.Description, entry.Amount, entry.Type, entry.Category, entry.Date)
	return err
}

func (s *Store) ListTreasuryTransactions(ctx context.Context, from time.Time, to time.Time, category string, limit int) ([]domain.TreasuryTransaction, error) {
	if limit < 1 {
		limit = 200
	}
	clauses := []string{"TRUE"}
	args := []any{}
	if category != "" {
		args = append(args, category)
		clauses = append(clauses, fmt.Sprintf("category = $%d", len(args)))
	}
	if !from.IsZero() {
		args = append(args, from)
		clauses = append(clauses, fmt.Sprintf("date >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		clauses = append(clauses, fmt.Sprintf("date < $%d", len(args)))
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, description, amount, type, category, date
		FROM treasury_transactions
		WHERE %s
		ORDER BY date DESC
		LIMIT $%d
	`, strings.Join(clauses, " AND "), len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.TreasuryTransaction, 0, limit)
	for rows.Next() {
		var e domain.TreasuryTransaction
		if err := rows.Scan(&e.ID, &e.Description, &e.Amount, &e.Type, &e.Category, &e.Date); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ---- customers ----

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
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
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, customer.ID, customer.Name, customer.Phone, customer.Active, customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	var customer domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, active, created_at
		FROM customers
		WHERE id = $1 AND active = true
	`, id).Scan(&customer.ID, &customer.Name, &customer.Phone, &customer.Active, &customer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &customer, nil
}

func (s *Store) SearchCustomers(ctx context.Context, query string, limit int) ([]domain.Customer, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, active, created_at
		FROM customers
		WHERE active = true AND ($1 = '' OR name ILIKE '%' || $1 || '%' OR phone LIKE '%' || $1 || '%')
		ORDER BY name
		LIMIT $2
	`, strings.TrimSpace(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, limit)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Active, &c.CreatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// ---- audit & users ----

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	clauses := []string{"TRUE"}
	args := []any{}
	if !from.IsZero() {
		args = append(args, from)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		clauses = append(clauses, fmt.Sprintf("created_at < $%d", len(args)))
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d
	`, strings.Join(clauses, " AND "), len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var l domain.AuditLog
		if err := rows.Scan(&l.ID, &l.ActorUsername, &l.ActorRole, &l.Action, &l.EntityType, &l.EntityID, &l.Detail, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrValidation
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, max_discount, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, user.Username, user.Password, user.Role, user.MaxDiscount, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, max_discount, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.MaxDiscount, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password = $2 WHERE username = $1`, username, password)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ---- helpers ----

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
