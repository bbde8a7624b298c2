package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestRestockBlendsCostAcrossIntakes(t *testing.T) {
	databaseURL := os.Getenv("MODALOJA_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set MODALOJA_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prod-restock-it-%d", stamp)
	variantID := fmt.Sprintf("var-restock-it-%d", stamp)
	sku := fmt.Sprintf("SKU-RESTOCK-IT-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stock_movements WHERE variant_id = $1`, variantID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM treasury_transactions WHERE description LIKE '%' || $1 || '%'`, sku)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM product_variants WHERE id = $1`, variantID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, sale_price, cost_price, active, created_at, updated_at)
		VALUES ($1, 'Produto Restock IT', 'testes', 99.90, 0, true, $2, $2)
	`, productID, now); err != nil {
		t.Fatalf("insert product: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO product_variants (id, product_id, sku, size, color, stock_quantity, min_stock, active)
		VALUES ($1, $2, $3, 'U', '', 0, 0, true)
	`, variantID, productID, sku); err != nil {
		t.Fatalf("insert variant: %v", err)
	}

	variant, cost, err := s.RestockVariant(ctx, variantID, 10, decimal.NewFromInt(5))
	if err != nil {
		t.Fatalf("first restock: %v", err)
	}
	if variant.StockQuantity != 10 || !cost.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("after first restock got stock %d cost %s", variant.StockQuantity, cost)
	}

	variant, cost, err = s.RestockVariant(ctx, variantID, 10, decimal.NewFromInt(7))
	if err != nil {
		t.Fatalf("second restock: %v", err)
	}
	if variant.StockQuantity != 20 {
		t.Fatalf("expected stock 20, got %d", variant.StockQuantity)
	}
	if !cost.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("expected blended cost 6, got %s", cost)
	}

	var stored decimal.Decimal
	row := s.db.QueryRowContext(ctx, `SELECT cost_price FROM products WHERE id = $1`, productID)
	if err := row.Scan(&stored); err != nil {
		t.Fatalf("read cost_price: %v", err)
	}
	if !stored.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("expected persisted cost 6, got %s", stored)
	}
}
