package inventory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/joao-fontenele/stationery-storefront/internal/domain"
)

var (
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInsufficientReserved = errors.New("insufficient reserved stock to release")
)

type InventoryRepository struct {
	db *sql.DB
}

func NewInventoryRepository(db *sql.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

func (r *InventoryRepository) ListAll(ctx context.Context) ([]domain.StockLevel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, available, reserved
		FROM storefront.stock_levels
		ORDER BY product_id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.StockLevel{}
	for rows.Next() {
		var stock domain.StockLevel
		if err := rows.Scan(&stock.ProductID, &stock.Available, &stock.Reserved); err != nil {
			return nil, err
		}
		items = append(items, stock)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// GetStock returns nil, nil for a product without a stock row.
func (r *InventoryRepository) GetStock(ctx context.Context, productID int64) (*domain.StockLevel, error) {
	stock := &domain.StockLevel{}

	err := r.db.QueryRowContext(ctx, `
		SELECT product_id, available, reserved
		FROM storefront.stock_levels
		WHERE product_id = $1
	`, productID).Scan(&stock.ProductID, &stock.Available, &stock.Reserved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return stock, nil
}

// Reserve moves quantity units from available to reserved, or fails with
// ErrInsufficientStock without changing anything.
func (r *InventoryRepository) Reserve(ctx context.Context, productID int64, quantity int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE storefront.stock_levels
		SET available = available - $2, reserved = reserved + $2, updated_at = NOW()
		WHERE product_id = $1 AND available >= $2
	`, productID, quantity)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrInsufficientStock
	}

	return nil
}

func (r *InventoryRepository) Release(ctx context.Context, productID int64, quantity int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE storefront.stock_levels
		SET available = available + $2, reserved = reserved - $2, updated_at = NOW()
		WHERE product_id = $1 AND reserved >= $2
	`, productID, quantity)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrInsufficientReserved
	}

	return nil
}
