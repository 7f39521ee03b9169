package orders

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/stationery-storefront/internal/domain"
)

const uniqueViolation = "23505"

const orderColumns = `
	id, customer_id, customer_name, customer_email, payment_method, used_points,
	status, locale, item_count, subtotal, points_discount, shipping, total, created_at
`

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create stores the order and its lines in one transaction. A taken order id
// is reported as domain.ErrDuplicateOrderID.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	s := order.Summary
	_, err = tx.ExecContext(ctx, `
		INSERT INTO storefront.orders (
			id, customer_id, customer_name, customer_email, payment_method, used_points,
			status, locale, item_count, subtotal, points_discount, shipping, total,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
	`, order.ID, order.CustomerID, order.CustomerName, order.CustomerEmail, order.PaymentMethod, order.UsedPoints,
		order.Status, order.Locale, s.ItemCount, s.Subtotal, s.PointsDiscount, s.Shipping, s.Total,
		order.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrDuplicateOrderID
		}
		return err
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO storefront.order_items (id, order_id, product_id, name_en, name_ar, quantity, price, image)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, uuid.New().String(), order.ID, item.ID, item.Name.EN, item.Name.AR, item.Quantity, item.Price, item.Image)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM storefront.orders
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, name_en, name_ar, quantity, price, image
		FROM storefront.order_items
		WHERE order_id = $1
		ORDER BY product_id
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.CartLineItem
		if err := rows.Scan(&item.ID, &item.Name.EN, &item.Name.AR, &item.Quantity, &item.Price, &item.Image); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

// UpdateStatus returns nil, nil when no order has the id.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE storefront.orders SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

// List returns orders newest first, loading lines with one query. An empty
// status returns every order.
func (r *OrderRepository) List(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM storefront.orders
		WHERE $1 = '' OR status = $1
		ORDER BY created_at DESC
	`, status)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		order.Items = []domain.CartLineItem{}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, name_en, name_ar, quantity, price, image
		FROM storefront.order_items
		WHERE order_id = ANY($1)
		ORDER BY product_id
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var orderID string
		var item domain.CartLineItem
		if err := itemRows.Scan(&orderID, &item.ID, &item.Name.EN, &item.Name.AR, &item.Quantity, &item.Price, &item.Image); err != nil {
			return nil, err
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*domain.Order, error) {
	order := &domain.Order{}
	s := &order.Summary

	err := row.Scan(
		&order.ID, &order.CustomerID, &order.CustomerName, &order.CustomerEmail,
		&order.PaymentMethod, &order.UsedPoints, &order.Status, &order.Locale,
		&s.ItemCount, &s.Subtotal, &s.PointsDiscount, &s.Shipping, &s.Total,
		&order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return order, nil
}
