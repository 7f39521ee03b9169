package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/joao-fontenele/stationery-storefront/internal/domain"
)

const productColumns = `
	id, name_en, name_ar, description_en, description_ar,
	price, category, image, stock, is_featured
`

// PostgresSource reads the storefront.products table.
type PostgresSource struct {
	db *sql.DB
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM storefront.products
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *PostgresSource) Get(ctx context.Context, id int64) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM storefront.products
		WHERE id = $1
	`, id)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (*domain.Product, error) {
	var p domain.Product

	err := row.Scan(
		&p.ID,
		&p.Name.EN, &p.Name.AR,
		&p.Description.EN, &p.Description.AR,
		&p.Price, &p.Category, &p.Image, &p.Stock, &p.IsFeatured,
	)
	if err != nil {
		return nil, err
	}

	return &p, nil
}
