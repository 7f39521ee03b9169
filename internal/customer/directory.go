package customer

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/joao-fontenele/stationery-storefront/internal/domain"
)

// MemoryDirectory keeps customers in process memory and assigns sequential ids.
type MemoryDirectory struct {
	mu        sync.RWMutex
	nextID    int64
	customers []domain.Customer
}

func NewMemoryDirectory(seed ...domain.Customer) *MemoryDirectory {
	d := &MemoryDirectory{nextID: 1}
	for _, c := range seed {
		d.Add(c)
	}
	return d
}

// Add stores a full record, keeping its points and orders count. A zero id is
// replaced by the next sequential id.
func (d *MemoryDirectory) Add(c domain.Customer) domain.Customer {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c.ID == 0 {
		c.ID = d.nextID
	}
	if c.ID >= d.nextID {
		d.nextID = c.ID + 1
	}

	d.customers = append(d.customers, c)
	return c
}

// Find matches the identifier exactly against email or phone.
func (d *MemoryDirectory) Find(ctx context.Context, identifier string) (*domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if identifier == "" {
		return nil, nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, c := range d.customers {
		if c.Email == identifier || c.Phone == identifier {
			return &c, nil
		}
	}

	return nil, nil
}

func (d *MemoryDirectory) Create(ctx context.Context, reg domain.Registration) (*domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := d.Add(domain.Customer{
		Name:    reg.Name,
		Email:   reg.Email,
		Phone:   reg.Phone,
		Address: reg.Address,
		City:    reg.City,
	})

	return &c, nil
}

// PostgresDirectory reads and writes the storefront.customers table.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) Find(ctx context.Context, identifier string) (*domain.Customer, error) {
	if identifier == "" {
		return nil, nil
	}

	c := &domain.Customer{}
	err := d.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, address, city, points, orders_count
		FROM storefront.customers
		WHERE email = $1 OR phone = $1
		ORDER BY id
		LIMIT 1
	`, identifier).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.City, &c.Points, &c.OrdersCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return c, nil
}

func (d *PostgresDirectory) Create(ctx context.Context, reg domain.Registration) (*domain.Customer, error) {
	c := &domain.Customer{
		Name:    reg.Name,
		Email:   reg.Email,
		Phone:   reg.Phone,
		Address: reg.Address,
		City:    reg.City,
	}

	err := d.db.QueryRowContext(ctx, `
		INSERT INTO storefront.customers (name, email, phone, address, city, points, orders_count, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, 0, NOW())
		RETURNING id
	`, c.Name, c.Email, c.Phone, c.Address, c.City).Scan(&c.ID)
	if err != nil {
		return nil, err
	}

	return c, nil
}
