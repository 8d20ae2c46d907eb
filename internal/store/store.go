package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reservation-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product %d: %w", id, models.ErrProductNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProducts retrieves all products
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY id")
	return products, err
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// GetInventory retrieves the inventory row for a product
func (s *Store) GetInventory(ctx context.Context, productID int64) (*models.Inventory, error) {
	var inv models.Inventory
	err := s.db.GetContext(ctx, &inv, "SELECT * FROM inventory WHERE product_id = $1", productID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("inventory for product %d: %w", productID, models.ErrProductNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetStockCount retrieves only the available-to-promise count
func (s *Store) GetStockCount(ctx context.Context, productID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT count FROM inventory WHERE product_id = $1", productID)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("inventory for product %d: %w", productID, models.ErrProductNotFound)
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// DecrementStock subtracts from the persisted count, clamped at zero, and
// returns the new count together with the units actually removed. The single
// UPDATE keeps the decrement atomic; a clamp shows up as removed < amount.
func (s *Store) DecrementStock(ctx context.Context, productID int64, amount int) (int, int, error) {
	var row struct {
		Count int `db:"count"`
		Prev  int `db:"prev"`
	}
	query := `
		UPDATE inventory i
		SET count = GREATEST(i.count - $1, 0), updated_at = NOW()
		FROM (SELECT product_id, count AS prev FROM inventory WHERE product_id = $2 FOR UPDATE) p
		WHERE i.product_id = p.product_id
		RETURNING i.count, p.prev`

	err := s.db.GetContext(ctx, &row, query, amount, productID)
	if err == sql.ErrNoRows {
		return 0, 0, fmt.Errorf("inventory for product %d: %w", productID, models.ErrProductNotFound)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decrement stock for product %d: %w", productID, err)
	}
	return row.Count, row.Prev - row.Count, nil
}

// SetStockCount overwrites the persisted count (restocking path)
func (s *Store) SetStockCount(ctx context.Context, productID int64, count int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE inventory SET count = $1, updated_at = NOW() WHERE product_id = $2",
		count, productID)
	return err
}
