package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"checkout-service/internal/models"

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

// GetScanEnabled reads the operator toggle gating customer self-checkout.
func (s *Store) GetScanEnabled(ctx context.Context) (bool, error) {
	var enabled bool
	err := s.db.GetContext(ctx, &enabled,
		"SELECT scan_enabled FROM shop_settings WHERE id = 1")
	if err == sql.ErrNoRows {
		// The settings row is seeded by migration; a missing row means
		// self-checkout stays closed.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return enabled, nil
}

// SetScanEnabled flips the self-checkout toggle.
func (s *Store) SetScanEnabled(ctx context.Context, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE shop_settings SET scan_enabled = $1, updated_at = NOW() WHERE id = 1",
		enabled)
	return err
}

// DecrementStock reduces a product's stock after a sale is paid.
func (s *Store) DecrementStock(ctx context.Context, productID int64, qty int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE products SET stock = stock - $1 WHERE id = $2",
		qty, productID)
	return err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
