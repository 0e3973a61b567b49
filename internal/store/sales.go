package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"checkout-service/internal/models"

	"github.com/lib/pq"
)

// Storage-level outcomes the checkout workflow branches on.
var (
	// ErrCodeTaken reports a public_code collision with another sale
	// still in PENDING state. Callers retry with a fresh code.
	ErrCodeTaken = errors.New("public code already active")

	// ErrSaleNotFound reports that no sale carries the given code.
	ErrSaleNotFound = errors.New("sale not found")

	// ErrSaleFinalized reports that the sale already reached a terminal
	// state and cannot transition again.
	ErrSaleFinalized = errors.New("sale already finalized")

	// ErrNotScanSource reports a confirm attempt against a manual POS
	// sale, which has no redemption step.
	ErrNotScanSource = errors.New("sale is not a scan checkout")
)

const pqUniqueViolation = "23505"

func isCodeCollision(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation &&
			pqErr.Constraint == "sales_public_code_pending_uq"
	}
	return false
}

// CreateSaleWithItems inserts the sale header and all of its line items in
// a single transaction, so readers never observe a sale without items.
// Returns ErrCodeTaken when the public code collides with an active sale.
func (s *Store) CreateSaleWithItems(ctx context.Context, sale *models.Sale, items []models.SaleItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO sales (public_code, source, status, payment_method, momo_reference, staff_id, total_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err = tx.QueryRowxContext(ctx, query,
		sale.PublicCode, sale.Source, sale.Status, sale.PaymentMethod,
		sale.MomoReference, sale.StaffID, sale.TotalAmount,
	).Scan(&sale.ID, &sale.CreatedAt, &sale.UpdatedAt)
	if err != nil {
		if isCodeCollision(err) {
			return ErrCodeTaken
		}
		return err
	}

	itemQuery := `
		INSERT INTO sale_items (sale_id, product_id, qty, unit_price_at_time, line_total)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	for i := range items {
		items[i].SaleID = sale.ID
		err = tx.QueryRowxContext(ctx, itemQuery,
			items[i].SaleID, items[i].ProductID, items[i].Qty,
			items[i].UnitPriceAtTime, items[i].LineTotal,
		).Scan(&items[i].ID)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// saleByCodeQuery resolves a code to one sale. Only PENDING rows hold the
// uniqueness constraint, so a still-active sale always wins over terminal
// reuses of the same code; among terminal rows the newest wins.
const saleByCodeQuery = `
	SELECT * FROM sales
	WHERE public_code = $1
	ORDER BY (status = 'PENDING') DESC, created_at DESC
	LIMIT 1`

// GetSaleByCode retrieves the sale a public code currently refers to.
func (s *Store) GetSaleByCode(ctx context.Context, code string) (*models.Sale, error) {
	var sale models.Sale
	err := s.db.GetContext(ctx, &sale, saleByCodeQuery, code)
	if err == sql.ErrNoRows {
		return nil, ErrSaleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// GetSaleItems retrieves all line items for a sale
func (s *Store) GetSaleItems(ctx context.Context, saleID int64) ([]models.SaleItem, error) {
	var items []models.SaleItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM sale_items WHERE sale_id = $1 ORDER BY id", saleID)
	return items, err
}

// ConfirmSale transitions a pending scan-checkout sale to PAID, recording
// the confirming staff member. The row lock serializes concurrent confirm
// attempts: exactly one observes PENDING and wins, the rest see the
// terminal state and get ErrSaleFinalized.
func (s *Store) ConfirmSale(ctx context.Context, code string, staffID int64) (*models.Sale, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var sale models.Sale
	err = tx.GetContext(ctx, &sale, saleByCodeQuery+" FOR UPDATE", code)
	if err == sql.ErrNoRows {
		return nil, ErrSaleNotFound
	}
	if err != nil {
		return nil, err
	}

	if sale.Source != models.SaleSourceCustomerScan {
		return nil, ErrNotScanSource
	}
	if sale.Status != models.SaleStatusPending {
		return nil, ErrSaleFinalized
	}

	err = tx.GetContext(ctx, &sale.UpdatedAt,
		"UPDATE sales SET status = $1, staff_id = $2, updated_at = NOW() WHERE id = $3 RETURNING updated_at",
		models.SaleStatusPaid, staffID, sale.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	sale.Status = models.SaleStatusPaid
	sale.StaffID = sql.NullInt64{Int64: staffID, Valid: true}
	return &sale, nil
}

// ExpirePendingSales cancels scan-checkout sales that stayed PENDING past
// the cutoff, releasing their public codes for reuse. Returns the sales it
// cancelled so the caller can publish events for them.
func (s *Store) ExpirePendingSales(ctx context.Context, before time.Time) ([]models.Sale, error) {
	var expired []models.Sale
	err := s.db.SelectContext(ctx, &expired, `
		UPDATE sales
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND source = $3 AND created_at < $4
		RETURNING *`,
		models.SaleStatusCancelled, models.SaleStatusPending,
		models.SaleSourceCustomerScan, before)
	return expired, err
}
