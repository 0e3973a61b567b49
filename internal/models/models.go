package models

import (
	"database/sql"
	"time"
)

// Product represents a catalog product. The checkout service only reads
// prices and adjusts stock; catalog management lives elsewhere.
type Product struct {
	ID        int64     `db:"id" json:"id"`
	SKU       string    `db:"sku" json:"sku"`
	Name      string    `db:"name" json:"name"`
	Price     int64     `db:"price" json:"price"`
	Active    bool      `db:"active" json:"active"`
	Stock     int       `db:"stock" json:"stock"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Sale is the transaction header. Amounts are in minor currency units.
type Sale struct {
	ID            int64          `db:"id" json:"id"`
	PublicCode    string         `db:"public_code" json:"public_code"`
	Source        string         `db:"source" json:"source"`
	Status        string         `db:"status" json:"status"`
	PaymentMethod string         `db:"payment_method" json:"payment_method"`
	MomoReference sql.NullString `db:"momo_reference" json:"momo_reference,omitempty"`
	StaffID       sql.NullInt64  `db:"staff_id" json:"staff_id,omitempty"`
	TotalAmount   int64          `db:"total_amount" json:"total_amount"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// Paid reports whether the sale has reached its paid terminal state.
func (s *Sale) Paid() bool {
	return s.Status == SaleStatusPaid
}

// SaleItem is a line item with the unit price snapshotted at sale time.
// Snapshots never change after insert, regardless of later catalog edits.
type SaleItem struct {
	ID              int64 `db:"id" json:"id"`
	SaleID          int64 `db:"sale_id" json:"sale_id"`
	ProductID       int64 `db:"product_id" json:"product_id"`
	Qty             int   `db:"qty" json:"qty"`
	UnitPriceAtTime int64 `db:"unit_price_at_time" json:"unit_price_at_time"`
	LineTotal       int64 `db:"line_total" json:"line_total"`
}

// ShopSettings is a single-row table of operator toggles.
type ShopSettings struct {
	ID          int64     `db:"id" json:"id"`
	ScanEnabled bool      `db:"scan_enabled" json:"scan_enabled"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Sale sources
const (
	SaleSourceStaffManual  = "STAFF_MANUAL"
	SaleSourceCustomerScan = "CUSTOMER_SCAN"
)

// Sale statuses
const (
	SaleStatusPending   = "PENDING"
	SaleStatusPaid      = "PAID"
	SaleStatusCancelled = "CANCELLED"
)

// Payment methods
const (
	PaymentMethodCash = "CASH"
	PaymentMethodMomo = "MOMO"
)

// ProcessedEvent for consumer-side idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
