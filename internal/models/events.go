package models

import "time"

// Event types
const (
	EventTypeSaleCreated   = "SALE_CREATED"
	EventTypeSalePaid      = "SALE_PAID"
	EventTypeSaleCancelled = "SALE_CANCELLED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// SaleCreatedEvent published when a sale is recorded
type SaleCreatedEvent struct {
	BaseEvent
	SaleID      int64          `json:"sale_id"`
	PublicCode  string         `json:"public_code"`
	Source      string         `json:"source"`
	TotalAmount int64          `json:"total_amount"`
	Items       []SaleItemData `json:"items"`
}

// SalePaidEvent published when a sale reaches PAID, either at creation
// (manual POS) or on redemption of a scan-checkout code.
type SalePaidEvent struct {
	BaseEvent
	SaleID     int64          `json:"sale_id"`
	PublicCode string         `json:"public_code"`
	StaffID    int64          `json:"staff_id"`
	Items      []SaleItemData `json:"items"`
}

// SaleCancelledEvent published when the sweeper expires a pending sale
type SaleCancelledEvent struct {
	BaseEvent
	SaleID     int64  `json:"sale_id"`
	PublicCode string `json:"public_code"`
	Reason     string `json:"reason"`
}

// SaleItemData represents item data carried in events
type SaleItemData struct {
	ProductID int64 `json:"product_id"`
	Qty       int   `json:"qty"`
	UnitPrice int64 `json:"unit_price"`
}
