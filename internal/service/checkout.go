package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the persistence surface the checkout workflows need.
// *store.Store satisfies it; tests substitute an in-memory fake.
type Store interface {
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	GetScanEnabled(ctx context.Context) (bool, error)
	CreateSaleWithItems(ctx context.Context, sale *models.Sale, items []models.SaleItem) error
	GetSaleByCode(ctx context.Context, code string) (*models.Sale, error)
	GetSaleItems(ctx context.Context, saleID int64) ([]models.SaleItem, error)
	ConfirmSale(ctx context.Context, code string, staffID int64) (*models.Sale, error)
}

// StatusCache absorbs the customer polling traffic. Cache failures are
// never fatal; a miss just falls through to the database.
type StatusCache interface {
	GetSale(ctx context.Context, code string) (*SaleView, error)
	SetSale(ctx context.Context, code string, view *SaleView) error
	InvalidateSale(ctx context.Context, code string) error
	GetScanEnabled(ctx context.Context) (enabled, ok bool, err error)
	SetScanEnabled(ctx context.Context, enabled bool) error
}

// EventPublisher emits sale lifecycle events. Publish failures are logged
// and never fail the request.
type EventPublisher interface {
	PublishSaleCreated(ctx context.Context, event *models.SaleCreatedEvent) error
	PublishSalePaid(ctx context.Context, event *models.SalePaidEvent) error
	PublishSaleCancelled(ctx context.Context, event *models.SaleCancelledEvent) error
}

// CheckoutService handles sale creation, code lookup and redemption.
type CheckoutService struct {
	store        Store
	cache        StatusCache
	events       EventPublisher
	codes        *CodeGenerator
	codeAttempts int
	logger       *zap.Logger
}

// NewCheckoutService creates a new checkout service. codeAttempts bounds
// the generate-and-insert retry loop on code collision.
func NewCheckoutService(store Store, cache StatusCache, events EventPublisher, codeAttempts int) *CheckoutService {
	return &CheckoutService{
		store:        store,
		cache:        cache,
		events:       events,
		codes:        NewCodeGenerator(),
		codeAttempts: codeAttempts,
		logger:       util.GetLogger(),
	}
}

// CreateSaleRequest represents a request to record a sale
type CreateSaleRequest struct {
	PaymentMethod string            `json:"payment_method" binding:"required"`
	MomoReference string            `json:"momo_reference,omitempty"`
	Items         []SaleItemRequest `json:"items" binding:"required,min=1"`
}

// SaleItemRequest represents one cart line
type SaleItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Qty       int   `json:"qty" binding:"required,min=1"`
}

// CreateSaleResponse represents the response after recording a sale
type CreateSaleResponse struct {
	SaleID      int64  `json:"sale_id"`
	PublicCode  string `json:"public_code"`
	Status      string `json:"status"`
	TotalAmount int64  `json:"total_amount"`
}

// SaleView is the lookup/poll projection of a sale and its items.
type SaleView struct {
	SaleID        int64             `json:"sale_id"`
	PublicCode    string            `json:"public_code"`
	Source        string            `json:"source"`
	Status        string            `json:"status"`
	PaymentMethod string            `json:"payment_method"`
	MomoReference string            `json:"momo_reference,omitempty"`
	TotalAmount   int64             `json:"total_amount"`
	Paid          bool              `json:"paid"`
	CreatedAt     time.Time         `json:"created_at"`
	Items         []models.SaleItem `json:"items"`
}

// CreateSale records a sale with server-authoritative pricing. Scan
// checkouts are created PENDING behind a 6-digit public code; manual POS
// sales are created PAID and attributed to staffID immediately.
func (s *CheckoutService) CreateSale(ctx context.Context, source string, staffID int64, req *CreateSaleRequest) (*CreateSaleResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.CreateSale")
	defer span.End()

	if err := validateRequest(req); err != nil {
		util.SalesFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, err
	}

	if source == models.SaleSourceCustomerScan {
		enabled, err := s.scanEnabled(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read scan flag: %w", err)
		}
		if !enabled {
			util.SalesFailedTotal.WithLabelValues("scan_disabled").Inc()
			return nil, ErrScanDisabled
		}
	}

	products, err := s.resolveProducts(ctx, req.Items)
	if err != nil {
		util.SalesFailedTotal.WithLabelValues("missing_product").Inc()
		return nil, err
	}

	items := buildItems(req.Items, products)
	total := sumLineTotals(items)

	sale := &models.Sale{
		Source:        source,
		Status:        models.SaleStatusPending,
		PaymentMethod: req.PaymentMethod,
		TotalAmount:   total,
	}
	if req.PaymentMethod == models.PaymentMethodMomo && req.MomoReference != "" {
		sale.MomoReference = sql.NullString{String: req.MomoReference, Valid: true}
	}
	if source == models.SaleSourceStaffManual {
		// Staff-entered sales are pre-confirmed; there is nothing to redeem.
		sale.Status = models.SaleStatusPaid
		sale.StaffID = sql.NullInt64{Int64: staffID, Valid: true}
	}

	if err := s.insertWithFreshCode(ctx, sale, items); err != nil {
		return nil, err
	}

	util.SalesCreatedTotal.WithLabelValues(source).Inc()
	s.logger.Info("Sale recorded",
		zap.Int64("sale_id", sale.ID),
		zap.String("public_code", sale.PublicCode),
		zap.String("source", source),
		zap.Int64("total_amount", total))

	s.publishCreated(ctx, sale, items)

	return &CreateSaleResponse{
		SaleID:      sale.ID,
		PublicCode:  sale.PublicCode,
		Status:      sale.Status,
		TotalAmount: total,
	}, nil
}

// insertWithFreshCode runs the generate-and-insert loop. Each collision
// with an active code burns one attempt; any other error aborts.
func (s *CheckoutService) insertWithFreshCode(ctx context.Context, sale *models.Sale, items []models.SaleItem) error {
	for attempt := 0; attempt < s.codeAttempts; attempt++ {
		sale.PublicCode = s.codes.Generate()

		err := s.store.CreateSaleWithItems(ctx, sale, items)
		if err == nil {
			return nil
		}
		if errors.Is(err, store.ErrCodeTaken) {
			util.CodeCollisionsTotal.Inc()
			s.logger.Warn("Public code collision, regenerating",
				zap.String("public_code", sale.PublicCode),
				zap.Int("attempt", attempt+1))
			continue
		}
		util.SalesFailedTotal.WithLabelValues("db_error").Inc()
		return fmt.Errorf("failed to create sale: %w", err)
	}

	util.CodeRetryExhaustedTotal.Inc()
	util.SalesFailedTotal.WithLabelValues("retry_exhausted").Inc()
	return ErrRetryExhausted
}

// LookupSale retrieves a sale and its items by public code. Read-only and
// safe to poll; responses ride a short-lived cache.
func (s *CheckoutService) LookupSale(ctx context.Context, code string) (*SaleView, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.LookupSale")
	defer span.End()

	if len(code) < 4 {
		return nil, ErrInvalidCode
	}

	if view, err := s.cache.GetSale(ctx, code); err != nil {
		s.logger.Warn("Status cache read failed", zap.Error(err))
	} else if view != nil {
		util.LookupCacheHitsTotal.Inc()
		return view, nil
	}

	sale, err := s.store.GetSaleByCode(ctx, code)
	if errors.Is(err, store.ErrSaleNotFound) {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up sale: %w", err)
	}

	items, err := s.store.GetSaleItems(ctx, sale.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sale items: %w", err)
	}

	view := newSaleView(sale, items)
	if err := s.cache.SetSale(ctx, code, view); err != nil {
		s.logger.Warn("Status cache write failed", zap.Error(err))
	}

	return view, nil
}

// ConfirmSale redeems a scan-checkout code, transitioning the sale to
// PAID exactly once. Duplicate confirmations get ErrAlreadyConfirmed.
func (s *CheckoutService) ConfirmSale(ctx context.Context, code string, staffID int64) (*SaleView, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.ConfirmSale")
	defer span.End()

	if len(code) < 4 {
		return nil, ErrInvalidCode
	}

	sale, err := s.store.ConfirmSale(ctx, code, staffID)
	switch {
	case errors.Is(err, store.ErrSaleNotFound):
		return nil, ErrCodeNotFound
	case errors.Is(err, store.ErrSaleFinalized):
		util.ConfirmConflictsTotal.Inc()
		return nil, ErrAlreadyConfirmed
	case errors.Is(err, store.ErrNotScanSource):
		return nil, ErrNotScanSource
	case err != nil:
		return nil, fmt.Errorf("failed to confirm sale: %w", err)
	}

	if err := s.cache.InvalidateSale(ctx, code); err != nil {
		s.logger.Warn("Status cache invalidation failed", zap.Error(err))
	}

	util.SalesConfirmedTotal.Inc()
	s.logger.Info("Sale confirmed",
		zap.Int64("sale_id", sale.ID),
		zap.String("public_code", sale.PublicCode),
		zap.Int64("staff_id", staffID))

	items, err := s.store.GetSaleItems(ctx, sale.ID)
	if err != nil {
		// The confirmation already committed; report the sale without
		// items rather than failing the request.
		s.logger.Error("Failed to load items for confirmed sale", zap.Error(err))
		items = nil
	}

	s.publishPaid(ctx, sale, items)

	return newSaleView(sale, items), nil
}

func (s *CheckoutService) scanEnabled(ctx context.Context) (bool, error) {
	if enabled, ok, err := s.cache.GetScanEnabled(ctx); err != nil {
		s.logger.Warn("Scan flag cache read failed", zap.Error(err))
	} else if ok {
		return enabled, nil
	}

	enabled, err := s.store.GetScanEnabled(ctx)
	if err != nil {
		return false, err
	}
	if err := s.cache.SetScanEnabled(ctx, enabled); err != nil {
		s.logger.Warn("Scan flag cache write failed", zap.Error(err))
	}
	return enabled, nil
}

// resolveProducts batch-loads authoritative prices. Any unknown or
// inactive product fails the whole sale; no item is silently skipped.
func (s *CheckoutService) resolveProducts(ctx context.Context, items []SaleItemRequest) (map[int64]*models.Product, error) {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	productMap := make(map[int64]*models.Product, len(products))
	for i := range products {
		if !products[i].Active {
			continue
		}
		productMap[products[i].ID] = &products[i]
	}

	for _, id := range ids {
		if _, ok := productMap[id]; !ok {
			return nil, fmt.Errorf("%w: product %d", ErrMissingProduct, id)
		}
	}

	return productMap, nil
}

func (s *CheckoutService) publishCreated(ctx context.Context, sale *models.Sale, items []models.SaleItem) {
	created := &models.SaleCreatedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeSaleCreated),
		SaleID:      sale.ID,
		PublicCode:  sale.PublicCode,
		Source:      sale.Source,
		TotalAmount: sale.TotalAmount,
		Items:       toItemData(items),
	}
	if err := s.events.PublishSaleCreated(ctx, created); err != nil {
		s.logger.Error("Failed to publish SaleCreated event", zap.Error(err))
	}

	// Manual sales are paid at creation, so the paid event fires here.
	if sale.Status == models.SaleStatusPaid {
		s.publishPaid(ctx, sale, items)
	}
}

func (s *CheckoutService) publishPaid(ctx context.Context, sale *models.Sale, items []models.SaleItem) {
	event := &models.SalePaidEvent{
		BaseEvent:  newBaseEvent(models.EventTypeSalePaid),
		SaleID:     sale.ID,
		PublicCode: sale.PublicCode,
		StaffID:    sale.StaffID.Int64,
		Items:      toItemData(items),
	}
	if err := s.events.PublishSalePaid(ctx, event); err != nil {
		s.logger.Error("Failed to publish SalePaid event", zap.Error(err))
	}
}

func validateRequest(req *CreateSaleRequest) error {
	if len(req.Items) == 0 {
		return ErrInvalidItems
	}
	for _, item := range req.Items {
		if item.Qty <= 0 {
			return ErrInvalidItems
		}
	}
	if req.PaymentMethod != models.PaymentMethodCash && req.PaymentMethod != models.PaymentMethodMomo {
		return ErrInvalidPayment
	}
	return nil
}

func buildItems(reqs []SaleItemRequest, products map[int64]*models.Product) []models.SaleItem {
	items := make([]models.SaleItem, 0, len(reqs))
	for _, r := range reqs {
		price := products[r.ProductID].Price
		items = append(items, models.SaleItem{
			ProductID:       r.ProductID,
			Qty:             r.Qty,
			UnitPriceAtTime: price,
			LineTotal:       price * int64(r.Qty),
		})
	}
	return items
}

func sumLineTotals(items []models.SaleItem) int64 {
	var total int64
	for _, item := range items {
		total += item.LineTotal
	}
	return total
}

func newSaleView(sale *models.Sale, items []models.SaleItem) *SaleView {
	return &SaleView{
		SaleID:        sale.ID,
		PublicCode:    sale.PublicCode,
		Source:        sale.Source,
		Status:        sale.Status,
		PaymentMethod: sale.PaymentMethod,
		MomoReference: sale.MomoReference.String,
		TotalAmount:   sale.TotalAmount,
		Paid:          sale.Paid(),
		CreatedAt:     sale.CreatedAt,
		Items:         items,
	}
}

func toItemData(items []models.SaleItem) []models.SaleItemData {
	data := make([]models.SaleItemData, 0, len(items))
	for _, item := range items {
		data = append(data, models.SaleItemData{
			ProductID: item.ProductID,
			Qty:       item.Qty,
			UnitPrice: item.UnitPriceAtTime,
		})
	}
	return data
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
