package service

import (
	"context"
	"fmt"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// SettlementStore is the persistence surface for post-payment work.
type SettlementStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
	DecrementStock(ctx context.Context, productID int64, qty int) error
	ExpirePendingSales(ctx context.Context, before time.Time) ([]models.Sale, error)
}

// SettlementProcessor applies the side effects of a paid sale (stock
// deduction) and reclaims codes from abandoned pending sales. It runs off
// the request path, driven by the worker package.
type SettlementProcessor struct {
	store  SettlementStore
	cache  StatusCache
	events EventPublisher
	logger *zap.Logger
}

// NewSettlementProcessor creates a new settlement processor
func NewSettlementProcessor(store SettlementStore, cache StatusCache, events EventPublisher) *SettlementProcessor {
	return &SettlementProcessor{
		store:  store,
		cache:  cache,
		events: events,
		logger: util.GetLogger(),
	}
}

// HandleSalePaid deducts stock for every item of a paid sale. Consumption
// is idempotent: a redelivered event is skipped via the processed-events
// ledger.
func (sp *SettlementProcessor) HandleSalePaid(ctx context.Context, event *models.SalePaidEvent) error {
	ctx, span := util.StartSpan(ctx, "SettlementProcessor.HandleSalePaid")
	defer span.End()

	processed, err := sp.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		sp.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	for _, item := range event.Items {
		if err := sp.store.DecrementStock(ctx, item.ProductID, item.Qty); err != nil {
			return fmt.Errorf("failed to decrement stock for product %d: %w", item.ProductID, err)
		}
	}

	if err := sp.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		sp.logger.Error("Failed to mark event processed", zap.Error(err))
	}

	util.StockDeductionsTotal.Add(float64(len(event.Items)))
	sp.logger.Info("Stock settled for sale",
		zap.Int64("sale_id", event.SaleID),
		zap.Int("items", len(event.Items)))
	return nil
}

// ExpireStaleSales cancels scan-checkout sales that stayed PENDING longer
// than ttl, releasing their public codes back into the active pool.
func (sp *SettlementProcessor) ExpireStaleSales(ctx context.Context, ttl time.Duration) (int, error) {
	ctx, span := util.StartSpan(ctx, "SettlementProcessor.ExpireStaleSales")
	defer span.End()

	expired, err := sp.store.ExpirePendingSales(ctx, time.Now().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("failed to expire pending sales: %w", err)
	}

	for i := range expired {
		sale := &expired[i]

		if err := sp.cache.InvalidateSale(ctx, sale.PublicCode); err != nil {
			sp.logger.Warn("Status cache invalidation failed", zap.Error(err))
		}

		event := &models.SaleCancelledEvent{
			BaseEvent:  newBaseEvent(models.EventTypeSaleCancelled),
			SaleID:     sale.ID,
			PublicCode: sale.PublicCode,
			Reason:     "pending_ttl_expired",
		}
		if err := sp.events.PublishSaleCancelled(ctx, event); err != nil {
			sp.logger.Error("Failed to publish SaleCancelled event", zap.Error(err))
		}

		sp.logger.Info("Expired pending sale",
			zap.Int64("sale_id", sale.ID),
			zap.String("public_code", sale.PublicCode))
	}

	if len(expired) > 0 {
		util.PendingSalesExpiredTotal.Add(float64(len(expired)))
	}
	return len(expired), nil
}
