package worker

import (
	"context"
	"log"
	"time"

	"checkout-service/internal/broker"
	"checkout-service/internal/service"
)

// StockWorker consumes SalePaid events and settles stock for each sale.
type StockWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewStockWorker creates a new stock worker
func NewStockWorker(consumer *broker.Consumer, settlement *service.SettlementProcessor) *StockWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnSalePaid(settlement.HandleSalePaid)

	return &StockWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker
func (w *StockWorker) Start(ctx context.Context) error {
	log.Println("Starting stock worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *StockWorker) Stop() error {
	log.Println("Stopping stock worker...")
	return w.consumer.Close()
}

// Sweeper periodically cancels scan-checkout sales that stayed PENDING
// past their TTL, releasing their public codes for reuse.
type Sweeper struct {
	settlement *service.SettlementProcessor
	ttl        time.Duration
	interval   time.Duration
}

// NewSweeper creates a new pending-sale sweeper
func NewSweeper(settlement *service.SettlementProcessor, ttl, interval time.Duration) *Sweeper {
	return &Sweeper{
		settlement: settlement,
		ttl:        ttl,
		interval:   interval,
	}
}

// Start runs the sweep loop until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	log.Printf("Starting pending-sale sweeper: ttl=%s, interval=%s", s.ttl, s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Sweeper context cancelled, stopping...")
			return ctx.Err()
		case <-ticker.C:
			n, err := s.settlement.ExpireStaleSales(ctx, s.ttl)
			if err != nil {
				log.Printf("Sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("Sweep cancelled %d stale pending sales", n)
			}
		}
	}
}
