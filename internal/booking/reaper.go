package booking

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/lock"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/queue"
)

// ReaperConfig bounds a sweep. Timeout is how long an order may stay
// PENDING before it counts as abandoned; BatchSize and MaxBatches cap
// memory and single-run duration under backlog.
type ReaperConfig struct {
	Interval   time.Duration
	Timeout    time.Duration
	BatchSize  int
	MaxBatches int
}

// DefaultReaperConfig reaps orders pending longer than 15 minutes,
// sweeping every minute in batches of 100.
func DefaultReaperConfig() ReaperConfig {
	return ReaperConfig{
		Interval:   time.Minute,
		Timeout:    15 * time.Minute,
		BatchSize:  100,
		MaxBatches: 10,
	}
}

// Reaper cancels abandoned pending orders in the background and frees
// their soft locks. Sweeps run concurrently with live reservation
// traffic, so every order is re-checked under its row lock before
// being touched; an order fulfilled between selection and locking is
// skipped.
type Reaper struct {
	store     Store
	locks     lock.Store
	publisher Publisher
	cfg       ReaperConfig
	log       *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewReaper wires a reaper; Start launches the sweep loop.
func NewReaper(store Store, locks lock.Store, publisher Publisher, cfg ReaperConfig, logger *log.Logger) *Reaper {
	if store == nil || locks == nil {
		panic("nil dependency passed to NewReaper")
	}
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxBatches <= 0 {
		cfg.MaxBatches = 10
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Reaper{store: store, locks: locks, publisher: publisher, cfg: cfg, log: logger}
}

// Start launches the background sweep loop. It returns an error when
// the reaper is already running.
func (r *Reaper) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reaper already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.mu.Unlock()

	r.wg.Add(1)
	go r.loop(ctx)
	return nil
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (r *Reaper) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Reaper) loop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			n, err := r.Sweep(ctx, time.Now().UTC())
			if err != nil {
				r.log.Printf("reaper: sweep failed: %v", err)
			} else if n > 0 {
				r.log.Printf("reaper: cancelled %d stale orders", n)
			}
		}
	}
}

// Sweep cancels pending orders created before now-Timeout. It works in
// bounded batches until none remain or the per-run cap is hit, and a
// failure on one order never aborts the rest of the batch. It returns
// the number of orders cancelled.
func (r *Reaper) Sweep(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-r.cfg.Timeout)
	reaped := 0
	for batch := 0; batch < r.cfg.MaxBatches; batch++ {
		var stale []*model.Order
		err := r.store.InTx(ctx, func(tx Tx) error {
			var err error
			stale, err = tx.StalePendingOrders(ctx, cutoff, r.cfg.BatchSize)
			return err
		})
		if err != nil {
			return reaped, fmt.Errorf("stale order scan: %w", err)
		}
		if len(stale) == 0 {
			return reaped, nil
		}
		progressed := false
		for _, o := range stale {
			cancelled, err := r.reapOne(ctx, o)
			if err != nil {
				r.log.Printf("reaper: order=%d skipped: %v", o.ID, err)
				continue
			}
			progressed = true
			if cancelled {
				reaped++
			}
		}
		if !progressed {
			// Every order in the batch failed; stop rather than spin
			// on the same rows until the cap.
			return reaped, nil
		}
		if len(stale) < r.cfg.BatchSize {
			return reaped, nil
		}
	}
	return reaped, nil
}

// reapOne releases the order's soft locks, then cancels it under its
// row lock. The recheck inside the transaction skips orders that left
// PENDING between selection and locking.
func (r *Reaper) reapOne(ctx context.Context, o *model.Order) (bool, error) {
	tickets, err := r.store.TicketsByOrder(ctx, o.ID)
	if err != nil {
		return false, fmt.Errorf("ticket load: %w", err)
	}
	for _, t := range tickets {
		if _, err := r.locks.Release(ctx, o.SessionID, t.SeatID, o.UserID); err != nil {
			// Best-effort: the TTL will clear what we could not.
			r.log.Printf("reaper: lock release session=%d seat=%d: %v", o.SessionID, t.SeatID, err)
		}
	}

	cancelled := false
	err = r.store.InTx(ctx, func(tx Tx) error {
		current, err := tx.GetOrderForUpdate(ctx, o.ID)
		if err != nil {
			return err
		}
		if current == nil || current.Status != model.OrderPending {
			return nil
		}
		if err := tx.UpdateOrderStatus(ctx, o.ID, model.OrderCancelled, nil); err != nil {
			return err
		}
		if err := tx.UpdateTicketStatus(ctx, o.ID, model.TicketReserved, model.TicketRefunded); err != nil {
			return err
		}
		cancelled = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if cancelled {
		ev := queue.OrderEvent{
			OrderID:    o.ID,
			UserID:     o.UserID,
			SessionID:  o.SessionID,
			Status:     string(model.OrderCancelled),
			TotalCents: o.TotalCents,
			OccurredAt: time.Now().UTC().Format(time.RFC3339),
		}
		if perr := r.publisher.Publish(ctx, ev); perr != nil {
			r.log.Printf("reaper: publish order=%d: %v", o.ID, perr)
		}
	}
	return cancelled, nil
}
