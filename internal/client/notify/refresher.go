package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Fetcher loads the authoritative notification snapshot from the server.
type Fetcher func(ctx context.Context) ([]Notification, error)

// Refresher folds periodic full refetches into a Store. The interval fires
// regardless of whether a previous call is still in flight; each response is
// a full replace, so the last one to apply wins.
type Refresher struct {
	store    *Store
	fetch    Fetcher
	interval time.Duration
	logger   zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRefresher(store *Store, fetch Fetcher, interval time.Duration, logger zerolog.Logger) *Refresher {
	return &Refresher{
		store:    store,
		fetch:    fetch,
		interval: interval,
		logger:   logger.With().Str("component", "notify-refresher").Logger(),
	}
}

// Start performs an immediate refresh and then begins the interval loop.
// Calling it while already running is a no-op. A stopped Refresher can be
// started again.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.RefreshOnce(ctx)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.wg.Add(1)
				go func() {
					defer r.wg.Done()
					r.RefreshOnce(ctx)
				}()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RefreshOnce performs one refetch. A failure is retained on the store and
// leaves the previous collection intact.
func (r *Refresher) RefreshOnce(ctx context.Context) {
	records, err := r.fetch(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("notification refetch failed")
		r.store.SetErr(err)
		return
	}
	r.store.ApplySnapshot(records)
}

// Stop cancels any in-flight refresh, halts the interval loop, and waits for
// the goroutines to finish. Safe to call repeatedly.
func (r *Refresher) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	r.wg.Wait()
}
