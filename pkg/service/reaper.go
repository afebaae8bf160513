// Background retention sweep for expired conversations
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/alex-paystack/command-centre-api-sub000/pkg/db"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/utils"
)

const defaultReapInterval = time.Hour

// Reaper periodically deletes conversations whose retention window has
// lapsed, together with their messages. A failed sweep is logged and retried
// on the next tick.
type Reaper struct {
	store    *db.Store
	interval time.Duration
	logger   *slog.Logger
}

// NewReaper creates a reaper. A non-positive interval falls back to hourly.
func NewReaper(store *db.Store, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = defaultReapInterval
	}
	return &Reaper{
		store:    store,
		interval: interval,
		logger:   utils.GetLogger(),
	}
}

// Start runs the sweep loop until the context is cancelled. It sweeps once
// immediately so restarts do not postpone overdue deletions.
func (r *Reaper) Start(ctx context.Context) {
	go func() {
		r.sweep()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sweep()
			}
		}
	}()
}

func (r *Reaper) sweep() {
	removed, err := r.store.DeleteExpired(time.Now())
	if err != nil {
		r.logger.Error("Retention sweep failed", "error", err)
		return
	}
	if removed > 0 {
		r.logger.Info("Expired conversations removed", "count", removed)
	}
}
