package session

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically deletes token records that can no longer influence any
// validity decision (past absolute expiry, or revoked).
type Sweeper struct {
	svc      *Service
	interval time.Duration
	log      *slog.Logger

	// OnSwept, if set, is called after each successful pass with the number of
	// rows removed. Used to feed the cleanup metrics counter.
	OnSwept func(n int64)
}

// NewSweeper builds a Sweeper running every interval.
func NewSweeper(svc *Service, interval time.Duration, log *slog.Logger) *Sweeper {
	return &Sweeper{svc: svc, interval: interval, log: log}
}

// Run blocks until ctx is canceled, sweeping once per interval. A failed pass
// is logged and does not stop the loop; expired rows are retried next tick.
func (w *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()

	w.log.Info("auth.cleanup.start", "interval", w.interval.String())

	for {
		select {
		case <-ctx.Done():
			w.log.Info("auth.cleanup.stop")
			return
		case <-t.C:
			n, err := w.svc.CleanupExpired(ctx, time.Now().UTC())
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				w.log.Error("auth.cleanup.fail", "err", err)
				continue
			}
			if n > 0 {
				w.log.Info("auth.cleanup.swept", "rows", n)
			}
			if w.OnSwept != nil {
				w.OnSwept(n)
			}
		}
	}
}
