// Package scanner periodically marks issued transactions past their return
// date as overdue.
package scanner

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/assetly/assetly/internal/engine"
	"github.com/assetly/assetly/internal/model"
	"github.com/assetly/assetly/internal/store"
)

// DefaultInterval is how often the scan runs.
const DefaultInterval = 24 * time.Hour

// Scanner drives the Expire transition for eligible transactions. Each
// record is an independent transition: one failure is logged and the rest
// of the batch still runs.
type Scanner struct {
	DB       *sql.DB
	Engine   *engine.Engine
	Interval time.Duration
}

// Run scans immediately and then on every tick until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		expired, err := s.RunOnce(ctx)
		if err != nil {
			slog.Error("overdue scan failed", "error", err)
		} else {
			slog.Info("overdue scan complete", "expired", expired)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single scan pass and returns how many transactions
// were marked overdue.
func (s *Scanner) RunOnce(ctx context.Context) (int, error) {
	ids, err := store.ListOverdueCandidates(ctx, s.DB, time.Now())
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		if _, err := s.Engine.Expire(ctx, id); err != nil {
			// A conflict means another caller advanced the record between
			// selection and expiry; that is expected, not a fault.
			if model.KindOf(err) == model.KindConflict {
				continue
			}
			slog.Error("failed to expire transaction", "transaction", id, "error", err)
			continue
		}
		expired++
	}

	if err := store.SetLastOverdueScan(ctx, s.DB, time.Now()); err != nil {
		slog.Warn("failed to record scan time", "error", err)
	}

	return expired, nil
}
