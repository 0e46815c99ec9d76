// Package reaper runs the background sweep that deletes stale terminal
// jobs and orphaned meta records, per spec.md §4.8. It is grounded on
// the teacher's ticker-driven worker loop (a time.Ticker inside a
// select on ctx.Done()).
package reaper

import (
	"context"
	"strconv"
	"time"

	"github.com/foldcore/orchestrator/internal/keys"
	"github.com/foldcore/orchestrator/internal/model"
	"github.com/foldcore/orchestrator/internal/observability"
	"github.com/foldcore/orchestrator/internal/platform/kvstore"
	"github.com/foldcore/orchestrator/internal/platform/logger"
)

// scanPageSize is the SCAN cursor page size spec.md §4.8 names.
const scanPageSize = 100

// Config controls the reaper's sweep cadence and age thresholds.
type Config struct {
	Interval      time.Duration
	StaleTerminal time.Duration
	OrphanMeta    time.Duration
}

// Reaper is the background sweep component.
type Reaper struct {
	log     *logger.Logger
	kv      kvstore.Store
	sc      keys.Scheme
	cfg     Config
	metrics *observability.Metrics
}

// New builds a reaper. metrics may be nil, in which case sweep
// observations are silently skipped.
func New(log *logger.Logger, kv kvstore.Store, sc keys.Scheme, cfg Config, metrics *observability.Metrics) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.StaleTerminal <= 0 {
		cfg.StaleTerminal = 72 * time.Hour
	}
	if cfg.OrphanMeta <= 0 {
		cfg.OrphanMeta = 48 * time.Hour
	}
	return &Reaper{log: log.With("service", "Reaper"), kv: kv, sc: sc, cfg: cfg, metrics: metrics}
}

// Start runs the sweep on a ticker until ctx is done.
func (r *Reaper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				func() {
					defer func() {
						if rec := recover(); rec != nil {
							r.log.Error("reaper sweep panicked", "panic", rec)
						}
					}()
					r.Sweep(ctx)
				}()
			}
		}
	}()
}

// Sweep performs one full pass: stale terminal state+meta deletion,
// then orphan meta deletion.
func (r *Reaper) Sweep(ctx context.Context) {
	start := time.Now()
	now := model.NowMillis()
	staleCutoff := now - r.cfg.StaleTerminal.Milliseconds()
	orphanCutoff := now - r.cfg.OrphanMeta.Milliseconds()

	reapedState := r.sweepStaleTerminal(ctx, staleCutoff)
	reapedOrphans := r.sweepOrphanMeta(ctx, orphanCutoff)

	r.metrics.ObserveReaperSweep(reapedState, reapedOrphans, time.Since(start))
	if reapedState > 0 || reapedOrphans > 0 {
		r.log.Info("reaper sweep complete", "stale_terminal_reaped", reapedState, "orphan_meta_reaped", reapedOrphans)
	}
}

func (r *Reaper) sweepStaleTerminal(ctx context.Context, cutoffMillis int64) int {
	var reaped int
	var cursor uint64
	for {
		keysFound, next, err := r.kv.Scan(ctx, cursor, r.sc.StatePattern(), scanPageSize)
		if err != nil {
			r.log.Warn("reaper: scan state keys failed", "error", err)
			return reaped
		}
		for _, key := range keysFound {
			jobID := r.sc.JobIDFromStateKey(key)
			fields, err := r.kv.HGetAll(ctx, key)
			if err != nil || len(fields) == 0 {
				continue
			}
			status := model.Status(fields["status"])
			if !status.IsTerminal() {
				continue
			}
			updatedAt, _ := strconv.ParseInt(fields["updated_at"], 10, 64)
			if updatedAt > cutoffMillis {
				continue
			}
			if err := r.kv.Del(ctx, key, r.sc.Meta(jobID)); err != nil {
				r.log.Warn("reaper: failed to delete stale terminal job", "job_id", jobID, "error", err)
				continue
			}
			reaped++
		}
		if next == 0 {
			return reaped
		}
		cursor = next
	}
}

func (r *Reaper) sweepOrphanMeta(ctx context.Context, cutoffMillis int64) int {
	var reaped int
	var cursor uint64
	for {
		keysFound, next, err := r.kv.Scan(ctx, cursor, r.sc.MetaPattern(), scanPageSize)
		if err != nil {
			r.log.Warn("reaper: scan meta keys failed", "error", err)
			return reaped
		}
		for _, key := range keysFound {
			jobID := r.sc.JobIDFromMetaKey(key)
			exists, err := r.kv.Exists(ctx, r.sc.State(jobID))
			if err != nil {
				continue
			}
			if exists {
				continue
			}
			fields, err := r.kv.HGetAll(ctx, key)
			if err != nil || len(fields) == 0 {
				continue
			}
			createdAt, _ := strconv.ParseInt(fields["created_at"], 10, 64)
			if createdAt > cutoffMillis {
				continue
			}
			if err := r.kv.Del(ctx, key); err != nil {
				r.log.Warn("reaper: failed to delete orphan meta", "job_id", jobID, "error", err)
				continue
			}
			reaped++
		}
		if next == 0 {
			return reaped
		}
		cursor = next
	}
}
