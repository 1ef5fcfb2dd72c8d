package abm

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meridian-hq/ABMX/cache"
	"github.com/meridian-hq/ABMX/crm"
	"github.com/meridian-hq/ABMX/db"
	"github.com/meridian-hq/ABMX/errors"
	"github.com/meridian-hq/ABMX/flow"
	"github.com/meridian-hq/ABMX/logger"
	"github.com/meridian-hq/ABMX/schedule"
)

// SweepTaskID is the scheduler id of the periodic re-scoring sweep.
const SweepTaskID = "abm_sweep"

// Sweep re-processes the most recently persisted records through the
// pipeline. The cached score of each record is dropped first; a sweep
// exists to refresh stale scores, so serving the cached one would make
// it a no-op. Individual record failures are logged and counted, and
// the sweep keeps going.
func (s *Service) Sweep(ctx context.Context) error {
	batch := s.cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}
	docs, err := s.store.Recent(batch)
	if err != nil {
		// The scheduler can fire a sweep while shutdown is closing the
		// database; that race is not a sweep failure.
		if db.IsDatabaseClosed(err) {
			s.log.Debugw("sweep skipped, database closed")
			return nil
		}
		return errors.Wrap(err, "list records for sweep")
	}
	if len(docs) == 0 {
		s.log.Debugw("sweep found no records")
		return nil
	}

	concurrency := s.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	start := time.Now()
	var g errgroup.Group
	g.SetLimit(concurrency)

	failed := make(chan string, len(docs))
	for _, doc := range docs {
		g.Go(func() error {
			evt := sweepEvent(doc.ID, doc.Body)
			// The score cache keys on the normalized type, not the raw
			// discriminator the document stores.
			entity := crm.EntityFromEvent(evt)
			s.caches.Delete(cache.Key(entity.ID, string(entity.Type), cache.KindScore), cache.KindScore)

			result := s.process(ctx, evt, TriggerSweep)
			if result.Status == flow.StatusError {
				failed <- doc.ID
			}
			return nil
		})
	}
	g.Wait()
	close(failed)

	var failures []string
	for id := range failed {
		failures = append(failures, id)
	}

	s.log.Infow("sweep finished",
		logger.FieldCount, len(docs),
		"failed", len(failures),
		logger.FieldDurationMS, time.Since(start).Milliseconds())

	if len(failures) > 0 {
		return errors.NewProcessingError("sweep failed for %d of %d records", len(failures), len(docs))
	}
	return nil
}

// sweepEvent rebuilds a trigger event from a stored document, dropping
// the fields the previous run appended.
func sweepEvent(id string, body map[string]any) crm.Event {
	data := make(map[string]any, len(body))
	for k, v := range body {
		if k == "scores" || k == "updated_at" {
			continue
		}
		data[k] = v
	}
	data["id"] = id
	return crm.Event{Data: data}
}

// RegisterSweep adds the sweep as a scheduler task at the configured
// interval. Returns false when the task already exists or the sweep is
// disabled.
func (s *Service) RegisterSweep(scheduler *schedule.Scheduler) bool {
	if !s.cfg.Enabled {
		s.log.Infow("sweep disabled, not registering")
		return false
	}
	interval := s.cfg.Interval()
	if interval <= 0 {
		interval = time.Hour
	}
	return scheduler.AddTask(SweepTaskID, s.Sweep, interval)
}
