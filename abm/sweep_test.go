package abm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-hq/ABMX/config"
	"github.com/meridian-hq/ABMX/crm"
	"github.com/meridian-hq/ABMX/logger"
	"github.com/meridian-hq/ABMX/schedule"
)

func TestSweepReprocessesPersistedRecords(t *testing.T) {
	h := newTestService(t)

	for _, id := range []string{"c-1", "c-2"} {
		h.service.Process(context.Background(), crm.Event{
			EventType: "company.created",
			Data:      map[string]any{"id": id, "hiring": true},
		})
	}

	require.NoError(t, h.service.Sweep(context.Background()))

	last := h.service.LastRun()
	require.NotNil(t, last)
	assert.Equal(t, TriggerSweep, last.Trigger)
}

func TestSweepRecomputesInsteadOfServingCache(t *testing.T) {
	h := newTestService(t)

	first := h.service.Process(context.Background(), crm.Event{
		EventType: "company.created",
		Data:      map[string]any{"id": "c-1", "hiring": true},
	})
	require.NotNil(t, first.Scores)

	require.NoError(t, h.service.Sweep(context.Background()))

	// The sweep drops the cached score before re-processing, so the
	// next webhook run sees the sweep's freshly computed result.
	second := h.service.Process(context.Background(), crm.Event{
		EventType: "company.created",
		Data:      map[string]any{"id": "c-1", "hiring": true},
	})
	require.NotNil(t, second.Scores)
	assert.NotSame(t, first.Scores, second.Scores)
	assert.Equal(t, first.Scores.TotalScore, second.Scores.TotalScore)
}

func TestSweepRecomputesUnknownTypeRecords(t *testing.T) {
	h := newTestService(t)

	// Unknown kinds score under the normalized type, so the cached
	// score lives under "unknown", not the raw "merger" discriminator
	// the document stores.
	first := h.service.Process(context.Background(), crm.Event{
		EventType: "merger.created",
		Data:      map[string]any{"id": "m-1"},
	})
	require.NotNil(t, first.Scores)

	require.NoError(t, h.service.Sweep(context.Background()))

	second := h.service.Process(context.Background(), crm.Event{
		EventType: "merger.created",
		Data:      map[string]any{"id": "m-1"},
	})
	require.NotNil(t, second.Scores)
	assert.NotSame(t, first.Scores, second.Scores)
	assert.Equal(t, first.Scores.TotalScore, second.Scores.TotalScore)
}

func TestSweepEmptyStoreIsNoop(t *testing.T) {
	h := newTestService(t)
	require.NoError(t, h.service.Sweep(context.Background()))
	assert.Nil(t, h.service.LastRun())
}

func TestSweepSkipsWhenDatabaseClosed(t *testing.T) {
	h := newTestService(t)
	require.NoError(t, h.db.Close())

	// A sweep firing during shutdown finds the database closed; that
	// race is a skip, not a failure.
	require.NoError(t, h.service.Sweep(context.Background()))
	assert.Nil(t, h.service.LastRun())
}

func TestSweepEventStripsAppendedFields(t *testing.T) {
	evt := sweepEvent("c-1", map[string]any{
		"type":       "company",
		"name":       "Acme Corp",
		"scores":     map[string]any{"total_score": 0.7},
		"updated_at": "2026-08-25T10:00:00Z",
	})

	assert.Equal(t, "c-1", evt.Data["id"])
	assert.Equal(t, "company", evt.Data["type"])
	assert.NotContains(t, evt.Data, "scores")
	assert.NotContains(t, evt.Data, "updated_at")
}

func TestRegisterSweep(t *testing.T) {
	h := newTestService(t)
	scheduler := schedule.New(config.SchedulerConfig{
		TickSeconds:        1,
		Workers:            2,
		StopTimeoutSeconds: 1,
	}, logger.ComponentLogger("test"))

	assert.True(t, h.service.RegisterSweep(scheduler))
	// Second registration under the same id is refused.
	assert.False(t, h.service.RegisterSweep(scheduler))

	status, ok := scheduler.TaskStatus(SweepTaskID)
	require.True(t, ok)
	assert.Equal(t, int(time.Hour/time.Second), status.IntervalSeconds)
}

func TestRegisterSweepDisabled(t *testing.T) {
	h := newTestService(t)
	h.service.cfg.Enabled = false

	scheduler := schedule.New(config.SchedulerConfig{TickSeconds: 1}, nil)
	assert.False(t, h.service.RegisterSweep(scheduler))
}
