// Package abm wires the enrichment, prompt, scoring, and persistence
// steps into the account-based-marketing flow and exposes the one
// entry point both triggers share: the webhook handler calls Process
// directly, the scheduler's periodic sweep re-processes recently
// persisted records through the same pipeline.
package abm

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/meridian-hq/ABMX/cache"
	"github.com/meridian-hq/ABMX/config"
	"github.com/meridian-hq/ABMX/crm"
	"github.com/meridian-hq/ABMX/enrich"
	"github.com/meridian-hq/ABMX/flow"
	"github.com/meridian-hq/ABMX/logger"
	"github.com/meridian-hq/ABMX/persist"
	"github.com/meridian-hq/ABMX/scoring"
)

// PipelineName identifies the ABM CRM flow.
const PipelineName = "abm_crm_flow"

// Triggers a run can originate from.
const (
	TriggerWebhook = "webhook"
	TriggerSweep   = "sweep"
)

// ProcessResult is the aggregate outcome of one flow run.
type ProcessResult struct {
	Status      flow.Status          `json:"status"`
	RunID       string               `json:"run_id"`
	EntityID    string               `json:"entity_id"`
	EntityType  string               `json:"entity_type"`
	Scores      *scoring.Result      `json:"scores,omitempty"`
	Persistence *persist.WriteResult `json:"persistence,omitempty"`
	Prompt      string               `json:"prompt,omitempty"`
	NodeErrors  map[string]string    `json:"node_errors,omitempty"`
}

// RunEvent is the summary published to run observers after each flow
// run, webhook-triggered or sweep-triggered.
type RunEvent struct {
	RunID      string    `json:"run_id"`
	Trigger    string    `json:"trigger"`
	Status     string    `json:"status"`
	EntityID   string    `json:"entity_id"`
	EntityType string    `json:"entity_type"`
	TotalScore float64   `json:"total_score"`
	DurationMS int64     `json:"duration_ms"`
	FinishedAt time.Time `json:"finished_at"`
}

// RunBroadcaster receives run events; the HTTP server feeds them to
// its websocket clients.
type RunBroadcaster interface {
	BroadcastRun(RunEvent)
}

// Service owns the ABM pipeline and its collaborators.
type Service struct {
	cfg      config.SweepConfig
	pipeline *flow.Pipeline
	caches   *cache.Manager
	store    *persist.Store
	log      *zap.SugaredLogger

	mu          sync.Mutex
	lastRun     *RunEvent
	broadcaster RunBroadcaster
}

// NewService assembles the flow: the enrichment source feeds the
// prompt, scoring, and persistence steps, and scoring's result joins
// the entity at the persistence step.
func NewService(cfg *config.Config, caches *cache.Manager, agent *scoring.Agent, store *persist.Store, provider enrich.Provider) (*Service, error) {
	nodes := []flow.Node{
		enrich.NewNode(provider, caches, cfg.Provider),
		enrich.NewPromptNode(caches),
		scoring.NewNode(agent),
		persist.NewNode(store),
	}
	connections := []flow.Connection{
		{SourceNode: "enrich", SourceOutput: "entity", TargetNode: "prompt", TargetInput: "entity"},
		{SourceNode: "enrich", SourceOutput: "entity", TargetNode: "scoring", TargetInput: "entity"},
		{SourceNode: "enrich", SourceOutput: "entity", TargetNode: "persist", TargetInput: "entity"},
		{SourceNode: "scoring", SourceOutput: "scores", TargetNode: "persist", TargetInput: "scores"},
	}

	pipeline, err := flow.New(PipelineName, nodes, connections)
	if err != nil {
		return nil, err
	}

	return &Service{
		cfg:      cfg.Sweep,
		pipeline: pipeline,
		caches:   caches,
		store:    store,
		log:      logger.ComponentLogger("abm"),
	}, nil
}

// SetBroadcaster installs the run-event sink. Safe to call while runs
// are in flight.
func (s *Service) SetBroadcaster(b RunBroadcaster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcaster = b
}

// Pipeline exposes the flow topology for the status surface.
func (s *Service) Pipeline() *flow.Pipeline { return s.pipeline }

// LastRun reports the most recent run summary, nil before the first run.
func (s *Service) LastRun() *RunEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun == nil {
		return nil
	}
	evt := *s.lastRun
	return &evt
}

// Process runs the pipeline for one inbound webhook event.
func (s *Service) Process(ctx context.Context, evt crm.Event) *ProcessResult {
	return s.process(ctx, evt, TriggerWebhook)
}

func (s *Service) process(ctx context.Context, evt crm.Event, trigger string) *ProcessResult {
	entity := crm.EntityFromEvent(evt)

	payload := make(map[string]any, len(entity.Properties)+1)
	for k, v := range entity.Properties {
		payload[k] = v
	}
	payload["id"] = entity.ID

	runResult := s.pipeline.Process(ctx, payload)

	result := &ProcessResult{
		Status:     runResult.Status,
		RunID:      runResult.RunID,
		EntityID:   entity.ID,
		EntityType: entity.RawType,
	}
	if len(runResult.Errors) > 0 {
		result.NodeErrors = make(map[string]string, len(runResult.Errors))
		for node, err := range runResult.Errors {
			result.NodeErrors[node] = err.Error()
		}
	}

	if out, ok := runResult.Outputs["scoring"]; ok {
		if scores, ok := out["scores"].(*scoring.Result); ok {
			result.Scores = scores
		}
	}
	if out, ok := runResult.Outputs["persist"]; ok {
		if write, ok := out["status"].(*persist.WriteResult); ok {
			result.Persistence = write
			// A caught write failure surfaces as a degraded run, not
			// a clean success.
			if write.Status == persist.StatusError && result.Status == flow.StatusSuccess {
				result.Status = flow.StatusPartialSuccess
			}
		}
	}
	if out, ok := runResult.Outputs["prompt"]; ok {
		if prompt, ok := out["prompt"].(string); ok {
			result.Prompt = prompt
		}
	}

	s.recordRun(result, trigger, runResult.Duration)
	return result
}

func (s *Service) recordRun(result *ProcessResult, trigger string, duration time.Duration) {
	evt := RunEvent{
		RunID:      result.RunID,
		Trigger:    trigger,
		Status:     string(result.Status),
		EntityID:   result.EntityID,
		EntityType: result.EntityType,
		DurationMS: duration.Milliseconds(),
		FinishedAt: time.Now().UTC(),
	}
	if result.Scores != nil {
		evt.TotalScore = result.Scores.TotalScore
	}

	s.mu.Lock()
	s.lastRun = &evt
	b := s.broadcaster
	s.mu.Unlock()

	if b != nil {
		b.BroadcastRun(evt)
	}
}
