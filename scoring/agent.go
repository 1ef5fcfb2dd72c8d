package scoring

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/meridian-hq/ABMX/cache"
	"github.com/meridian-hq/ABMX/crm"
	"github.com/meridian-hq/ABMX/errors"
	"github.com/meridian-hq/ABMX/logger"
)

// Components records which signals fired and what each contributed.
type Components struct {
	Signals []string           `json:"signals"`
	Weights map[string]float64 `json:"weights"`
}

// Result is the score produced for one entity. TotalScore stays within
// [0, 1]; summing fired contributions onto the base is the one place
// the value is capped.
type Result struct {
	CRMScore      float64    `json:"crm_score"`
	IndustryScore float64    `json:"industry_score"`
	TotalScore    float64    `json:"total_score"`
	Components    Components `json:"components"`
	EntityID      string     `json:"entity_id"`
	EntityType    string     `json:"entity_type"`
}

// Agent scores entities against the active rule set. Safe for
// concurrent use: weight updates and rules reloads swap the rule set
// atomically, and in-flight scores finish on the set they started with.
type Agent struct {
	rules    atomic.Pointer[RuleSet]
	pristine atomic.Pointer[RuleSet]
	caches   *cache.Manager
	log      *zap.SugaredLogger
}

// NewAgent builds an agent over a compiled rule set. caches may be nil,
// which disables score caching.
func NewAgent(rules *RuleSet, caches *cache.Manager) *Agent {
	a := &Agent{
		caches: caches,
		log:    logger.ComponentLogger("scoring"),
	}
	a.rules.Store(rules)
	a.pristine.Store(rules)
	return a
}

// Score produces the score for an entity, consulting the score cache
// first. A cached result is returned unchanged, so repeated scoring of
// the same id and type within the TTL is stable.
func (a *Agent) Score(ctx context.Context, entity *crm.Entity) (*Result, error) {
	if entity == nil {
		return nil, errors.NewValidationError("score requires an entity")
	}

	key := cache.Key(entity.ID, string(entity.Type), cache.KindScore)
	if a.caches != nil {
		if hit, ok := a.caches.Get(key, cache.KindScore); ok {
			if res, ok := hit.(*Result); ok {
				a.log.Debugw("score cache hit",
					logger.FieldEntityID, entity.ID,
					logger.FieldEntityType, string(entity.Type))
				return res, nil
			}
		}
	}

	rs := a.rules.Load()
	table, known := rs.TableFor(entity.Type)
	if !known {
		a.log.Warnw("no rule table for entity type, scoring with company rules",
			logger.FieldEntityID, entity.ID,
			logger.FieldEntityType, entity.RawType)
	}

	res := &Result{
		EntityID:   entity.ID,
		EntityType: scoredType(entity.Type, known),
		Components: Components{Signals: []string{}, Weights: map[string]float64{}},
	}

	crmScore := rs.BaseScore
	industryScore := 0.0
	for i := range table {
		r := &table[i]
		fired, err := r.Fires(entity.Properties)
		if err != nil {
			a.log.Debugw("rule did not evaluate",
				"rule", r.Name,
				logger.FieldEntityID, entity.ID,
				logger.FieldError, err)
			continue
		}
		if !fired {
			continue
		}
		res.Components.Signals = append(res.Components.Signals, r.Name)
		res.Components.Weights[r.Name] = r.Weight
		if r.Component == ComponentIndustry {
			industryScore += r.Weight
		} else {
			crmScore += r.Weight
		}
	}

	res.CRMScore = clamp01(crmScore)
	res.IndustryScore = clamp01(industryScore)
	res.TotalScore = clamp01(crmScore + industryScore)

	if a.caches != nil {
		a.caches.Set(key, res, cache.KindScore)
	}
	a.log.Debugw("entity scored",
		logger.FieldEntityID, entity.ID,
		logger.FieldEntityType, res.EntityType,
		logger.FieldScore, res.TotalScore,
		logger.FieldSignals, res.Components.Signals)
	return res, nil
}

// Weights reports the active per-rule weights flattened by name.
func (a *Agent) Weights() map[string]float64 {
	return a.rules.Load().Weights()
}

// SetWeights updates the weights of named rules across every table and
// returns the full active weight map. Values outside [0, 1] are
// rejected before anything is applied; names matching no rule are
// skipped with a warning. Contributions stay additive, so weights are
// not renormalized. Cached scores are dropped so the new weights take
// effect immediately.
func (a *Agent) SetWeights(updates map[string]float64) (map[string]float64, error) {
	for name, w := range updates {
		if w < 0 || w > 1 {
			return nil, errors.NewValidationError("weight for %s must be between 0 and 1", name)
		}
	}

	next := a.rules.Load().clone()
	for name, w := range updates {
		if !next.setWeight(name, w) {
			a.log.Warnw("unknown weight factor", "name", name)
		}
	}
	a.rules.Store(next)
	a.dropCachedScores()
	return next.Weights(), nil
}

// ResetWeights restores the rule set the agent was built with and
// returns its weight map.
func (a *Agent) ResetWeights() map[string]float64 {
	rs := a.pristine.Load()
	a.rules.Store(rs)
	a.dropCachedScores()
	return rs.Weights()
}

// Reload swaps in a freshly compiled rule set, e.g. after the rules
// file changed on disk. The new set also becomes the reset target.
func (a *Agent) Reload(rs *RuleSet) {
	a.rules.Store(rs)
	a.pristine.Store(rs)
	a.dropCachedScores()
}

func (a *Agent) dropCachedScores() {
	if a.caches == nil {
		return
	}
	if err := a.caches.Clear(cache.KindScore); err != nil {
		a.log.Warnw("score cache clear failed", logger.FieldError, err)
	}
}

// scoredType reports the table identity a result was scored with.
// Types that fell back outside the documented deal case read as
// company.
func scoredType(t crm.EntityType, known bool) string {
	if !known {
		return string(crm.TypeCompany)
	}
	return string(t)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
