// Package cache provides the bounded TTL caches shared by the scoring and
// enrichment paths. Three independent tiers (entity, score, prompt) keep
// their own size and expiry so a burst of entity lookups cannot evict
// day-long score results.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/meridian-hq/ABMX/config"
	"github.com/meridian-hq/ABMX/errors"
	"github.com/meridian-hq/ABMX/logger"
)

// Kind names one cache tier.
type Kind string

const (
	KindEntity Kind = "entity"
	KindScore  Kind = "score"
	KindPrompt Kind = "prompt"
)

// Kinds lists every tier.
func Kinds() []Kind {
	return []Kind{KindEntity, KindScore, KindPrompt}
}

// TierStats reports one tier's occupancy and configuration.
type TierStats struct {
	Size    int `json:"size"`
	MaxSize int `json:"maxsize"`
	TTL     int `json:"ttl"` // seconds
}

type tier struct {
	lru     *expirable.LRU[string, any]
	maxSize int
	ttl     time.Duration
}

func newTier(cfg config.CacheTierConfig) *tier {
	return &tier{
		lru:     expirable.NewLRU[string, any](cfg.MaxSize, nil, cfg.TTL()),
		maxSize: cfg.MaxSize,
		ttl:     cfg.TTL(),
	}
}

func (t *tier) stats() TierStats {
	return TierStats{
		Size:    t.lru.Len(),
		MaxSize: t.maxSize,
		TTL:     int(t.ttl / time.Second),
	}
}

// Manager owns the three cache tiers. All methods are safe for
// concurrent use.
type Manager struct {
	entity *tier
	score  *tier
	prompt *tier
}

// NewManager builds the tiers from configuration.
func NewManager(cfg config.CacheConfig) *Manager {
	m := &Manager{
		entity: newTier(cfg.Entity),
		score:  newTier(cfg.Score),
		prompt: newTier(cfg.Prompt),
	}
	logger.Debugw("cache tiers initialized",
		logger.FieldComponent, "cache",
		"entity_max", cfg.Entity.MaxSize,
		"score_max", cfg.Score.MaxSize,
		"prompt_max", cfg.Prompt.MaxSize,
	)
	return m
}

func (m *Manager) tier(kind Kind) (*tier, error) {
	switch kind {
	case KindEntity:
		return m.entity, nil
	case KindScore:
		return m.score, nil
	case KindPrompt:
		return m.prompt, nil
	default:
		return nil, errors.NewValidationError("unknown cache kind %q", kind)
	}
}

// Get returns the cached value for key in the given tier. Expired
// entries count as misses.
func (m *Manager) Get(key string, kind Kind) (any, bool) {
	t, err := m.tier(kind)
	if err != nil {
		return nil, false
	}
	return t.lru.Get(key)
}

// Set stores value under key in the given tier. Writes to an unknown
// tier are dropped with a warning rather than failing the caller.
func (m *Manager) Set(key string, value any, kind Kind) {
	t, err := m.tier(kind)
	if err != nil {
		logger.Warnw("dropping cache write for unknown kind",
			logger.FieldCacheKind, string(kind))
		return
	}
	t.lru.Add(key, value)
}

// Delete removes key from the given tier, reporting whether it was present.
func (m *Manager) Delete(key string, kind Kind) bool {
	t, err := m.tier(kind)
	if err != nil {
		return false
	}
	return t.lru.Remove(key)
}

// Clear empties the named tier, or every tier when kind is empty.
// Naming an unknown tier is a validation error.
func (m *Manager) Clear(kind Kind) error {
	if kind == "" {
		for _, t := range []*tier{m.entity, m.score, m.prompt} {
			t.lru.Purge()
		}
		logger.Infow("all cache tiers cleared", logger.FieldComponent, "cache")
		return nil
	}
	t, err := m.tier(kind)
	if err != nil {
		return err
	}
	t.lru.Purge()
	logger.Infow("cache tier cleared", logger.FieldCacheKind, string(kind))
	return nil
}

// Stats reports occupancy for every tier.
func (m *Manager) Stats() map[Kind]TierStats {
	return map[Kind]TierStats{
		KindEntity: m.entity.stats(),
		KindScore:  m.score.stats(),
		KindPrompt: m.prompt.stats(),
	}
}
