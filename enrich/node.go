package enrich

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/meridian-hq/ABMX/cache"
	"github.com/meridian-hq/ABMX/config"
	"github.com/meridian-hq/ABMX/crm"
	"github.com/meridian-hq/ABMX/logger"
)

// requiredFields lists, per entity type, the provider fields the
// scoring prompt depends on. A webhook payload that already carries
// them skips the provider round-trip entirely.
var requiredFields = map[crm.EntityType][]string{
	crm.TypeCompany: {"name", "industry"},
	crm.TypeContact: {"firstname", "lastname"},
	crm.TypeDeal:    {"dealname", "amount"},
}

// Node is the pipeline source step: it shapes the trigger payload into
// an entity and completes missing fields from the provider, entity
// cache first. Provider failures degrade to the partial payload; the
// run continues with whatever the webhook carried.
type Node struct {
	provider Provider
	caches   *cache.Manager
	limiter  *rate.Limiter
	log      *zap.SugaredLogger
}

// NewNode builds the enrichment step. provider may be nil, which turns
// enrichment into pure payload shaping; caches may be nil, which
// disables the entity cache.
func NewNode(provider Provider, caches *cache.Manager, cfg config.ProviderConfig) *Node {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = rps
	}
	return &Node{
		provider: provider,
		caches:   caches,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		log:      logger.ComponentLogger("enrich"),
	}
}

func (n *Node) Name() string { return "enrich" }

func (n *Node) Description() string {
	return "Completes partial CRM records from the provider, entity cache first"
}

func (n *Node) Inputs() []string  { return []string{"id", "type"} }
func (n *Node) Outputs() []string { return []string{"entity"} }

// Run emits the completed entity on the entity port. It never fails on
// a provider error; degraded enrichment is logged and the partial
// record flows on.
func (n *Node) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	entity, err := crm.CoerceEntity(inputs)
	if err != nil {
		return nil, err
	}
	n.enrich(ctx, entity)
	return map[string]any{"entity": entity}, nil
}

// enrich fills the entity's missing required fields in place. Cached
// and fetched values only fill gaps; fields the webhook delivered are
// fresher and are never overwritten.
func (n *Node) enrich(ctx context.Context, entity *crm.Entity) {
	required := requiredFields[entity.Type]
	if len(required) == 0 || entity.ID == "" {
		return
	}

	key := cache.Key(entity.ID, string(entity.Type), cache.KindEntity)
	if n.caches != nil {
		if hit, ok := n.caches.Get(key, cache.KindEntity); ok {
			if fields, ok := hit.(map[string]any); ok {
				fillMissing(entity.Properties, fields)
				n.log.Debugw("entity cache hit",
					logger.FieldEntityID, entity.ID,
					logger.FieldEntityType, string(entity.Type))
				return
			}
		}
	}

	if !missingAny(entity.Properties, required) {
		return
	}
	if n.provider == nil {
		return
	}

	if err := n.limiter.Wait(ctx); err != nil {
		n.log.Warnw("enrichment skipped, rate limiter interrupted",
			logger.FieldEntityID, entity.ID,
			logger.FieldError, err)
		return
	}

	start := time.Now()
	fields, err := Fetch(ctx, n.provider, entity.Type, entity.ID)
	if err != nil {
		n.log.Warnw("provider fetch failed, continuing with partial record",
			logger.FieldEntityID, entity.ID,
			logger.FieldEntityType, string(entity.Type),
			logger.FieldDurationMS, time.Since(start).Milliseconds(),
			logger.FieldError, err)
		return
	}

	fillMissing(entity.Properties, fields)
	if n.caches != nil {
		n.caches.Set(key, fields, cache.KindEntity)
	}
	n.log.Debugw("entity enriched",
		logger.FieldEntityID, entity.ID,
		logger.FieldEntityType, string(entity.Type),
		logger.FieldCount, len(fields),
		logger.FieldDurationMS, time.Since(start).Milliseconds())
}

func missingAny(props map[string]any, keys []string) bool {
	for _, k := range keys {
		if _, ok := props[k]; !ok {
			return true
		}
	}
	return false
}

func fillMissing(dst, src map[string]any) {
	for k, v := range src {
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
}
