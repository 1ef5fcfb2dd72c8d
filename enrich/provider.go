// Package enrich completes partial CRM records before scoring. Webhook
// payloads often carry only an id and a couple of changed fields; the
// enrichment step fills in the per-type field set the scoring rules
// read, consulting the entity cache first and falling back to the
// partial payload when the upstream provider is unavailable.
package enrich

import (
	"context"
	"sync"

	"github.com/meridian-hq/ABMX/crm"
	"github.com/meridian-hq/ABMX/errors"
)

// Provider is the upstream CRM read contract. Implementations return
// the provider's current field map for one record, or an error when the
// record cannot be fetched; the caller decides how to degrade.
type Provider interface {
	FetchCompany(ctx context.Context, id string) (map[string]any, error)
	FetchContact(ctx context.Context, id string) (map[string]any, error)
	FetchDeal(ctx context.Context, id string) (map[string]any, error)
}

// Fetch dispatches on the entity type. Unknown types fetch nothing;
// there is no provider endpoint to ask.
func Fetch(ctx context.Context, p Provider, entityType crm.EntityType, id string) (map[string]any, error) {
	switch entityType {
	case crm.TypeCompany:
		return p.FetchCompany(ctx, id)
	case crm.TypeContact:
		return p.FetchContact(ctx, id)
	case crm.TypeDeal:
		return p.FetchDeal(ctx, id)
	default:
		return nil, errors.NewValidationError("no provider endpoint for entity type %q", entityType)
	}
}

// StaticProvider serves records from an in-memory table. It backs the
// offline score command and the tests; Seed installs records keyed by
// (type, id).
type StaticProvider struct {
	mu      sync.RWMutex
	records map[string]map[string]any
}

// NewStaticProvider creates an empty in-memory provider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{records: make(map[string]map[string]any)}
}

// Seed installs or replaces one record.
func (p *StaticProvider) Seed(entityType crm.EntityType, id string, fields map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	p.records[string(entityType)+"/"+id] = copied
}

func (p *StaticProvider) fetch(entityType crm.EntityType, id string) (map[string]any, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rec, ok := p.records[string(entityType)+"/"+id]
	if !ok {
		return nil, errors.NewNotFoundError("%s %s", entityType, id)
	}
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out, nil
}

func (p *StaticProvider) FetchCompany(ctx context.Context, id string) (map[string]any, error) {
	return p.fetch(crm.TypeCompany, id)
}

func (p *StaticProvider) FetchContact(ctx context.Context, id string) (map[string]any, error) {
	return p.fetch(crm.TypeContact, id)
}

func (p *StaticProvider) FetchDeal(ctx context.Context, id string) (map[string]any, error) {
	return p.fetch(crm.TypeDeal, id)
}
