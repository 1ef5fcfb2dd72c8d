package enrich

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/meridian-hq/ABMX/cache"
	"github.com/meridian-hq/ABMX/crm"
	"github.com/meridian-hq/ABMX/logger"
)

// PromptNode renders the scoring context string for an entity. The
// rendered text is cached in the prompt tier so a re-scored entity
// does not pay the rendering cost again within the TTL.
type PromptNode struct {
	caches *cache.Manager
	log    *zap.SugaredLogger
}

// NewPromptNode builds the prompt step; caches may be nil.
func NewPromptNode(caches *cache.Manager) *PromptNode {
	return &PromptNode{
		caches: caches,
		log:    logger.ComponentLogger("prompt"),
	}
}

func (n *PromptNode) Name() string { return "prompt" }

func (n *PromptNode) Description() string {
	return "Renders the scoring context string for a CRM record"
}

func (n *PromptNode) Inputs() []string  { return []string{"entity"} }
func (n *PromptNode) Outputs() []string { return []string{"prompt"} }

func (n *PromptNode) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	entity, err := crm.CoerceEntity(inputs["entity"])
	if err != nil {
		return nil, err
	}

	key := cache.Key(entity.ID, string(entity.Type), cache.KindPrompt)
	if n.caches != nil && entity.ID != "" {
		if hit, ok := n.caches.Get(key, cache.KindPrompt); ok {
			if prompt, ok := hit.(string); ok {
				n.log.Debugw("prompt cache hit",
					logger.FieldEntityID, entity.ID,
					logger.FieldEntityType, string(entity.Type))
				return map[string]any{"prompt": prompt}, nil
			}
		}
	}

	prompt := Render(entity)
	if n.caches != nil && entity.ID != "" {
		n.caches.Set(key, prompt, cache.KindPrompt)
	}
	return map[string]any{"prompt": prompt}, nil
}

// Render produces the context line the scoring surface shows for one
// record: the known schema fields for the type, then the id.
func Render(entity *crm.Entity) string {
	var b strings.Builder

	switch entity.Type {
	case crm.TypeCompany:
		company, _ := entity.Company()
		b.WriteString("Assess ABM relevance for company")
		writeField(&b, "name", company.Name)
		writeField(&b, "industry", company.Industry)
		if company.EmployeeCount > 0 {
			writeField(&b, "employees", fmt.Sprintf("%d", company.EmployeeCount))
		}
	case crm.TypeContact:
		contact, _ := entity.Contact()
		b.WriteString("Assess ABM relevance for contact")
		writeField(&b, "name", strings.TrimSpace(contact.FirstName+" "+contact.LastName))
		writeField(&b, "title", contact.Title)
	case crm.TypeDeal:
		deal, _ := entity.Deal()
		b.WriteString("Assess ABM relevance for deal")
		writeField(&b, "deal", deal.DealName)
		if deal.Amount > 0 {
			writeField(&b, "amount", fmt.Sprintf("%.2f", deal.Amount))
		}
	default:
		b.WriteString("Assess ABM relevance for record")
		writeField(&b, "type", entity.RawType)
	}

	writeField(&b, "id", entity.ID)
	return b.String()
}

func writeField(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	b.WriteString(" ")
	b.WriteString(name)
	b.WriteString("=")
	b.WriteString(value)
}
