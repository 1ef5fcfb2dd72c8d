package crm

import (
	"strings"

	"github.com/meridian-hq/ABMX/errors"
)

// Event is one inbound webhook delivery: an optional dotted event type
// such as "company.created" and the record fields.
type Event struct {
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data"`
}

// ResolveType picks the raw discriminator for an event. The type field
// in the data wins, then the event type prefix before the first dot,
// then the whole event type. Empty means the event carried no
// discriminator at all.
func ResolveType(dataType, eventType string) string {
	if dataType != "" {
		return dataType
	}
	if eventType == "" {
		return ""
	}
	if i := strings.Index(eventType, "."); i >= 0 {
		return eventType[:i]
	}
	return eventType
}

// EntityFromEvent builds the entity an event carries. Events with no
// resolvable discriminator default to company. The resolved raw type
// is written back into the properties under "type" so every downstream
// consumer sees the same discriminator the parser used.
func EntityFromEvent(evt Event) *Entity {
	props := make(map[string]any, len(evt.Data)+1)
	for k, v := range evt.Data {
		props[k] = v
	}

	dataType, _ := evt.Data["type"].(string)
	raw := ResolveType(dataType, evt.EventType)
	if raw == "" {
		raw = string(TypeCompany)
	}
	props["type"] = raw

	return &Entity{
		ID:         StringProp(props, "id"),
		Type:       ParseEntityType(raw),
		RawType:    raw,
		Properties: props,
	}
}

// CoerceEntity accepts the two entity forms pipeline nodes exchange:
// the parsed record, or a raw property map that still needs parsing.
func CoerceEntity(v any) (*Entity, error) {
	switch e := v.(type) {
	case *Entity:
		if e == nil {
			return nil, errors.NewValidationError("entity input is nil")
		}
		return e, nil
	case map[string]any:
		return EntityFromEvent(Event{Data: e}), nil
	default:
		return nil, errors.NewValidationError("entity input is %T, want a CRM record", v)
	}
}
