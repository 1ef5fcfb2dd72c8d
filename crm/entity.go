// Package crm models the records flowing through the pipeline: a
// discriminated entity wrapping the free-form webhook properties, typed
// projections for the known record kinds, and the inbound event
// envelope. Records with an unrecognized discriminator stay in the
// union as unknown instead of being silently retyped.
package crm

import (
	"strconv"
)

// EntityType discriminates the record kinds.
type EntityType string

const (
	TypeCompany EntityType = "company"
	TypeContact EntityType = "contact"
	TypeDeal    EntityType = "deal"
	TypeUnknown EntityType = "unknown"
)

// ParseEntityType maps a raw discriminator string onto the union.
// Anything outside the three known kinds is unknown; the raw string is
// preserved on the entity, not here.
func ParseEntityType(raw string) EntityType {
	switch raw {
	case "company":
		return TypeCompany
	case "contact":
		return TypeContact
	case "deal":
		return TypeDeal
	default:
		return TypeUnknown
	}
}

// Collection maps an entity type to its document collection. Unknown
// kinds land in the generic entities collection.
func (t EntityType) Collection() string {
	switch t {
	case TypeCompany:
		return "companies"
	case TypeContact:
		return "contacts"
	case TypeDeal:
		return "deals"
	default:
		return "entities"
	}
}

// Entity is one CRM record in flight. Properties keeps every field
// that arrived on the wire, unrecognized keys included; the typed
// projections below read the known schema out of it. RawType is the
// discriminator as received and differs from Type only for unknown
// records.
type Entity struct {
	ID         string
	Type       EntityType
	RawType    string
	Properties map[string]any
}

// Company is the typed projection of a company record.
type Company struct {
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	Industry      string `json:"industry,omitempty"`
	EmployeeCount int    `json:"employee_count,omitempty"`
	Website       string `json:"website,omitempty"`
	ResearchNotes string `json:"research_notes,omitempty"`
}

// Contact is the typed projection of a contact record.
type Contact struct {
	ID                string `json:"id"`
	FirstName         string `json:"firstname,omitempty"`
	LastName          string `json:"lastname,omitempty"`
	Email             string `json:"email,omitempty"`
	CompanyID         string `json:"company_id,omitempty"`
	Title             string `json:"title,omitempty"`
	MeetingEngagement bool   `json:"meeting_engagement,omitempty"`
}

// Deal is the typed projection of a deal record.
type Deal struct {
	ID        string  `json:"id"`
	DealName  string  `json:"dealname,omitempty"`
	Amount    float64 `json:"amount,omitempty"`
	CompanyID string  `json:"company_id,omitempty"`
	ContactID string  `json:"contact_id,omitempty"`
	Stage     string  `json:"stage,omitempty"`
}

// Company projects the typed company view; false when the entity is
// not a company.
func (e *Entity) Company() (Company, bool) {
	if e.Type != TypeCompany {
		return Company{}, false
	}
	return Company{
		ID:            e.ID,
		Name:          StringProp(e.Properties, "name"),
		Industry:      StringProp(e.Properties, "industry"),
		EmployeeCount: IntProp(e.Properties, "employee_count"),
		Website:       StringProp(e.Properties, "website"),
		ResearchNotes: StringProp(e.Properties, "research_notes"),
	}, true
}

// Contact projects the typed contact view; false when the entity is
// not a contact.
func (e *Entity) Contact() (Contact, bool) {
	if e.Type != TypeContact {
		return Contact{}, false
	}
	return Contact{
		ID:                e.ID,
		FirstName:         StringProp(e.Properties, "firstname"),
		LastName:          StringProp(e.Properties, "lastname"),
		Email:             StringProp(e.Properties, "email"),
		CompanyID:         StringProp(e.Properties, "company_id"),
		Title:             StringProp(e.Properties, "title"),
		MeetingEngagement: BoolProp(e.Properties, "meeting_engagement"),
	}, true
}

// Deal projects the typed deal view; false when the entity is not a
// deal.
func (e *Entity) Deal() (Deal, bool) {
	if e.Type != TypeDeal {
		return Deal{}, false
	}
	return Deal{
		ID:        e.ID,
		DealName:  StringProp(e.Properties, "dealname"),
		Amount:    FloatProp(e.Properties, "amount"),
		CompanyID: StringProp(e.Properties, "company_id"),
		ContactID: StringProp(e.Properties, "contact_id"),
		Stage:     StringProp(e.Properties, "stage"),
	}, true
}

// StringProp reads a string field from a property bag, stringifying
// JSON numbers since upstream CRMs send numeric ids.
func StringProp(props map[string]any, key string) string {
	switch v := props[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}

// IntProp reads an integer field, accepting the float64 that
// encoding/json produces.
func IntProp(props map[string]any, key string) int {
	switch v := props[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

// FloatProp reads a numeric field.
func FloatProp(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

// BoolProp reads a boolean field, accepting the common string forms.
func BoolProp(props map[string]any, key string) bool {
	switch v := props[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "yes" || v == "1"
	default:
		return false
	}
}
