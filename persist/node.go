package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/meridian-hq/ABMX/crm"
	"github.com/meridian-hq/ABMX/logger"
	"github.com/meridian-hq/ABMX/scoring"
)

// fallbackID keys documents for records that arrived without an id.
const fallbackID = "unknown-id"

// WriteResult is what the persistence step reports back into the
// pipeline. Failures are embedded here rather than raised, so a dead
// database degrades the run instead of aborting it.
type WriteResult struct {
	Status              string `json:"status"`
	EntityID            string `json:"entity_id,omitempty"`
	EntityType          string `json:"entity_type,omitempty"`
	Collection          string `json:"collection,omitempty"`
	PartiallySerialized bool   `json:"partially_serialized,omitempty"`
	Error               string `json:"error,omitempty"`
}

// Statuses a WriteResult can carry.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Node merges an entity with its scores and writes the composite
// document to the collection matching the entity type.
type Node struct {
	store   *Store
	log     *zap.SugaredLogger
	timeNow func() time.Time
}

// NewNode wraps a store for pipeline use.
func NewNode(store *Store) *Node {
	return &Node{
		store:   store,
		log:     logger.ComponentLogger("persist"),
		timeNow: time.Now,
	}
}

func (n *Node) Name() string { return "persist" }

func (n *Node) Description() string {
	return "Writes the scored record to its document collection"
}

func (n *Node) Inputs() []string  { return []string{"entity", "scores"} }
func (n *Node) Outputs() []string { return []string{"status"} }

// Run always succeeds from the pipeline's point of view; the status
// output tells the caller whether the write landed.
func (n *Node) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	return map[string]any{"status": n.persist(inputs["entity"], inputs["scores"])}, nil
}

func (n *Node) persist(entityIn, scoresIn any) *WriteResult {
	entity, err := crm.CoerceEntity(entityIn)
	if err != nil {
		n.log.Errorw("persist received no usable entity", logger.FieldError, err)
		return &WriteResult{Status: StatusError, Error: err.Error()}
	}

	id := entity.ID
	if id == "" {
		id = fallbackID
	}
	collection := entity.Type.Collection()

	doc, coerced := sanitizeMap(entity.Properties)
	doc["scores"] = n.scoresValue(scoresIn, entity.ID)
	updatedAt := n.timeNow().UTC()
	doc["updated_at"] = updatedAt.Format(time.RFC3339)

	result := &WriteResult{
		Status:              StatusSuccess,
		EntityID:            id,
		EntityType:          entity.RawType,
		Collection:          collection,
		PartiallySerialized: len(coerced) > 0,
	}
	if len(coerced) > 0 {
		n.log.Warnw("document partially serialized",
			logger.FieldEntityID, id,
			logger.FieldCollection, collection,
			"coerced_fields", coerced)
	}

	body, err := json.Marshal(doc)
	if err != nil {
		n.log.Errorw("document serialization failed",
			logger.FieldEntityID, id,
			logger.FieldCollection, collection,
			logger.FieldError, err)
		result.Status = StatusError
		result.Error = err.Error()
		return result
	}

	if err := n.store.Upsert(collection, id, body, updatedAt); err != nil {
		n.log.Errorw("document write failed",
			logger.FieldEntityID, id,
			logger.FieldCollection, collection,
			logger.FieldError, err)
		result.Status = StatusError
		result.Error = err.Error()
		return result
	}

	n.log.Infow("entity persisted",
		logger.FieldEntityID, id,
		logger.FieldEntityType, entity.RawType,
		logger.FieldCollection, collection)
	return result
}

// scoresValue tolerates the upstream scoring step having failed or
// emitted something unexpected: the document then carries an empty
// scores object rather than losing the record.
func (n *Node) scoresValue(v any, entityID string) any {
	switch scores := v.(type) {
	case *scoring.Result:
		if scores != nil {
			return scores
		}
	case map[string]any:
		sanitized, coerced := sanitizeMap(scores)
		if len(coerced) > 0 {
			n.log.Warnw("scores partially serialized",
				logger.FieldEntityID, entityID,
				"coerced_fields", coerced)
		}
		return sanitized
	case nil:
	default:
		n.log.Warnw("unexpected scores input, persisting empty scores",
			logger.FieldEntityID, entityID,
			"scores_type", fmt.Sprintf("%T", v))
	}
	return map[string]any{}
}

// sanitizeMap copies m with every value JSON-marshalable, replacing the
// ones that are not with their string form. The second return names the
// replaced keys.
func sanitizeMap(m map[string]any) (map[string]any, []string) {
	out := make(map[string]any, len(m))
	var coerced []string
	for k, v := range m {
		if ts, ok := v.(time.Time); ok {
			out[k] = ts.UTC().Format(time.RFC3339)
			continue
		}
		if _, err := json.Marshal(v); err != nil {
			out[k] = fmt.Sprintf("%v", v)
			coerced = append(coerced, k)
			continue
		}
		out[k] = v
	}
	sort.Strings(coerced)
	return out, coerced
}
