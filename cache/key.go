package cache

import (
	"fmt"
	"hash/fnv"
)

// Key derives the cache key for an entity in a given tier. The key is a
// deterministic hash of the identifying triple only. Timestamps or other
// per-request state must never feed the key, otherwise every lookup
// becomes a miss and the cache silently degrades to a pass-through.
func Key(entityID, entityType string, kind Kind) string {
	h := fnv.New64a()
	h.Write([]byte(entityID))
	h.Write([]byte{0})
	h.Write([]byte(entityType))
	h.Write([]byte{0})
	h.Write([]byte(kind))
	return fmt.Sprintf("%016x", h.Sum64())
}
