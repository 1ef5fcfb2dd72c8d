// Package persist writes scored CRM records into the document store.
// The store keeps one JSON document per (collection, id) with last
// write wins; the node wraps it as a pipeline step whose output always
// carries a status instead of failing the run.
package persist

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/meridian-hq/ABMX/errors"
)

// Document is one stored record.
type Document struct {
	Collection string
	ID         string
	Body       map[string]any
	UpdatedAt  time.Time
}

// Store handles persistence of scored documents.
type Store struct {
	db *sql.DB
}

// NewStore creates a document store over an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Upsert writes a document, replacing any previous version of the same
// (collection, id).
func (s *Store) Upsert(collection, id string, body []byte, updatedAt time.Time) error {
	query := `
		INSERT INTO documents (collection, id, body, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			body = excluded.body,
			updated_at = excluded.updated_at
	`

	_, err := s.db.Exec(query, collection, id, string(body), updatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return errors.MarkPersistence(errors.Wrapf(err, "upsert %s/%s", collection, id))
	}
	return nil
}

// Get retrieves one document. Returns ErrNotFound when no document
// exists under the (collection, id).
func (s *Store) Get(collection, id string) (*Document, error) {
	query := `
		SELECT body, updated_at
		FROM documents
		WHERE collection = ? AND id = ?
	`

	var bodyText, updatedAt string
	err := s.db.QueryRow(query, collection, id).Scan(&bodyText, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("document %s/%s", collection, id)
		}
		return nil, errors.MarkPersistence(errors.Wrapf(err, "get %s/%s", collection, id))
	}

	return buildDocument(collection, id, bodyText, updatedAt)
}

// Recent lists the most recently written documents across all
// collections, newest first. The sweep uses this to pick records for
// re-scoring.
func (s *Store) Recent(limit int) ([]Document, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT collection, id, body, updated_at
		FROM documents
		ORDER BY updated_at DESC, collection, id
		LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, errors.MarkPersistence(errors.Wrap(err, "list recent documents"))
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var collection, id, bodyText, updatedAt string
		if err := rows.Scan(&collection, &id, &bodyText, &updatedAt); err != nil {
			return nil, errors.MarkPersistence(errors.Wrap(err, "scan document row"))
		}
		doc, err := buildDocument(collection, id, bodyText, updatedAt)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.MarkPersistence(errors.Wrap(err, "iterate documents"))
	}
	return docs, nil
}

// CountByCollection reports how many documents each collection holds.
func (s *Store) CountByCollection() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT collection, COUNT(*) FROM documents GROUP BY collection`)
	if err != nil {
		return nil, errors.MarkPersistence(errors.Wrap(err, "count documents"))
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var collection string
		var count int
		if err := rows.Scan(&collection, &count); err != nil {
			return nil, errors.MarkPersistence(errors.Wrap(err, "scan count row"))
		}
		counts[collection] = count
	}
	if err := rows.Err(); err != nil {
		return nil, errors.MarkPersistence(errors.Wrap(err, "iterate counts"))
	}
	return counts, nil
}

func buildDocument(collection, id, bodyText, updatedAt string) (*Document, error) {
	doc := &Document{Collection: collection, ID: id}

	if err := json.Unmarshal([]byte(bodyText), &doc.Body); err != nil {
		return nil, errors.Wrapf(err, "parse body of %s/%s", collection, id)
	}
	ts, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "parse updated_at of %s/%s", collection, id)
	}
	doc.UpdatedAt = ts
	return doc, nil
}
