/*
Package memory provides an in-memory implementation of the document store
for tests and development.

PURPOSE:
  Mirrors the SQLite backend's observable behavior - per-collection id
  sequences, createTime/updateTime stamping, unique index enforcement,
  id-ordered reads - without touching disk. A mutex stands in for the
  task queue: operations are still strictly serialized, one at a time.

  Documents are kept as JSON text and decoded on every read, so numbers
  come back as json.Number exactly like the SQLite store returns them.

SEE ALSO:
  - docstore/store.go: the contract this implements
  - store/sqlite: the production backend
*/
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/herbcabinet/inventory-engine/docstore"
)

// Store implements docstore.Store on process memory.
type Store struct {
	mu   sync.Mutex
	docs map[string]map[int64]string // collection -> id -> JSON body
	seq  map[string]int64            // collection -> next id

	// Clock stamps createTime/updateTime. Tests may replace it.
	Clock func() time.Time
}

var _ docstore.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		docs:  make(map[string]map[int64]string),
		seq:   make(map[string]int64),
		Clock: time.Now,
	}
}

// Create assigns the next id, stamps createTime, and stores the document.
func (s *Store) Create(_ context.Context, collection string, doc docstore.Document) (docstore.Document, error) {
	spec := docstore.Spec(collection)
	if spec == nil {
		return nil, fmt.Errorf("%w: %s", docstore.ErrUnknownCollection, collection)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := clone(doc)
	id := s.seq[collection]
	if id == 0 {
		id = 1
	}
	stored["id"] = id
	stored["createTime"] = s.Clock().UTC().Format(time.RFC3339Nano)

	if err := s.checkUnique(collection, spec, stored, id); err != nil {
		return nil, err
	}
	if err := s.put(collection, id, stored); err != nil {
		return nil, err
	}
	s.seq[collection] = id + 1
	return stored, nil
}

// Update replaces the document identified by doc["id"] and stamps updateTime.
func (s *Store) Update(_ context.Context, collection string, doc docstore.Document) (docstore.Document, error) {
	spec := docstore.Spec(collection)
	if spec == nil {
		return nil, fmt.Errorf("%w: %s", docstore.ErrUnknownCollection, collection)
	}
	id := docstore.ID(doc)
	if id == 0 {
		return nil, docstore.ErrMissingID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[collection][id]; !ok {
		return nil, docstore.ErrNotFound
	}

	stored := clone(doc)
	stored["updateTime"] = s.Clock().UTC().Format(time.RFC3339Nano)

	if err := s.checkUnique(collection, spec, stored, id); err != nil {
		return nil, err
	}
	if err := s.put(collection, id, stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// Delete removes a document by id, reporting whether it existed.
func (s *Store) Delete(_ context.Context, collection string, id int64) (bool, error) {
	if docstore.Spec(collection) == nil {
		return false, fmt.Errorf("%w: %s", docstore.ErrUnknownCollection, collection)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[collection][id]; !ok {
		return false, nil
	}
	delete(s.docs[collection], id)
	return true, nil
}

// GetByID returns a single document or ErrNotFound.
func (s *Store) GetByID(_ context.Context, collection string, id int64) (docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, ok := s.docs[collection][id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return decode(body)
}

// GetAll returns every document in id order.
func (s *Store) GetAll(_ context.Context, collection string) ([]docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allLocked(collection)
}

// GetByIndex returns the lowest-id document carrying value under an
// indexed field.
func (s *Store) GetByIndex(_ context.Context, collection, field string, value any) (docstore.Document, error) {
	spec := docstore.Spec(collection)
	if spec == nil {
		return nil, fmt.Errorf("%w: %s", docstore.ErrUnknownCollection, collection)
	}
	if !declared(spec, field) {
		return nil, fmt.Errorf("collection %s has no index on %q", collection, field)
	}
	canon, ok := canonical(value)
	if !ok {
		return nil, docstore.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.allLocked(collection)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if stored, ok := canonical(doc[field]); ok && stored == canon {
			return doc, nil
		}
	}
	return nil, docstore.ErrNotFound
}

// Scan returns all documents matching the predicate, in id order.
func (s *Store) Scan(_ context.Context, collection string, pred func(docstore.Document) bool) ([]docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.allLocked(collection)
	if err != nil {
		return nil, err
	}
	matches := make([]docstore.Document, 0, len(docs))
	for _, doc := range docs {
		if pred(doc) {
			matches = append(matches, doc)
		}
	}
	return matches, nil
}

// Clear removes every document; the id sequence keeps counting.
func (s *Store) Clear(_ context.Context, collection string) error {
	if docstore.Spec(collection) == nil {
		return fmt.Errorf("%w: %s", docstore.ErrUnknownCollection, collection)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, collection)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) put(collection string, id int64, doc docstore.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return &docstore.StorageError{Op: "put", Collection: collection, Err: err}
	}
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[int64]string)
	}
	s.docs[collection][id] = string(body)
	return nil
}

func (s *Store) allLocked(collection string) ([]docstore.Document, error) {
	ids := make([]int64, 0, len(s.docs[collection]))
	for id := range s.docs[collection] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	docs := make([]docstore.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := decode(s.docs[collection][id])
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// checkUnique rejects a document whose unique-indexed value is already
// carried by a different document. Null and absent values never collide.
func (s *Store) checkUnique(collection string, spec *docstore.CollectionSpec, doc docstore.Document, selfID int64) error {
	for _, idx := range spec.Indexes {
		if !idx.Unique {
			continue
		}
		canon, ok := canonical(doc[idx.Field])
		if !ok {
			continue
		}
		for id, body := range s.docs[collection] {
			if id == selfID {
				continue
			}
			other, err := decode(body)
			if err != nil {
				return err
			}
			if stored, ok := canonical(other[idx.Field]); ok && stored == canon {
				return &docstore.DuplicateIndexError{Collection: collection, Field: idx.Field, Value: canon}
			}
		}
	}
	return nil
}

func decode(body string) (docstore.Document, error) {
	var doc docstore.Document
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode stored document: %w", err)
	}
	return doc, nil
}

func clone(doc docstore.Document) docstore.Document {
	out := make(docstore.Document, len(doc)+2)
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// canonical renders an index value the way the SQLite backend keys it,
// so the two implementations agree on which values collide.
func canonical(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return fmt.Sprint(x), true
	}
}

func declared(spec *docstore.CollectionSpec, field string) bool {
	for _, idx := range spec.Indexes {
		if idx.Field == field {
			return true
		}
	}
	return false
}
