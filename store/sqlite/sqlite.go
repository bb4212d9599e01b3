/*
Package sqlite provides the SQLite-backed implementation of the document store.

PURPOSE:
  Implements docstore.Store and docstore.BackupStore on a single SQLite
  database. Documents are stored as JSON bodies keyed by (collection, id);
  secondary index values are extracted into a side table so lookups and
  uniqueness checks stay in SQL.

KEY TABLES:
  documents:     (collection, id, body) - one row per document
  sequences:     per-collection auto-increment counters
  index_entries: extracted index values; a partial unique index enforces
                 unique fields (name on sources/drugs, prescriptionId on
                 diagnosisLogs)

EXECUTION QUEUE:
  All operations are funneled through a single worker goroutine. Each task
  runs in its own SQL transaction and the queue advances only after that
  transaction commits or rolls back. This linearizes storage access
  process-wide; it deliberately does NOT make multi-call workflows atomic.
  A task is not cancellable once submitted. Close waits for already
  submitted tasks to finish, then stops the worker.

WAL MODE:
  The database is opened with WAL journaling for better crash recovery.

USAGE:
  store, err := sqlite.New("./data/cabinet.db")
  if err != nil { ... }
  defer store.Close()

  Use ":memory:" for tests.

SEE ALSO:
  - docstore/store.go: Interface definitions and collection schema
  - docstore/backup.go: Dump/restore document format
*/
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/herbcabinet/inventory-engine/docstore"
)

// Store implements docstore.BackupStore on SQLite.
type Store struct {
	db    *sql.DB
	tasks chan *task
	once  sync.Once

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup // submits that may still touch the queue

	// Clock stamps createTime/updateTime. Tests may replace it.
	Clock func() time.Time
}

var _ docstore.BackupStore = (*Store)(nil)

type task struct {
	run   func(tx *sql.Tx) (any, error)
	reply chan outcome
}

type outcome struct {
	val any
	err error
}

// New opens (or creates) the database at path and starts the task queue.
// Use ":memory:" for an in-memory database.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// The queue is the only writer; a second connection would just contend.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:    db,
		tasks: make(chan *task, 64),
		Clock: time.Now,
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	go s.serve()
	return s, nil
}

// Close waits for already submitted operations to finish, stops the
// worker, and closes the database. Operations submitted afterwards fail
// with ErrStoreClosed.
func (s *Store) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		// No new senders can enter the queue now; once the stragglers
		// have their replies the channel can be closed and the worker
		// exits its range loop.
		s.inflight.Wait()
		close(s.tasks)
	})
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Documents: one row per record, body is the JSON form
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id INTEGER NOT NULL,
		body TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	);

	-- Per-collection auto-increment counters. Counters survive Clear so
	-- ids are never reused within a database, matching IndexedDB keys.
	CREATE TABLE IF NOT EXISTS sequences (
		collection TEXT PRIMARY KEY,
		next_id INTEGER NOT NULL
	);

	-- Extracted secondary index values
	CREATE TABLE IF NOT EXISTS index_entries (
		collection TEXT NOT NULL,
		field TEXT NOT NULL,
		value TEXT NOT NULL,
		doc_id INTEGER NOT NULL,
		is_unique INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_entries_lookup
		ON index_entries(collection, field, value);
	CREATE INDEX IF NOT EXISTS idx_entries_doc
		ON index_entries(collection, doc_id);

	-- Uniqueness for fields declared unique (sources.name, drugs.name,
	-- diagnosisLogs.prescriptionId)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_unique
		ON index_entries(collection, field, value) WHERE is_unique = 1;
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TASK QUEUE - strictly serialized execution
// =============================================================================

func (s *Store) serve() {
	for t := range s.tasks {
		t.reply <- s.runTask(t)
	}
}

func (s *Store) runTask(t *task) outcome {
	// The transaction is not bound to the caller's context: once submitted,
	// an operation runs to completion.
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return outcome{err: fmt.Errorf("begin transaction: %w", err)}
	}

	val, err := t.run(tx)
	if err != nil {
		tx.Rollback()
		return outcome{err: err}
	}
	if err := tx.Commit(); err != nil {
		return outcome{err: fmt.Errorf("commit transaction: %w", err)}
	}
	return outcome{val: val}
}

// submit enqueues a task and waits for its result. The caller's context is
// honored only up to submission.
func (s *Store) submit(ctx context.Context, run func(tx *sql.Tx) (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, docstore.ErrStoreClosed
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	t := &task{run: run, reply: make(chan outcome, 1)}
	select {
	case s.tasks <- t:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	out := <-t.reply
	return out.val, out.err
}

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Create assigns the next id for the collection, stamps createTime, and
// persists the document together with its index entries.
func (s *Store) Create(ctx context.Context, collection string, doc docstore.Document) (docstore.Document, error) {
	spec := docstore.Spec(collection)
	if spec == nil {
		return nil, fmt.Errorf("%w: %s", docstore.ErrUnknownCollection, collection)
	}

	stored := cloneDocument(doc)
	val, err := s.submit(ctx, func(tx *sql.Tx) (any, error) {
		id, err := nextID(tx, collection)
		if err != nil {
			return nil, &docstore.StorageError{Op: "create", Collection: collection, Err: err}
		}
		stored["id"] = id
		stored["createTime"] = s.Clock().UTC().Format(time.RFC3339Nano)

		if err := insertDocument(tx, collection, id, stored, spec); err != nil {
			return nil, err
		}
		return stored, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(docstore.Document), nil
}

// Update replaces the document identified by doc["id"] and stamps updateTime.
func (s *Store) Update(ctx context.Context, collection string, doc docstore.Document) (docstore.Document, error) {
	spec := docstore.Spec(collection)
	if spec == nil {
		return nil, fmt.Errorf("%w: %s", docstore.ErrUnknownCollection, collection)
	}
	id := docstore.ID(doc)
	if id == 0 {
		return nil, docstore.ErrMissingID
	}

	stored := cloneDocument(doc)
	val, err := s.submit(ctx, func(tx *sql.Tx) (any, error) {
		var exists int
		err := tx.QueryRow(`SELECT COUNT(*) FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&exists)
		if err != nil {
			return nil, &docstore.StorageError{Op: "update", Collection: collection, Err: err}
		}
		if exists == 0 {
			return nil, docstore.ErrNotFound
		}

		stored["updateTime"] = s.Clock().UTC().Format(time.RFC3339Nano)

		if err := deleteIndexEntries(tx, collection, id); err != nil {
			return nil, err
		}
		body, err := json.Marshal(stored)
		if err != nil {
			return nil, &docstore.StorageError{Op: "update", Collection: collection, Err: err}
		}
		if _, err := tx.Exec(`UPDATE documents SET body = ? WHERE collection = ? AND id = ?`, string(body), collection, id); err != nil {
			return nil, &docstore.StorageError{Op: "update", Collection: collection, Err: err}
		}
		if err := insertIndexEntries(tx, collection, id, stored, spec); err != nil {
			return nil, err
		}
		return stored, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(docstore.Document), nil
}

// Delete removes a document and its index entries by id.
func (s *Store) Delete(ctx context.Context, collection string, id int64) (bool, error) {
	if docstore.Spec(collection) == nil {
		return false, fmt.Errorf("%w: %s", docstore.ErrUnknownCollection, collection)
	}

	val, err := s.submit(ctx, func(tx *sql.Tx) (any, error) {
		res, err := tx.Exec(`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
		if err != nil {
			return nil, &docstore.StorageError{Op: "delete", Collection: collection, Err: err}
		}
		if err := deleteIndexEntries(tx, collection, id); err != nil {
			return nil, err
		}
		n, _ := res.RowsAffected()
		return n > 0, nil
	})
	if err != nil {
		return false, err
	}
	return val.(bool), nil
}

// GetByID returns a single document or ErrNotFound.
func (s *Store) GetByID(ctx context.Context, collection string, id int64) (docstore.Document, error) {
	val, err := s.submit(ctx, func(tx *sql.Tx) (any, error) {
		var body string
		err := tx.QueryRow(`SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&body)
		if err == sql.ErrNoRows {
			return nil, docstore.ErrNotFound
		}
		if err != nil {
			return nil, &docstore.StorageError{Op: "get", Collection: collection, Err: err}
		}
		return decodeBody(body)
	})
	if err != nil {
		return nil, err
	}
	return val.(docstore.Document), nil
}

// GetAll returns every document in the collection in insertion order.
func (s *Store) GetAll(ctx context.Context, collection string) ([]docstore.Document, error) {
	val, err := s.submit(ctx, func(tx *sql.Tx) (any, error) {
		return loadAll(tx, collection)
	})
	if err != nil {
		return nil, err
	}
	return val.([]docstore.Document), nil
}

// GetByIndex returns the first document carrying value under an indexed field.
func (s *Store) GetByIndex(ctx context.Context, collection, field string, value any) (docstore.Document, error) {
	spec := docstore.Spec(collection)
	if spec == nil {
		return nil, fmt.Errorf("%w: %s", docstore.ErrUnknownCollection, collection)
	}
	if !indexDeclared(spec, field) {
		return nil, fmt.Errorf("collection %s has no index on %q", collection, field)
	}
	canon, ok := canonicalIndexValue(value)
	if !ok {
		return nil, docstore.ErrNotFound
	}

	val, err := s.submit(ctx, func(tx *sql.Tx) (any, error) {
		var body string
		err := tx.QueryRow(`
			SELECT d.body FROM index_entries e
			JOIN documents d ON d.collection = e.collection AND d.id = e.doc_id
			WHERE e.collection = ? AND e.field = ? AND e.value = ?
			ORDER BY e.doc_id ASC LIMIT 1`,
			collection, field, canon).Scan(&body)
		if err == sql.ErrNoRows {
			return nil, docstore.ErrNotFound
		}
		if err != nil {
			return nil, &docstore.StorageError{Op: "index lookup", Collection: collection, Err: err}
		}
		return decodeBody(body)
	})
	if err != nil {
		return nil, err
	}
	return val.(docstore.Document), nil
}

// Scan returns all documents matching the predicate, in insertion order.
func (s *Store) Scan(ctx context.Context, collection string, pred func(docstore.Document) bool) ([]docstore.Document, error) {
	val, err := s.submit(ctx, func(tx *sql.Tx) (any, error) {
		docs, err := loadAll(tx, collection)
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
	})
	if err != nil {
		return nil, err
	}
	return val.([]docstore.Document), nil
}

// Clear removes every document in the collection. The id counter is kept,
// so later creates continue the old sequence.
func (s *Store) Clear(ctx context.Context, collection string) error {
	if docstore.Spec(collection) == nil {
		return fmt.Errorf("%w: %s", docstore.ErrUnknownCollection, collection)
	}
	_, err := s.submit(ctx, func(tx *sql.Tx) (any, error) {
		return nil, clearCollection(tx, collection)
	})
	return err
}

// =============================================================================
// BACKUP / RESTORE / RESET
// =============================================================================

// DumpAll exports every collection as one backup document.
func (s *Store) DumpAll(ctx context.Context) (*docstore.Backup, error) {
	val, err := s.submit(ctx, func(tx *sql.Tx) (any, error) {
		dump := make(map[string][]docstore.Document, len(docstore.Collections))
		for _, name := range docstore.CollectionNames() {
			docs, err := loadAll(tx, name)
			if err != nil {
				return nil, err
			}
			dump[name] = docs
		}
		return dump, nil
	})
	if err != nil {
		return nil, err
	}
	return &docstore.Backup{
		ExportID:    uuid.NewString(),
		ExportedAt:  s.Clock().UTC(),
		Collections: val.(map[string][]docstore.Document),
	}, nil
}

// RestoreAll applies a backup record by record: delete any existing document
// with the incoming id, then insert the incoming document verbatim.
func (s *Store) RestoreAll(ctx context.Context, b *docstore.Backup) error {
	_, err := s.submit(ctx, func(tx *sql.Tx) (any, error) {
		for _, name := range docstore.CollectionNames() {
			spec := docstore.Spec(name)
			for _, doc := range b.Collections[name] {
				id := docstore.ID(doc)
				if id == 0 {
					return nil, fmt.Errorf("restore %s: %w", name, docstore.ErrMissingID)
				}
				if _, err := tx.Exec(`DELETE FROM documents WHERE collection = ? AND id = ?`, name, id); err != nil {
					return nil, &docstore.StorageError{Op: "restore", Collection: name, Err: err}
				}
				if err := deleteIndexEntries(tx, name, id); err != nil {
					return nil, err
				}
				if err := insertDocument(tx, name, id, doc, spec); err != nil {
					return nil, err
				}
				if err := bumpSequence(tx, name, id); err != nil {
					return nil, err
				}
			}
		}
		return nil, nil
	})
	return err
}

// Reset wipes all collections and restarts every id sequence.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.submit(ctx, func(tx *sql.Tx) (any, error) {
		for _, name := range docstore.CollectionNames() {
			if err := clearCollection(tx, name); err != nil {
				return nil, err
			}
		}
		if _, err := tx.Exec(`DELETE FROM sequences`); err != nil {
			return nil, &docstore.StorageError{Op: "reset", Collection: "*", Err: err}
		}
		return nil, nil
	})
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func nextID(tx *sql.Tx, collection string) (int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT next_id FROM sequences WHERE collection = ?`, collection).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		id = 1
		if _, err := tx.Exec(`INSERT INTO sequences (collection, next_id) VALUES (?, 2)`, collection); err != nil {
			return 0, err
		}
	case err != nil:
		return 0, err
	default:
		if _, err := tx.Exec(`UPDATE sequences SET next_id = next_id + 1 WHERE collection = ?`, collection); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func bumpSequence(tx *sql.Tx, collection string, id int64) error {
	_, err := tx.Exec(`
		INSERT INTO sequences (collection, next_id) VALUES (?, ?)
		ON CONFLICT(collection) DO UPDATE SET next_id = MAX(next_id, excluded.next_id)`,
		collection, id+1)
	if err != nil {
		return &docstore.StorageError{Op: "restore", Collection: collection, Err: err}
	}
	return nil
}

func insertDocument(tx *sql.Tx, collection string, id int64, doc docstore.Document, spec *docstore.CollectionSpec) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return &docstore.StorageError{Op: "create", Collection: collection, Err: err}
	}
	if _, err := tx.Exec(`INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)`, collection, id, string(body)); err != nil {
		return &docstore.StorageError{Op: "create", Collection: collection, Err: err}
	}
	return insertIndexEntries(tx, collection, id, doc, spec)
}

func insertIndexEntries(tx *sql.Tx, collection string, id int64, doc docstore.Document, spec *docstore.CollectionSpec) error {
	for _, idx := range spec.Indexes {
		canon, ok := canonicalIndexValue(doc[idx.Field])
		if !ok {
			// Absent and null values are not indexed, so a unique index
			// still admits any number of documents without the field.
			continue
		}
		unique := 0
		if idx.Unique {
			unique = 1
		}
		_, err := tx.Exec(
			`INSERT INTO index_entries (collection, field, value, doc_id, is_unique) VALUES (?, ?, ?, ?, ?)`,
			collection, idx.Field, canon, id, unique)
		if err != nil {
			if isUniqueViolation(err) {
				return &docstore.DuplicateIndexError{Collection: collection, Field: idx.Field, Value: canon}
			}
			return &docstore.StorageError{Op: "index", Collection: collection, Err: err}
		}
	}
	return nil
}

func deleteIndexEntries(tx *sql.Tx, collection string, id int64) error {
	if _, err := tx.Exec(`DELETE FROM index_entries WHERE collection = ? AND doc_id = ?`, collection, id); err != nil {
		return &docstore.StorageError{Op: "index", Collection: collection, Err: err}
	}
	return nil
}

func clearCollection(tx *sql.Tx, collection string) error {
	if _, err := tx.Exec(`DELETE FROM documents WHERE collection = ?`, collection); err != nil {
		return &docstore.StorageError{Op: "clear", Collection: collection, Err: err}
	}
	if _, err := tx.Exec(`DELETE FROM index_entries WHERE collection = ?`, collection); err != nil {
		return &docstore.StorageError{Op: "clear", Collection: collection, Err: err}
	}
	return nil
}

func loadAll(tx *sql.Tx, collection string) ([]docstore.Document, error) {
	rows, err := tx.Query(`SELECT body FROM documents WHERE collection = ? ORDER BY id ASC`, collection)
	if err != nil {
		return nil, &docstore.StorageError{Op: "get all", Collection: collection, Err: err}
	}
	defer rows.Close()

	docs := []docstore.Document{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, &docstore.StorageError{Op: "get all", Collection: collection, Err: err}
		}
		doc, err := decodeBody(body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, &docstore.StorageError{Op: "get all", Collection: collection, Err: err}
	}
	return docs, nil
}

func decodeBody(body string) (docstore.Document, error) {
	var doc docstore.Document
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode stored document: %w", err)
	}
	return doc, nil
}

func cloneDocument(doc docstore.Document) docstore.Document {
	out := make(docstore.Document, len(doc)+2)
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// canonicalIndexValue renders an index value as the string key stored in
// index_entries. Integer-valued numbers render without a fraction so the
// json.Number, float64 and int64 forms of the same id all collide.
func canonicalIndexValue(v any) (string, bool) {
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

func isUniqueViolation(err error) bool {
	if serr, ok := err.(sqlite3.Error); ok {
		return serr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func indexDeclared(spec *docstore.CollectionSpec, field string) bool {
	for _, idx := range spec.Indexes {
		if idx.Field == field {
			return true
		}
	}
	return false
}
