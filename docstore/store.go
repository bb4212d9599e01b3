/*
store.go - Persistence contract for the document store

PURPOSE:
  Defines the interface between the domain managers and the storage
  backend. The store is a generic collection-of-documents database with
  per-collection auto-incrementing integer ids, secondary indexes, and
  a strictly serialized execution discipline.

KEY INTERFACES:
  Store:       Generic CRUD + index lookup + predicate scan per collection
  BackupStore: Full-dump export and last-write-wins restore

EXECUTION DISCIPLINE:
  All operations, across all collections, execute one at a time in FIFO
  submission order. Each operation runs in its own storage transaction
  scoped to a single collection. The queue advances only
  after that transaction commits or fails. This prevents interleaved
  partial writes but does NOT provide cross-operation atomicity: a
  workflow issuing several store calls is a set of independently
  committed operations.

TIMESTAMP STAMPING:
  Every Create stamps "createTime" on the document; every Update stamps
  "updateTime". Documents keep these as RFC3339 strings.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite backend (use ":memory:" in tests)

SEE ALSO:
  - document.go: Document type and struct encoding helpers
  - errors.go: Sentinel and structured store errors
*/
package docstore

import "context"

// =============================================================================
// COLLECTIONS
// =============================================================================

// Collection names used by the inventory system.
const (
	CollectionSources       = "sources"
	CollectionDrugs         = "drugs"
	CollectionStockIns      = "stockIns"
	CollectionStockOuts     = "stockOuts"
	CollectionPrescriptions = "prescriptions"
	CollectionDiagnosisLogs = "diagnosisLogs"
)

// IndexSpec declares a secondary index on a document field.
// Unique indexes reject a second document carrying an already-indexed value.
type IndexSpec struct {
	Field  string
	Unique bool
}

// CollectionSpec declares a collection and its indexes.
type CollectionSpec struct {
	Name    string
	Indexes []IndexSpec
}

// Collections is the schema of the inventory database. Backends create
// every listed collection up front; writes to undeclared collections fail.
var Collections = []CollectionSpec{
	{Name: CollectionSources, Indexes: []IndexSpec{{Field: "name", Unique: true}}},
	{Name: CollectionDrugs, Indexes: []IndexSpec{{Field: "name", Unique: true}}},
	{Name: CollectionStockIns, Indexes: []IndexSpec{
		{Field: "drugId"}, {Field: "inTime"},
	}},
	{Name: CollectionStockOuts, Indexes: []IndexSpec{
		{Field: "drugId"}, {Field: "outType"}, {Field: "outTime"},
	}},
	{Name: CollectionPrescriptions, Indexes: []IndexSpec{{Field: "createTime"}}},
	{Name: CollectionDiagnosisLogs, Indexes: []IndexSpec{{Field: "prescriptionId", Unique: true}}},
}

// Spec returns the collection spec for name, or nil if undeclared.
func Spec(name string) *CollectionSpec {
	for i := range Collections {
		if Collections[i].Name == name {
			return &Collections[i]
		}
	}
	return nil
}

// =============================================================================
// STORE - Serialized document persistence
// =============================================================================

// Store is the persistence capability consumed by all domain managers.
// Implementations must linearize all operations process-wide.
type Store interface {
	// Create persists a new document, assigns the next integer id for the
	// collection, stamps createTime, and returns the stored document.
	Create(ctx context.Context, collection string, doc Document) (Document, error)

	// Update replaces the document identified by doc["id"], stamping
	// updateTime. Returns ErrNotFound if no such document exists.
	Update(ctx context.Context, collection string, doc Document) (Document, error)

	// Delete removes a document by id. Reports whether a document existed.
	Delete(ctx context.Context, collection string, id int64) (bool, error)

	// GetByID returns a single document or ErrNotFound.
	GetByID(ctx context.Context, collection string, id int64) (Document, error)

	// GetAll returns every document in the collection in insertion order.
	GetAll(ctx context.Context, collection string) ([]Document, error)

	// GetByIndex returns the first document whose indexed field carries
	// the given value, or ErrNotFound.
	GetByIndex(ctx context.Context, collection, field string, value any) (Document, error)

	// Scan returns all documents matching the predicate, in insertion order.
	Scan(ctx context.Context, collection string, pred func(Document) bool) ([]Document, error)

	// Clear removes every document in the collection.
	Clear(ctx context.Context, collection string) error
}

// =============================================================================
// BACKUP STORE - Full export / last-write-wins restore
// =============================================================================

// BackupStore extends Store with whole-database dump and restore.
type BackupStore interface {
	Store

	// DumpAll exports every collection as one structured document.
	DumpAll(ctx context.Context) (*Backup, error)

	// RestoreAll applies a backup record by record: any existing document
	// sharing an incoming id is deleted, then the incoming document is
	// inserted verbatim. Last write wins; no merge.
	RestoreAll(ctx context.Context, b *Backup) error

	// Reset clears all collections.
	Reset(ctx context.Context) error
}
