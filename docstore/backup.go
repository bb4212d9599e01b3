/*
backup.go - Backup document format

PURPOSE:
  A backup is one structured document holding a full dump of every
  collection. Restore is last-write-wins per record: delete any existing
  document with the incoming id, then insert the incoming document
  verbatim. No merging.

SEE ALSO:
  - store.go: BackupStore interface
  - store/sqlite: DumpAll / RestoreAll implementation
*/
package docstore

import "time"

// Backup is a full export of the database.
type Backup struct {
	// ExportID uniquely identifies one export run.
	ExportID string `json:"exportId"`

	// ExportedAt is when the dump was taken.
	ExportedAt time.Time `json:"exportedAt"`

	// Collections maps collection name to its documents in insertion order.
	Collections map[string][]Document `json:"collections"`
}

// CollectionNames returns the declared collection names in schema order.
func CollectionNames() []string {
	names := make([]string, 0, len(Collections))
	for _, c := range Collections {
		names = append(names, c.Name)
	}
	return names
}
