/*
document.go - Schemaless document type and struct bridging

PURPOSE:
  The store persists schemaless JSON documents. Domain packages work with
  typed structs and bridge through Encode/Decode, which round-trip via
  encoding/json so a document always looks exactly like its JSON form
  (numbers are float64, ids are int64-representable floats, times are
  RFC3339 strings).

SEE ALSO:
  - store.go: Store interface consuming Documents
*/
package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Document is one schemaless record in a collection.
type Document = map[string]any

// Encode converts a typed value into a Document via its JSON form.
func Encode(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return doc, nil
}

// Decode converts a Document back into a typed value.
func Decode(doc Document, dest any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// DecodeAll converts a slice of documents into typed values.
func DecodeAll[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := Decode(doc, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ID extracts the integer id assigned by the store, or 0 when unset.
func ID(doc Document) int64 {
	switch v := doc["id"].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	default:
		return 0
	}
}

// String extracts a string field, or "" when absent.
func String(doc Document, field string) string {
	s, _ := doc[field].(string)
	return s
}

// Time parses an RFC3339 time field; the zero time when absent or invalid.
func Time(doc Document, field string) time.Time {
	s, ok := doc[field].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
