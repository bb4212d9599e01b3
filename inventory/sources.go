/*
sources.go - Supply source registry

PURPOSE:
  CRUD over named supply sources. Names are unique after trimming;
  sources are never deleted automatically.
*/
package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/herbcabinet/inventory-engine/docstore"
)

// SourceRegistry manages the sources collection. It is a stateless facade
// over the document store.
type SourceRegistry struct {
	store docstore.Store
	log   zerolog.Logger
}

func NewSourceRegistry(store docstore.Store, log zerolog.Logger) *SourceRegistry {
	return &SourceRegistry{store: store, log: log.With().Str("component", "sources").Logger()}
}

// Add registers a new source. Blank names and exact duplicates (after
// trimming) are rejected.
func (r *SourceRegistry) Add(ctx context.Context, name, remark string) (*Source, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be blank"}
	}

	if _, err := r.store.GetByIndex(ctx, docstore.CollectionSources, "name", name); err == nil {
		return nil, &DuplicateError{Kind: "source", Name: name}
	} else if !docstore.IsNotFound(err) {
		return nil, fmt.Errorf("check source name: %w", err)
	}

	doc, err := docstore.Encode(Source{Name: name, Remark: strings.TrimSpace(remark)})
	if err != nil {
		return nil, err
	}
	created, err := r.store.Create(ctx, docstore.CollectionSources, doc)
	if err != nil {
		// The unique index closes the race the pre-check leaves open.
		if docstore.IsDuplicate(err) {
			return nil, &DuplicateError{Kind: "source", Name: name}
		}
		return nil, fmt.Errorf("create source: %w", err)
	}

	var source Source
	if err := docstore.Decode(created, &source); err != nil {
		return nil, err
	}
	r.log.Info().Str("name", source.Name).Int64("id", source.ID).Msg("source registered")
	return &source, nil
}

// List returns all sources sorted by name ascending (locale-aware).
func (r *SourceRegistry) List(ctx context.Context) ([]Source, error) {
	docs, err := r.store.GetAll(ctx, docstore.CollectionSources)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	sources, err := docstore.DecodeAll[Source](docs)
	if err != nil {
		return nil, err
	}
	sortByName(sources, func(s Source) string { return s.Name })
	return sources, nil
}

// GetByName looks a source up by its unique name.
func (r *SourceRegistry) GetByName(ctx context.Context, name string) (*Source, error) {
	doc, err := r.store.GetByIndex(ctx, docstore.CollectionSources, "name", strings.TrimSpace(name))
	if docstore.IsNotFound(err) {
		return nil, &NotFoundError{Kind: "source", Key: name}
	}
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}
	var source Source
	if err := docstore.Decode(doc, &source); err != nil {
		return nil, err
	}
	return &source, nil
}

// GetByID looks a source up by id.
func (r *SourceRegistry) GetByID(ctx context.Context, id int64) (*Source, error) {
	doc, err := r.store.GetByID(ctx, docstore.CollectionSources, id)
	if docstore.IsNotFound(err) {
		return nil, &NotFoundError{Kind: "source", Key: fmt.Sprint(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}
	var source Source
	if err := docstore.Decode(doc, &source); err != nil {
		return nil, err
	}
	return &source, nil
}

// UpdateRemark replaces the remark on an existing source.
func (r *SourceRegistry) UpdateRemark(ctx context.Context, id int64, remark string) (*Source, error) {
	source, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	source.Remark = strings.TrimSpace(remark)

	doc, err := docstore.Encode(source)
	if err != nil {
		return nil, err
	}
	if _, err := r.store.Update(ctx, docstore.CollectionSources, doc); err != nil {
		return nil, fmt.Errorf("update source: %w", err)
	}
	return source, nil
}
