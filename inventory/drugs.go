/*
drugs.go - Drug registry and usage accounting

PURPOSE:
  CRUD over drug definitions plus the accounting that rides on them:

  - Dynamic estimate: a drug's expected grams-per-use starts at
    DefaultEstimate and becomes the 2-decimal-rounded running average of
    actual prescription usage after every prescription-type release.
  - Current stock: never stored; replayed on demand as the sum of all
    stock-in grams minus all stock-out grams for the drug.
  - Warning list: drugs at or below their MinStock threshold.
  - Selection ranking: most frequently used drugs first, ties broken by
    how many further uses the remaining stock covers.

SEE ALSO:
  - stockout.go: calls RecordUse after prescription-type releases
  - stats.go: wraps WarningList for display
*/
package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/herbcabinet/inventory-engine/docstore"
)

// DrugRegistry manages the drugs collection and the stock replay that
// derives from the two movement ledgers.
type DrugRegistry struct {
	store docstore.Store
	log   zerolog.Logger
}

func NewDrugRegistry(store docstore.Store, log zerolog.Logger) *DrugRegistry {
	return &DrugRegistry{store: store, log: log.With().Str("component", "drugs").Logger()}
}

// DrugInput carries the fields supplied when registering a drug.
type DrugInput struct {
	Name            string
	StorageType     StorageType
	MinStock        float64
	DefaultEstimate float64
}

// Add registers a new drug. The current estimate is seeded from the
// default; usage counters start at zero.
func (r *DrugRegistry) Add(ctx context.Context, in DrugInput) (*Drug, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be blank"}
	}
	if !in.StorageType.Valid() {
		return nil, &ValidationError{Field: "storageType", Reason: fmt.Sprintf("unknown storage type %q", in.StorageType)}
	}
	if in.MinStock < 0 {
		return nil, &ValidationError{Field: "minStock", Reason: "must not be negative"}
	}
	if in.DefaultEstimate < 1 {
		return nil, &ValidationError{Field: "defaultEstimate", Reason: "must be at least 1 gram per use"}
	}

	if _, err := r.store.GetByIndex(ctx, docstore.CollectionDrugs, "name", name); err == nil {
		return nil, &DuplicateError{Kind: "drug", Name: name}
	} else if !docstore.IsNotFound(err) {
		return nil, fmt.Errorf("check drug name: %w", err)
	}

	doc, err := docstore.Encode(Drug{
		Name:            name,
		StorageType:     in.StorageType,
		MinStock:        in.MinStock,
		DefaultEstimate: in.DefaultEstimate,
		CurrentEstimate: in.DefaultEstimate,
	})
	if err != nil {
		return nil, err
	}
	created, err := r.store.Create(ctx, docstore.CollectionDrugs, doc)
	if err != nil {
		if docstore.IsDuplicate(err) {
			return nil, &DuplicateError{Kind: "drug", Name: name}
		}
		return nil, fmt.Errorf("create drug: %w", err)
	}

	var drug Drug
	if err := docstore.Decode(created, &drug); err != nil {
		return nil, err
	}
	r.log.Info().Str("name", drug.Name).Int64("id", drug.ID).Msg("drug registered")
	return &drug, nil
}

// List returns all drugs sorted by name ascending (locale-aware).
func (r *DrugRegistry) List(ctx context.Context) ([]Drug, error) {
	docs, err := r.store.GetAll(ctx, docstore.CollectionDrugs)
	if err != nil {
		return nil, fmt.Errorf("list drugs: %w", err)
	}
	drugs, err := docstore.DecodeAll[Drug](docs)
	if err != nil {
		return nil, err
	}
	sortByName(drugs, func(d Drug) string { return d.Name })
	return drugs, nil
}

// GetByName looks a drug up by its unique name.
func (r *DrugRegistry) GetByName(ctx context.Context, name string) (*Drug, error) {
	doc, err := r.store.GetByIndex(ctx, docstore.CollectionDrugs, "name", strings.TrimSpace(name))
	if docstore.IsNotFound(err) {
		return nil, &NotFoundError{Kind: "drug", Key: name}
	}
	if err != nil {
		return nil, fmt.Errorf("get drug: %w", err)
	}
	var drug Drug
	if err := docstore.Decode(doc, &drug); err != nil {
		return nil, err
	}
	return &drug, nil
}

// GetByID looks a drug up by id.
func (r *DrugRegistry) GetByID(ctx context.Context, id int64) (*Drug, error) {
	doc, err := r.store.GetByID(ctx, docstore.CollectionDrugs, id)
	if docstore.IsNotFound(err) {
		return nil, &NotFoundError{Kind: "drug", Key: fmt.Sprint(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("get drug: %w", err)
	}
	var drug Drug
	if err := docstore.Decode(doc, &drug); err != nil {
		return nil, err
	}
	return &drug, nil
}

// RecordUse folds one prescription-type release into the drug's dynamic
// estimate: the use counter and gram accumulator advance, and the estimate
// becomes the 2-decimal-rounded average grams per use.
func (r *DrugRegistry) RecordUse(ctx context.Context, drugName string, usedGrams float64) error {
	drug, err := r.GetByName(ctx, drugName)
	if err != nil {
		return err
	}

	drug.UseCount++
	drug.TotalUsedGrams, _ = dec(drug.TotalUsedGrams).Add(dec(usedGrams)).Float64()
	drug.CurrentEstimate, _ = round2d(dec(drug.TotalUsedGrams).Div(decimal.NewFromInt(drug.UseCount))).Float64()

	doc, err := docstore.Encode(drug)
	if err != nil {
		return err
	}
	if _, err := r.store.Update(ctx, docstore.CollectionDrugs, doc); err != nil {
		return fmt.Errorf("update drug usage: %w", err)
	}
	return nil
}

// CurrentStock replays both movement ledgers for a drug:
// sum of stock-in grams minus sum of stock-out grams. O(ledger size),
// recomputed on every call; nothing is maintained incrementally.
func (r *DrugRegistry) CurrentStock(ctx context.Context, drugName string) (float64, error) {
	byName := func(doc docstore.Document) bool {
		return docstore.String(doc, "drugName") == drugName
	}

	ins, err := r.store.Scan(ctx, docstore.CollectionStockIns, byName)
	if err != nil {
		return 0, fmt.Errorf("replay stock-ins: %w", err)
	}
	outs, err := r.store.Scan(ctx, docstore.CollectionStockOuts, byName)
	if err != nil {
		return 0, fmt.Errorf("replay stock-outs: %w", err)
	}

	total := decimal.Zero
	for _, doc := range ins {
		var rec StockIn
		if err := docstore.Decode(doc, &rec); err != nil {
			return 0, err
		}
		total = total.Add(dec(rec.Grams))
	}
	for _, doc := range outs {
		var rec StockOut
		if err := docstore.Decode(doc, &rec); err != nil {
			return 0, err
		}
		total = total.Sub(dec(rec.Grams))
	}

	stock, _ := total.Float64()
	return stock, nil
}

// WarningList returns every drug whose current stock is at or below its
// MinStock threshold, annotated with the replayed stock. The boundary is
// inclusive: stock == minStock warns.
func (r *DrugRegistry) WarningList(ctx context.Context) ([]DrugWithStock, error) {
	drugs, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	warnings := []DrugWithStock{}
	for _, drug := range drugs {
		stock, err := r.CurrentStock(ctx, drug.Name)
		if err != nil {
			return nil, err
		}
		if stock <= drug.MinStock {
			warnings = append(warnings, DrugWithStock{Drug: drug, CurrentStock: stock})
		}
	}
	return warnings, nil
}

// RankForSelection returns all drugs not already chosen, annotated with
// current stock and the number of uses that stock is expected to cover
// (stock / current estimate, 0 when the estimate is 0). Order: most used
// first, ties broken by the larger remaining-use count.
func (r *DrugRegistry) RankForSelection(ctx context.Context, alreadyChosen []string) ([]RankedDrug, error) {
	chosen := make(map[string]struct{}, len(alreadyChosen))
	for _, name := range alreadyChosen {
		chosen[name] = struct{}{}
	}

	drugs, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	ranked := []RankedDrug{}
	for _, drug := range drugs {
		if _, taken := chosen[drug.Name]; taken {
			continue
		}
		stock, err := r.CurrentStock(ctx, drug.Name)
		if err != nil {
			return nil, err
		}
		remaining := 0.0
		if drug.CurrentEstimate > 0 {
			remaining = stock / drug.CurrentEstimate
		}
		ranked = append(ranked, RankedDrug{Drug: drug, CurrentStock: stock, RemainingUses: remaining})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].UseCount != ranked[j].UseCount {
			return ranked[i].UseCount > ranked[j].UseCount
		}
		return ranked[i].RemainingUses > ranked[j].RemainingUses
	})
	return ranked, nil
}
