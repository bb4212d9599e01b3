/*
stockout.go - Release ledger and FIFO cost engine

PURPOSE:
  The central algorithm of the system. The cost of releasing a given mass
  of a drug is allocated against purchase records oldest-first: each
  record contributes min(remaining, record.grams) grams at that record's
  unit price, every slice rounded to 2 decimals, the final total rounded
  again.

KNOWN MODEL LIMITATION (deliberately preserved):
  A stock-in record's grams is treated as its ORIGINAL full quantity on
  every estimate; the engine never persists partial depletion of a
  purchase record. Costing stays correct only because total consumption
  is independently capped by the current-stock check. Two sequential
  releases therefore both price their first grams from the oldest
  record. This matches the system this engine replaces; fixing it would
  require a remaining-quantity field per stock-in record and a
  recalculation of historic data. Tests exercise the behavior explicitly.

SEE ALSO:
  - stockin.go: ByDrugOldestFirst supplies the walk order
  - drugs.go: CurrentStock supplies the capacity cap, RecordUse consumes
    prescription-type releases
*/
package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/herbcabinet/inventory-engine/docstore"
)

// StockOutEngine manages the stockOuts collection and performs FIFO cost
// allocation.
type StockOutEngine struct {
	store    docstore.Store
	stockIns *StockInLedger
	drugs    *DrugRegistry
	log      zerolog.Logger

	now func() time.Time
}

func NewStockOutEngine(store docstore.Store, stockIns *StockInLedger, drugs *DrugRegistry, log zerolog.Logger) *StockOutEngine {
	return &StockOutEngine{
		store:    store,
		stockIns: stockIns,
		drugs:    drugs,
		log:      log.With().Str("component", "stock-out").Logger(),
		now:      time.Now,
	}
}

// SetClock replaces the timestamp source. Intended for tests.
func (e *StockOutEngine) SetClock(now func() time.Time) { e.now = now }

// EstimateCost computes the FIFO cost of releasing outGrams of a drug
// without writing anything.
func (e *StockOutEngine) EstimateCost(ctx context.Context, drugName string, outGrams float64) (float64, error) {
	if outGrams <= 0 {
		return 0, &ValidationError{Field: "grams", Reason: "must be greater than zero"}
	}

	ins, err := e.stockIns.ByDrugOldestFirst(ctx, drugName)
	if err != nil {
		return 0, err
	}
	if len(ins) == 0 {
		return 0, fmt.Errorf("drug %s: %w", drugName, ErrNoStockIns)
	}

	stock, err := e.drugs.CurrentStock(ctx, drugName)
	if err != nil {
		return 0, err
	}
	if stock < outGrams {
		return 0, &CapacityError{Drug: drugName, Requested: outGrams, Available: stock}
	}

	remaining := dec(outGrams)
	total := decimal.Zero
	for _, rec := range ins {
		if remaining.Sign() <= 0 {
			break
		}
		// rec.Grams is the record's original quantity, not a remaining
		// balance; see the package comment on the preserved limitation.
		use := decimal.Min(remaining, dec(rec.Grams))
		total = total.Add(round2d(use.Mul(dec(rec.UnitPrice))))
		remaining = remaining.Sub(use)
	}

	cost, _ := round2d(total).Float64()
	return cost, nil
}

// ReleaseInput carries the fields of one release event.
type ReleaseInput struct {
	DrugName       string
	OutType        OutType
	Grams          float64
	PrescriptionID *int64 // only for prescription-use releases
	Remark         string
}

// Release costs and persists one release event. The estimate runs first,
// so a validation or capacity failure writes nothing at all. A
// prescription-type release additionally feeds the drug's dynamic
// estimate via RecordUse.
func (e *StockOutEngine) Release(ctx context.Context, in ReleaseInput) (*StockOut, error) {
	if strings.TrimSpace(in.DrugName) == "" {
		return nil, &ValidationError{Field: "drugName", Reason: "must not be blank"}
	}
	if !in.OutType.Valid() {
		return nil, &ValidationError{Field: "outType", Reason: fmt.Sprintf("unknown out type %q", in.OutType)}
	}
	if in.Grams <= 0 {
		return nil, &ValidationError{Field: "grams", Reason: "must be greater than zero"}
	}

	cost, err := e.EstimateCost(ctx, in.DrugName, in.Grams)
	if err != nil {
		return nil, err
	}

	drug, err := e.drugs.GetByName(ctx, in.DrugName)
	if err != nil {
		return nil, err
	}

	doc, err := docstore.Encode(StockOut{
		DrugID:         drug.ID,
		DrugName:       drug.Name,
		OutType:        in.OutType,
		Grams:          in.Grams,
		TotalAmount:    cost,
		OutTime:        e.now().UTC(),
		PrescriptionID: in.PrescriptionID,
		Remark:         strings.TrimSpace(in.Remark),
	})
	if err != nil {
		return nil, err
	}
	created, err := e.store.Create(ctx, docstore.CollectionStockOuts, doc)
	if err != nil {
		return nil, fmt.Errorf("create stock-out: %w", err)
	}

	var rec StockOut
	if err := docstore.Decode(created, &rec); err != nil {
		return nil, err
	}

	// Only prescription dispensing trains the dynamic estimate; voids and
	// processing losses say nothing about patient dosage.
	switch in.OutType {
	case OutPrescriptionUse:
		if err := e.drugs.RecordUse(ctx, drug.Name, in.Grams); err != nil {
			return nil, fmt.Errorf("record drug use: %w", err)
		}
	case OutVoid, OutProcessingLoss:
		// no usage accounting
	}

	e.log.Info().
		Str("drug", rec.DrugName).
		Str("outType", string(rec.OutType)).
		Float64("grams", rec.Grams).
		Float64("cost", rec.TotalAmount).
		Msg("stock released")
	return &rec, nil
}

// ByTimeAndType returns releases with outTime in [start, end], optionally
// narrowed to one out type.
func (e *StockOutEngine) ByTimeAndType(ctx context.Context, start, end time.Time, outType *OutType) ([]StockOut, error) {
	docs, err := e.store.Scan(ctx, docstore.CollectionStockOuts, func(doc docstore.Document) bool {
		at := docstore.Time(doc, "outTime")
		if at.Before(start) || at.After(end) {
			return false
		}
		if outType != nil && docstore.String(doc, "outType") != string(*outType) {
			return false
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("load stock-outs: %w", err)
	}
	return docstore.DecodeAll[StockOut](docs)
}

// All returns every release record, newest first (display order).
func (e *StockOutEngine) All(ctx context.Context) ([]StockOut, error) {
	docs, err := e.store.GetAll(ctx, docstore.CollectionStockOuts)
	if err != nil {
		return nil, fmt.Errorf("load stock-outs: %w", err)
	}
	recs, err := docstore.DecodeAll[StockOut](docs)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].OutTime.After(recs[j].OutTime) })
	return recs, nil
}
