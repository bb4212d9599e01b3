/*
stockin.go - Purchase ledger

PURPOSE:
  Records purchase events and derives the per-gram unit price that the
  FIFO engine later consumes. Records are immutable after creation; the
  drug and source names are denormalized at creation time only.
*/
package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/herbcabinet/inventory-engine/docstore"
)

// StockInLedger manages the stockIns collection.
type StockInLedger struct {
	store docstore.Store
	log   zerolog.Logger

	// now stamps inTime; tests may replace it.
	now func() time.Time
}

func NewStockInLedger(store docstore.Store, log zerolog.Logger) *StockInLedger {
	return &StockInLedger{
		store: store,
		log:   log.With().Str("component", "stock-in").Logger(),
		now:   time.Now,
	}
}

// SetClock replaces the timestamp source. Intended for tests.
func (l *StockInLedger) SetClock(now func() time.Time) { l.now = now }

// StockInInput carries the fields of one purchase event.
type StockInInput struct {
	DrugID      int64
	DrugName    string
	SourceID    int64
	SourceName  string
	Grams       float64
	TotalAmount float64
	Remark      string
}

// Record validates and persists one purchase event, computing
// unitPrice = round2(totalAmount/grams).
func (l *StockInLedger) Record(ctx context.Context, in StockInInput) (*StockIn, error) {
	switch {
	case in.DrugID <= 0:
		return nil, &ValidationError{Field: "drugId", Reason: "must reference a drug"}
	case in.SourceID <= 0:
		return nil, &ValidationError{Field: "sourceId", Reason: "must reference a source"}
	case in.Grams <= 0:
		return nil, &ValidationError{Field: "grams", Reason: "must be greater than zero"}
	case in.TotalAmount <= 0:
		return nil, &ValidationError{Field: "totalAmount", Reason: "must be greater than zero"}
	}

	unitPrice, _ := round2d(dec(in.TotalAmount).Div(dec(in.Grams))).Float64()

	doc, err := docstore.Encode(StockIn{
		DrugID:      in.DrugID,
		DrugName:    in.DrugName,
		SourceID:    in.SourceID,
		SourceName:  in.SourceName,
		Grams:       in.Grams,
		TotalAmount: in.TotalAmount,
		UnitPrice:   unitPrice,
		InTime:      l.now().UTC(),
		Remark:      strings.TrimSpace(in.Remark),
	})
	if err != nil {
		return nil, err
	}
	created, err := l.store.Create(ctx, docstore.CollectionStockIns, doc)
	if err != nil {
		return nil, fmt.Errorf("create stock-in: %w", err)
	}

	var rec StockIn
	if err := docstore.Decode(created, &rec); err != nil {
		return nil, err
	}
	l.log.Info().
		Str("drug", rec.DrugName).
		Float64("grams", rec.Grams).
		Float64("unitPrice", rec.UnitPrice).
		Msg("stock-in recorded")
	return &rec, nil
}

// ByDrugOldestFirst returns all purchase records for a drug ordered by
// inTime ascending. This is the FIFO consumption order.
func (l *StockInLedger) ByDrugOldestFirst(ctx context.Context, drugName string) ([]StockIn, error) {
	docs, err := l.store.Scan(ctx, docstore.CollectionStockIns, func(doc docstore.Document) bool {
		return docstore.String(doc, "drugName") == drugName
	})
	if err != nil {
		return nil, fmt.Errorf("load stock-ins: %w", err)
	}
	recs, err := docstore.DecodeAll[StockIn](docs)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].InTime.Before(recs[j].InTime) })
	return recs, nil
}

// All returns every purchase record, newest first (display order).
func (l *StockInLedger) All(ctx context.Context) ([]StockIn, error) {
	docs, err := l.store.GetAll(ctx, docstore.CollectionStockIns)
	if err != nil {
		return nil, fmt.Errorf("load stock-ins: %w", err)
	}
	recs, err := docstore.DecodeAll[StockIn](docs)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].InTime.After(recs[j].InTime) })
	return recs, nil
}
