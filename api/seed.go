/*
seed.go - Demo dataset loader

PURPOSE:
  Populates an empty database with a small but realistic herbal cabinet:
  two supply sources, six drugs, purchase history at different unit
  prices, and one dispensed prescription. Useful for demos and for
  exercising the frontend without manual data entry.

  Loading is idempotent only on an empty database; on existing data the
  unique-name checks reject the duplicates and the loader reports the
  first failure.
*/
package api

import (
	"context"
	"fmt"

	"github.com/herbcabinet/inventory-engine/inventory"
)

// DemoSummary reports what the loader created.
type DemoSummary struct {
	Sources       int `json:"sources"`
	Drugs         int `json:"drugs"`
	StockIns      int `json:"stockIns"`
	Prescriptions int `json:"prescriptions"`
}

type demoDrug struct {
	name            string
	storage         inventory.StorageType
	minStock        float64
	defaultEstimate float64
}

type demoStockIn struct {
	drug   string
	source string
	grams  float64
	amount float64
}

// LoadDemoData creates the demo dataset through the normal manager
// operations, so every derived field (unit prices, estimates, stock)
// is produced by the same code paths production data goes through.
func LoadDemoData(ctx context.Context, system *inventory.System) (*DemoSummary, error) {
	summary := &DemoSummary{}

	sources := []struct{ name, remark string }{
		{"同仁堂药材行", "primary supplier"},
		{"亳州药市", "bulk herbs, seasonal pricing"},
	}
	sourceIDs := map[string]int64{}
	for _, s := range sources {
		created, err := system.Sources.Add(ctx, s.name, s.remark)
		if err != nil {
			return nil, fmt.Errorf("seed source %s: %w", s.name, err)
		}
		sourceIDs[s.name] = created.ID
		summary.Sources++
	}

	drugs := []demoDrug{
		{"当归", inventory.StorageSealed, 100, 10},
		{"黄芪", inventory.StorageSealed, 150, 15},
		{"枸杞", inventory.StorageSealed, 80, 8},
		{"党参", inventory.StorageSealed, 100, 12},
		{"阿胶", inventory.StorageRefrigerated, 50, 6},
		{"鹿茸", inventory.StorageRefrigerated, 20, 3},
	}
	drugIDs := map[string]int64{}
	for _, d := range drugs {
		created, err := system.Drugs.Add(ctx, inventory.DrugInput{
			Name:            d.name,
			StorageType:     d.storage,
			MinStock:        d.minStock,
			DefaultEstimate: d.defaultEstimate,
		})
		if err != nil {
			return nil, fmt.Errorf("seed drug %s: %w", d.name, err)
		}
		drugIDs[d.name] = created.ID
		summary.Drugs++
	}

	// Two price tiers per common drug so the FIFO walk has something to
	// allocate across.
	stockIns := []demoStockIn{
		{"当归", "同仁堂药材行", 500, 1000},
		{"当归", "亳州药市", 500, 1250},
		{"黄芪", "同仁堂药材行", 800, 960},
		{"黄芪", "亳州药市", 400, 600},
		{"枸杞", "亳州药市", 600, 720},
		{"党参", "同仁堂药材行", 500, 900},
		{"阿胶", "同仁堂药材行", 200, 1600},
		{"鹿茸", "同仁堂药材行", 50, 2500},
	}
	for _, in := range stockIns {
		_, err := system.StockIns.Record(ctx, inventory.StockInInput{
			DrugID:      drugIDs[in.drug],
			DrugName:    in.drug,
			SourceID:    sourceIDs[in.source],
			SourceName:  in.source,
			Grams:       in.grams,
			TotalAmount: in.amount,
		})
		if err != nil {
			return nil, fmt.Errorf("seed stock-in %s: %w", in.drug, err)
		}
		summary.StockIns++
	}

	_, err := system.Prescriptions.Submit(ctx, []inventory.SubmitLine{
		{Name: "当归", Grams: 12},
		{Name: "黄芪", Grams: 18},
		{Name: "枸杞", Grams: 9},
	}, inventory.DiagnosisInfo{
		Sleep: "restless, wakes early",
		Other: "first visit",
	})
	if err != nil {
		return nil, fmt.Errorf("seed prescription: %w", err)
	}
	summary.Prescriptions++

	return summary, nil
}
