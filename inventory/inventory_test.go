package inventory_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/herbcabinet/inventory-engine/inventory"
	"github.com/herbcabinet/inventory-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP - shared across the package's test files
// =============================================================================

func newTestSystem(t *testing.T) (*inventory.System, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return inventory.NewSystem(store, zerolog.Nop()), store
}

// seedDrug registers a sealed drug with sensible defaults.
func seedDrug(t *testing.T, system *inventory.System, name string, minStock, defaultEstimate float64) *inventory.Drug {
	t.Helper()
	drug, err := system.Drugs.Add(context.Background(), inventory.DrugInput{
		Name:            name,
		StorageType:     inventory.StorageSealed,
		MinStock:        minStock,
		DefaultEstimate: defaultEstimate,
	})
	require.NoError(t, err)
	return drug
}

// seedSource registers a source.
func seedSource(t *testing.T, system *inventory.System, name string) *inventory.Source {
	t.Helper()
	source, err := system.Sources.Add(context.Background(), name, "")
	require.NoError(t, err)
	return source
}

// seedStockIn records a purchase of grams at the given total price.
func seedStockIn(t *testing.T, system *inventory.System, drug *inventory.Drug, source *inventory.Source, grams, totalAmount float64) *inventory.StockIn {
	t.Helper()
	rec, err := system.StockIns.Record(context.Background(), inventory.StockInInput{
		DrugID:      drug.ID,
		DrugName:    drug.Name,
		SourceID:    source.ID,
		SourceName:  source.Name,
		Grams:       grams,
		TotalAmount: totalAmount,
	})
	require.NoError(t, err)
	return rec
}
