package inventory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herbcabinet/inventory-engine/inventory"
)

// =============================================================================
// REGISTRATION
// =============================================================================

func TestDrugAdd_SeedsEstimateFromDefault(t *testing.T) {
	// GIVEN: A new drug with a default estimate of 10g per use
	// WHEN: Registering it
	// THEN: The current estimate starts at the default, counters at zero

	system, _ := newTestSystem(t)

	drug := seedDrug(t, system, "angelica", 100, 10)

	assert.Equal(t, 10.0, drug.CurrentEstimate)
	assert.Equal(t, int64(0), drug.UseCount)
	assert.Equal(t, 0.0, drug.TotalUsedGrams)
}

func TestDrugAdd_Validation(t *testing.T) {
	system, _ := newTestSystem(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input inventory.DrugInput
	}{
		{"blank name", inventory.DrugInput{Name: " ", StorageType: inventory.StorageSealed, DefaultEstimate: 5}},
		{"unknown storage", inventory.DrugInput{Name: "angelica", StorageType: "frozen", DefaultEstimate: 5}},
		{"negative min stock", inventory.DrugInput{Name: "angelica", StorageType: inventory.StorageSealed, MinStock: -1, DefaultEstimate: 5}},
		{"estimate below one", inventory.DrugInput{Name: "angelica", StorageType: inventory.StorageSealed, DefaultEstimate: 0.5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := system.Drugs.Add(ctx, tc.input)
			var verr *inventory.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestDrugAdd_DuplicateName_Rejected(t *testing.T) {
	system, _ := newTestSystem(t)
	ctx := context.Background()

	seedDrug(t, system, "angelica", 100, 10)

	_, err := system.Drugs.Add(ctx, inventory.DrugInput{
		Name:            " angelica ",
		StorageType:     inventory.StorageRefrigerated,
		DefaultEstimate: 5,
	})
	assert.ErrorIs(t, err, inventory.ErrDuplicate)
}

// =============================================================================
// DYNAMIC ESTIMATE
// =============================================================================

func TestRecordUse_EstimateIsRoundedRunningAverage(t *testing.T) {
	// GIVEN: A drug with default estimate 10
	// WHEN: Recording uses of 12g, 18g, then 5g
	// THEN: The estimate tracks round2(totalUsed/useCount) at every step

	system, _ := newTestSystem(t)
	ctx := context.Background()

	seedDrug(t, system, "angelica", 100, 10)

	require.NoError(t, system.Drugs.RecordUse(ctx, "angelica", 12))
	drug, err := system.Drugs.GetByName(ctx, "angelica")
	require.NoError(t, err)
	assert.Equal(t, 12.0, drug.CurrentEstimate)

	require.NoError(t, system.Drugs.RecordUse(ctx, "angelica", 18))
	drug, err = system.Drugs.GetByName(ctx, "angelica")
	require.NoError(t, err)
	assert.Equal(t, 15.0, drug.CurrentEstimate)
	assert.Equal(t, int64(2), drug.UseCount)
	assert.Equal(t, 30.0, drug.TotalUsedGrams)

	// 35 / 3 = 11.666... rounds to 11.67
	require.NoError(t, system.Drugs.RecordUse(ctx, "angelica", 5))
	drug, err = system.Drugs.GetByName(ctx, "angelica")
	require.NoError(t, err)
	assert.Equal(t, 11.67, drug.CurrentEstimate)
}

func TestRecordUse_UnknownDrug(t *testing.T) {
	system, _ := newTestSystem(t)

	err := system.Drugs.RecordUse(context.Background(), "ghost", 5)
	assert.True(t, inventory.IsNotFound(err))
}

// =============================================================================
// STOCK REPLAY
// =============================================================================

func TestCurrentStock_ReplaysBothLedgers(t *testing.T) {
	// GIVEN: 500g + 200g purchased, 30g released
	// WHEN: Replaying current stock
	// THEN: Stock is 670g; nothing is stored, it is recomputed

	system, _ := newTestSystem(t)
	ctx := context.Background()

	drug := seedDrug(t, system, "angelica", 100, 10)
	source := seedSource(t, system, "herb market")
	seedStockIn(t, system, drug, source, 500, 1000)
	seedStockIn(t, system, drug, source, 200, 500)

	_, err := system.StockOuts.Release(ctx, inventory.ReleaseInput{
		DrugName: "angelica",
		OutType:  inventory.OutVoid,
		Grams:    30,
	})
	require.NoError(t, err)

	stock, err := system.Drugs.CurrentStock(ctx, "angelica")
	require.NoError(t, err)
	assert.Equal(t, 670.0, stock)
}

func TestCurrentStock_NoHistory_IsZero(t *testing.T) {
	system, _ := newTestSystem(t)
	seedDrug(t, system, "angelica", 100, 10)

	stock, err := system.Drugs.CurrentStock(context.Background(), "angelica")
	require.NoError(t, err)
	assert.Equal(t, 0.0, stock)
}

// =============================================================================
// WARNING LIST
// =============================================================================

func TestWarningList_BoundaryIsInclusive(t *testing.T) {
	// GIVEN: "low" holds exactly its threshold, "fine" holds just above
	// WHEN: Building the warning list
	// THEN: "low" warns (stock == minStock), "fine" does not

	system, _ := newTestSystem(t)
	ctx := context.Background()

	source := seedSource(t, system, "herb market")

	low := seedDrug(t, system, "low", 100, 10)
	seedStockIn(t, system, low, source, 100, 200)

	fine := seedDrug(t, system, "fine", 100, 10)
	seedStockIn(t, system, fine, source, 100.01, 200)

	warnings, err := system.Drugs.WarningList(ctx)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "low", warnings[0].Name)
	assert.Equal(t, 100.0, warnings[0].CurrentStock)
}

// =============================================================================
// SELECTION RANKING
// =============================================================================

func TestRankForSelection_OrdersByUseCountThenRemainingUses(t *testing.T) {
	// GIVEN: Three drugs with different use counts and stock levels
	// WHEN: Ranking for selection
	// THEN: Most used first; ties broken by the larger remaining-use count

	system, _ := newTestSystem(t)
	ctx := context.Background()

	source := seedSource(t, system, "herb market")

	// "popular" used twice, the others never.
	popular := seedDrug(t, system, "popular", 0, 10)
	seedStockIn(t, system, popular, source, 100, 200)
	deep := seedDrug(t, system, "deep", 0, 10) // 400g / 10g per use = 40 uses
	seedStockIn(t, system, deep, source, 400, 800)
	shallow := seedDrug(t, system, "shallow", 0, 10) // 200g / 10 = 20 uses
	seedStockIn(t, system, shallow, source, 200, 400)

	for i := 0; i < 2; i++ {
		_, err := system.StockOuts.Release(ctx, inventory.ReleaseInput{
			DrugName: "popular",
			OutType:  inventory.OutPrescriptionUse,
			Grams:    10,
		})
		require.NoError(t, err)
	}

	ranked, err := system.Drugs.RankForSelection(ctx, nil)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, "popular", ranked[0].Name)
	assert.Equal(t, "deep", ranked[1].Name, "tie on use count broken by remaining uses")
	assert.Equal(t, "shallow", ranked[2].Name)
}

func TestRankForSelection_ExcludesChosen(t *testing.T) {
	system, _ := newTestSystem(t)

	seedDrug(t, system, "angelica", 0, 10)
	seedDrug(t, system, "licorice", 0, 10)

	ranked, err := system.Drugs.RankForSelection(context.Background(), []string{"angelica"})
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, "licorice", ranked[0].Name)
}

func TestRankForSelection_RemainingUsesFromEstimate(t *testing.T) {
	system, _ := newTestSystem(t)

	drug := seedDrug(t, system, "angelica", 0, 1)
	source := seedSource(t, system, "herb market")
	seedStockIn(t, system, drug, source, 100, 200)

	ranked, err := system.Drugs.RankForSelection(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, 100.0, ranked[0].RemainingUses)
}
