package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herbcabinet/inventory-engine/api"
	"github.com/herbcabinet/inventory-engine/inventory"
	"github.com/herbcabinet/inventory-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	system := inventory.NewSystem(store, zerolog.Nop())
	handler := api.NewHandler(system, store, zerolog.Nop())
	server := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, api.Envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var envelope api.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func decodeData(t *testing.T, envelope api.Envelope, dest any) {
	t.Helper()
	raw, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dest))
}

// seedCabinet registers a source, a drug and one purchase through the API.
func seedCabinet(t *testing.T, base string) {
	t.Helper()

	resp, env := doJSON(t, http.MethodPost, base+"/api/sources", map[string]any{"name": "herb market"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var source inventory.Source
	decodeData(t, env, &source)

	resp, env = doJSON(t, http.MethodPost, base+"/api/drugs", map[string]any{
		"name": "angelica", "storageType": "sealed", "minStock": 50, "defaultEstimate": 10,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var drug inventory.Drug
	decodeData(t, env, &drug)

	resp, _ = doJSON(t, http.MethodPost, base+"/api/stock-ins", map[string]any{
		"drugId": drug.ID, "drugName": "angelica",
		"sourceId": source.ID, "sourceName": "herb market",
		"grams": 1000, "totalAmount": 500,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

// =============================================================================
// SOURCES / DRUGS
// =============================================================================

func TestAPI_CreateSource_DuplicateIsConflict(t *testing.T) {
	server := newTestServer(t)

	resp, env := doJSON(t, http.MethodPost, server.URL+"/api/sources", map[string]any{"name": "herb market"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, env.Success)

	resp, env = doJSON(t, http.MethodPost, server.URL+"/api/sources", map[string]any{"name": "herb market"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "herb market")
}

func TestAPI_CreateDrug_InvalidStorageType_BadRequest(t *testing.T) {
	server := newTestServer(t)

	resp, env := doJSON(t, http.MethodPost, server.URL+"/api/drugs", map[string]any{
		"name": "angelica", "storageType": "frozen", "defaultEstimate": 10,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, env.Success)
}

func TestAPI_GetStock_UnknownDrug_NotFound(t *testing.T) {
	server := newTestServer(t)

	resp, env := doJSON(t, http.MethodGet, server.URL+"/api/drugs/ghost/stock", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, env.Success)
}

func TestAPI_GetStock_ReplaysLedger(t *testing.T) {
	server := newTestServer(t)
	seedCabinet(t, server.URL)

	resp, env := doJSON(t, http.MethodGet, server.URL+"/api/drugs/angelica/stock", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stock api.StockResponse
	decodeData(t, env, &stock)
	assert.Equal(t, 1000.0, stock.CurrentStock)
}

// =============================================================================
// FIFO ESTIMATE / RELEASES
// =============================================================================

func TestAPI_EstimateCost(t *testing.T) {
	server := newTestServer(t)
	seedCabinet(t, server.URL) // 1000g at 0.50/g

	resp, env := doJSON(t, http.MethodPost, server.URL+"/api/stock-outs/estimate", map[string]any{
		"drugName": "angelica", "grams": 100,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var estimate api.EstimateCostResponse
	decodeData(t, env, &estimate)
	assert.Equal(t, 50.0, estimate.Cost)
}

func TestAPI_CreateStockOut_InsufficientStock_BadRequest(t *testing.T) {
	server := newTestServer(t)
	seedCabinet(t, server.URL)

	resp, env := doJSON(t, http.MethodPost, server.URL+"/api/stock-outs", map[string]any{
		"drugName": "angelica", "outType": "void", "grams": 5000,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, env.Message, "insufficient stock")
}

// =============================================================================
// PRESCRIPTIONS
// =============================================================================

func TestAPI_SubmitPrescription(t *testing.T) {
	server := newTestServer(t)
	seedCabinet(t, server.URL)

	resp, env := doJSON(t, http.MethodPost, server.URL+"/api/prescriptions", map[string]any{
		"drugList":  []map[string]any{{"name": "angelica", "grams": 30}},
		"diagnosis": map[string]any{"sleep": "restless"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var prescription inventory.Prescription
	decodeData(t, env, &prescription)
	assert.Equal(t, 15.0, prescription.TotalAmount)
	require.NotNil(t, prescription.DiagnosisLogID)

	resp, env = doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/api/prescriptions/%d/diagnosis-log", server.URL, prescription.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var log inventory.DiagnosisLog
	decodeData(t, env, &log)
	assert.Equal(t, "restless", log.Sleep)
}

func TestAPI_SubmitPrescription_EmptyList_BadRequest(t *testing.T) {
	server := newTestServer(t)

	resp, env := doJSON(t, http.MethodPost, server.URL+"/api/prescriptions", map[string]any{
		"drugList":  []map[string]any{},
		"diagnosis": map[string]any{},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, env.Success)
}

func TestAPI_LastPrescription_Empty_IsBareSuccess(t *testing.T) {
	server := newTestServer(t)

	resp, env := doJSON(t, http.MethodGet, server.URL+"/api/prescriptions/last", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	assert.Nil(t, env.Data)
}

// =============================================================================
// STATS / ADMIN
// =============================================================================

func TestAPI_DailyStats_UnknownPeriod_BadRequest(t *testing.T) {
	server := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, server.URL+"/api/stats/daily?period=last-week", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_WarningStats(t *testing.T) {
	server := newTestServer(t)
	seedCabinet(t, server.URL) // stock 1000 is above minStock 50, no warning

	resp, env := doJSON(t, http.MethodGet, server.URL+"/api/stats/warnings", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats inventory.WarningStats
	decodeData(t, env, &stats)
	assert.Equal(t, 0, stats.Count)
}

func TestAPI_SeedBackupReset_Cycle(t *testing.T) {
	// GIVEN: A demo-seeded database
	// WHEN: Exporting a backup, resetting, then restoring
	// THEN: Reset empties the cabinet and restore brings it back

	server := newTestServer(t)

	resp, env := doJSON(t, http.MethodPost, server.URL+"/api/seed", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary api.DemoSummary
	decodeData(t, env, &summary)
	assert.Equal(t, 6, summary.Drugs)

	resp, env = doJSON(t, http.MethodGet, server.URL+"/api/backup", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	backup := env.Data

	resp, _ = doJSON(t, http.MethodPost, server.URL+"/api/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env = doJSON(t, http.MethodGet, server.URL+"/api/drugs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var drugs []inventory.Drug
	decodeData(t, env, &drugs)
	assert.Empty(t, drugs)

	resp, _ = doJSON(t, http.MethodPost, server.URL+"/api/restore", backup)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env = doJSON(t, http.MethodGet, server.URL+"/api/drugs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, env, &drugs)
	assert.Len(t, drugs, 6)
}
