/*
handlers.go - HTTP handlers for the herbal inventory engine

PURPOSE:
  Exposes the inventory core over REST. Handlers parse and validate the
  request, delegate to the domain managers, and render the uniform
  {success, message, data} envelope.

ENDPOINTS:
  Sources:
    GET    /api/sources                      List sources
    POST   /api/sources                      Register source
    PUT    /api/sources/{id}                 Update source remark

  Drugs:
    GET    /api/drugs                        List drugs
    POST   /api/drugs                        Register drug
    GET    /api/drugs/warnings               Low-stock drugs
    GET    /api/drugs/ranked?chosen=a,b      Selection ranking
    GET    /api/drugs/{name}/stock           Replayed current stock

  Ledgers:
    GET    /api/stock-ins                    Purchase history, newest first
    POST   /api/stock-ins                    Record purchase
    GET    /api/stock-outs                   Release history, newest first
    POST   /api/stock-outs                   Record standalone release
    POST   /api/stock-outs/estimate          FIFO cost preview, no writes

  Prescriptions:
    GET    /api/prescriptions                Prescriptions in a time range
    POST   /api/prescriptions                Full dispensing workflow
    GET    /api/prescriptions/last           Most recent prescription
    GET    /api/prescriptions/{id}/diagnosis-log
    GET    /api/diagnosis-logs/last          Most recent observation sheet

  Stats:
    GET    /api/stats/daily?period=          yesterday | today
    GET    /api/stats/warnings               Low-stock summary

  Admin:
    GET    /api/backup                       Full export
    POST   /api/restore                      Import (last write wins)
    POST   /api/reset                        Wipe everything
    POST   /api/seed                         Load the demo dataset

ERROR HANDLING:
  Domain errors map to HTTP status:
  - 400: validation, insufficient stock, empty drug list
  - 404: referenced record absent
  - 409: unique name/binding collision
  - 500: storage faults

SEE ALSO:
  - dto.go: Request/response shapes
  - server.go: Router and middleware
  - seed.go: Demo dataset
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/herbcabinet/inventory-engine/docstore"
	"github.com/herbcabinet/inventory-engine/inventory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds the wired inventory system plus the backup-capable store.
type Handler struct {
	System *inventory.System
	Backup docstore.BackupStore
	Log    zerolog.Logger
}

// NewHandler builds the handler graph over one store.
func NewHandler(system *inventory.System, backup docstore.BackupStore, log zerolog.Logger) *Handler {
	return &Handler{
		System: system,
		Backup: backup,
		Log:    log.With().Str("component", "api").Logger(),
	}
}

// =============================================================================
// SOURCE HANDLERS
// =============================================================================

// ListSources returns all sources, name ascending.
func (h *Handler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.System.Sources.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, sources)
}

// CreateSource registers a new source.
func (h *Handler) CreateSource(w http.ResponseWriter, r *http.Request) {
	var req CreateSourceRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err)
		return
	}

	source, err := h.System.Sources.Add(r.Context(), req.Name, req.Remark)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, source)
}

// UpdateSource replaces a source's remark.
func (h *Handler) UpdateSource(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}

	var req UpdateSourceRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err)
		return
	}

	source, err := h.System.Sources.UpdateRemark(r.Context(), id, req.Remark)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, source)
}

// =============================================================================
// DRUG HANDLERS
// =============================================================================

// ListDrugs returns all drugs, name ascending.
func (h *Handler) ListDrugs(w http.ResponseWriter, r *http.Request) {
	drugs, err := h.System.Drugs.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, drugs)
}

// CreateDrug registers a new drug.
func (h *Handler) CreateDrug(w http.ResponseWriter, r *http.Request) {
	var req CreateDrugRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err)
		return
	}

	drug, err := h.System.Drugs.Add(r.Context(), inventory.DrugInput{
		Name:            req.Name,
		StorageType:     inventory.StorageType(req.StorageType),
		MinStock:        req.MinStock,
		DefaultEstimate: req.DefaultEstimate,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, drug)
}

// ListWarnings returns drugs at or below their warning threshold.
func (h *Handler) ListWarnings(w http.ResponseWriter, r *http.Request) {
	warnings, err := h.System.Drugs.WarningList(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, warnings)
}

// RankDrugs returns drugs ranked for prescription building, excluding
// names already chosen (comma-separated "chosen" query parameter).
func (h *Handler) RankDrugs(w http.ResponseWriter, r *http.Request) {
	var chosen []string
	if raw := r.URL.Query().Get("chosen"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				chosen = append(chosen, name)
			}
		}
	}

	ranked, err := h.System.Drugs.RankForSelection(r.Context(), chosen)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, ranked)
}

// GetStock returns the replayed current stock of one drug.
func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	// The drug must exist; replay alone would report 0 for a typo.
	if _, err := h.System.Drugs.GetByName(r.Context(), name); err != nil {
		h.writeError(w, err)
		return
	}
	stock, err := h.System.Drugs.CurrentStock(r.Context(), name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, StockResponse{DrugName: name, CurrentStock: stock})
}

// =============================================================================
// STOCK-IN HANDLERS
// =============================================================================

// ListStockIns returns all purchase records, newest first.
func (h *Handler) ListStockIns(w http.ResponseWriter, r *http.Request) {
	recs, err := h.System.StockIns.All(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, recs)
}

// CreateStockIn records one purchase event.
func (h *Handler) CreateStockIn(w http.ResponseWriter, r *http.Request) {
	var req CreateStockInRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err)
		return
	}

	rec, err := h.System.StockIns.Record(r.Context(), inventory.StockInInput{
		DrugID:      req.DrugID,
		DrugName:    req.DrugName,
		SourceID:    req.SourceID,
		SourceName:  req.SourceName,
		Grams:       req.Grams,
		TotalAmount: req.TotalAmount,
		Remark:      req.Remark,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, rec)
}

// =============================================================================
// STOCK-OUT HANDLERS
// =============================================================================

// ListStockOuts returns release records, newest first, optionally
// filtered by outTime range and out type.
func (h *Handler) ListStockOuts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("start") == "" && q.Get("end") == "" && q.Get("outType") == "" {
		recs, err := h.System.StockOuts.All(r.Context())
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeData(w, http.StatusOK, recs)
		return
	}

	start, end, ok := timeRangeParams(w, q.Get("start"), q.Get("end"))
	if !ok {
		return
	}
	var outType *inventory.OutType
	if raw := q.Get("outType"); raw != "" {
		t := inventory.OutType(raw)
		if !t.Valid() {
			writeFailure(w, http.StatusBadRequest, errors.New("unknown outType "+raw))
			return
		}
		outType = &t
	}

	recs, err := h.System.StockOuts.ByTimeAndType(r.Context(), start, end, outType)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, recs)
}

// CreateStockOut records one standalone release (void, processing loss,
// or manual prescription-type use).
func (h *Handler) CreateStockOut(w http.ResponseWriter, r *http.Request) {
	var req CreateStockOutRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err)
		return
	}

	rec, err := h.System.StockOuts.Release(r.Context(), inventory.ReleaseInput{
		DrugName: req.DrugName,
		OutType:  inventory.OutType(req.OutType),
		Grams:    req.Grams,
		Remark:   req.Remark,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, rec)
}

// EstimateCost previews the FIFO cost of a release without writing.
func (h *Handler) EstimateCost(w http.ResponseWriter, r *http.Request) {
	var req EstimateCostRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err)
		return
	}

	cost, err := h.System.StockOuts.EstimateCost(r.Context(), req.DrugName, req.Grams)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, EstimateCostResponse{DrugName: req.DrugName, Grams: req.Grams, Cost: cost})
}

// =============================================================================
// PRESCRIPTION HANDLERS
// =============================================================================

// ListPrescriptions returns prescriptions created within [start, end];
// with no range it returns everything since the beginning.
func (h *Handler) ListPrescriptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end, ok := timeRangeParams(w, q.Get("start"), q.Get("end"))
	if !ok {
		return
	}

	prescriptions, err := h.System.Prescriptions.ByTimeRange(r.Context(), start, end)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, prescriptions)
}

// SubmitPrescription runs the full dispensing workflow.
func (h *Handler) SubmitPrescription(w http.ResponseWriter, r *http.Request) {
	var req SubmitPrescriptionRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err)
		return
	}

	lines := make([]inventory.SubmitLine, 0, len(req.DrugList))
	for _, line := range req.DrugList {
		lines = append(lines, inventory.SubmitLine{Name: line.Name, Grams: line.Grams})
	}
	diag := inventory.DiagnosisInfo{
		Urine:    req.Diagnosis.Urine,
		Stool:    req.Diagnosis.Stool,
		Sleep:    req.Diagnosis.Sleep,
		Exercise: req.Diagnosis.Exercise,
		Other:    req.Diagnosis.Other,
	}

	prescription, err := h.System.Prescriptions.Submit(r.Context(), lines, diag)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, prescription)
}

// LastPrescription returns the most recent prescription, or a bare
// success when none exist yet.
func (h *Handler) LastPrescription(w http.ResponseWriter, r *http.Request) {
	prescription, err := h.System.Prescriptions.Last(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, prescription)
}

// GetPrescriptionDiagnosisLog returns the observation sheet bound to
// one prescription.
func (h *Handler) GetPrescriptionDiagnosisLog(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}

	log, err := h.System.Diagnosis.ByPrescription(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, log)
}

// LastDiagnosisLog returns the most recent observation sheet, or a
// bare success when none exist yet.
func (h *Handler) LastDiagnosisLog(w http.ResponseWriter, r *http.Request) {
	log, err := h.System.Diagnosis.Last(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, log)
}

// =============================================================================
// STATS HANDLERS
// =============================================================================

// DailyStats returns per-drug usage totals for yesterday or today.
func (h *Handler) DailyStats(w http.ResponseWriter, r *http.Request) {
	period := inventory.Period(r.URL.Query().Get("period"))
	stats, err := h.System.Stats.Daily(r.Context(), period)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

// WarningStats returns the low-stock summary.
func (h *Handler) WarningStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.System.Stats.Warnings(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ExportBackup dumps every collection.
func (h *Handler) ExportBackup(w http.ResponseWriter, r *http.Request) {
	backup, err := h.Backup.DumpAll(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, backup)
}

// ImportBackup restores a previous export; last write wins per id.
func (h *Handler) ImportBackup(w http.ResponseWriter, r *http.Request) {
	var backup docstore.Backup
	if err := json.NewDecoder(r.Body).Decode(&backup); err != nil {
		writeFailure(w, http.StatusBadRequest, err)
		return
	}

	if err := h.Backup.RestoreAll(r.Context(), &backup); err != nil {
		h.writeError(w, err)
		return
	}
	h.Log.Info().Str("exportId", backup.ExportID).Msg("backup restored")
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: "restored"})
}

// ResetDatabase wipes all collections and sequences.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Backup.Reset(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	h.Log.Warn().Msg("database reset")
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: "reset"})
}

// SeedDemo loads the demo dataset into an empty database.
func (h *Handler) SeedDemo(w http.ResponseWriter, r *http.Request) {
	summary, err := LoadDemoData(r.Context(), h.System)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, summary)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Success: true, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, Envelope{Success: false, Message: err.Error()})
}

// writeError maps a domain error to its HTTP status. Client errors keep
// their message verbatim; storage faults are logged and masked.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case inventory.IsNotFound(err):
		writeFailure(w, http.StatusNotFound, err)
	case errors.Is(err, inventory.ErrDuplicate):
		writeFailure(w, http.StatusConflict, err)
	case inventory.IsClientError(err):
		writeFailure(w, http.StatusBadRequest, err)
	default:
		h.Log.Error().Err(err).Msg("request failed")
		writeFailure(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

// int64Param extracts a positive integer URL parameter, writing a 400 on
// failure.
func int64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	var id int64
	for _, c := range raw {
		if c < '0' || c > '9' {
			writeFailure(w, http.StatusBadRequest, errors.New("invalid "+name+": "+raw))
			return 0, false
		}
		id = id*10 + int64(c-'0')
	}
	if raw == "" || id <= 0 {
		writeFailure(w, http.StatusBadRequest, errors.New("invalid "+name+": "+raw))
		return 0, false
	}
	return id, true
}

// timeRangeParams parses optional RFC 3339 start/end query values.
// Missing values widen to the zero time and far future respectively.
func timeRangeParams(w http.ResponseWriter, rawStart, rawEnd string) (time.Time, time.Time, bool) {
	start := time.Time{}
	end := time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

	if rawStart != "" {
		t, err := time.Parse(time.RFC3339, rawStart)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, errors.New("invalid start: use RFC 3339"))
			return start, end, false
		}
		start = t
	}
	if rawEnd != "" {
		t, err := time.Parse(time.RFC3339, rawEnd)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, errors.New("invalid end: use RFC 3339"))
			return start, end, false
		}
		end = t
	}
	return start, end, true
}
