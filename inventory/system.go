/*
system.go - Component wiring

PURPOSE:
  Builds the full manager graph over one shared store handle. Every
  collaborator is passed explicitly; there are no package-level
  singletons.
*/
package inventory

import (
	"github.com/rs/zerolog"

	"github.com/herbcabinet/inventory-engine/docstore"
)

// System is the wired inventory core.
type System struct {
	Sources       *SourceRegistry
	Drugs         *DrugRegistry
	StockIns      *StockInLedger
	StockOuts     *StockOutEngine
	Diagnosis     *DiagnosisLogService
	Prescriptions *PrescriptionService
	Stats         *StatsService
}

// NewSystem wires all managers over a single store.
func NewSystem(store docstore.Store, log zerolog.Logger) *System {
	sources := NewSourceRegistry(store, log)
	drugs := NewDrugRegistry(store, log)
	stockIns := NewStockInLedger(store, log)
	stockOuts := NewStockOutEngine(store, stockIns, drugs, log)
	diagnosis := NewDiagnosisLogService(store, log)
	prescriptions := NewPrescriptionService(store, stockOuts, diagnosis, log)
	stats := NewStatsService(prescriptions, drugs)

	return &System{
		Sources:       sources,
		Drugs:         drugs,
		StockIns:      stockIns,
		StockOuts:     stockOuts,
		Diagnosis:     diagnosis,
		Prescriptions: prescriptions,
		Stats:         stats,
	}
}
