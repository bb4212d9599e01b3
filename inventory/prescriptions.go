/*
prescriptions.go - Prescription workflow orchestrator

PURPOSE:
  Composes costing, persistence, stock release and diagnosis logging into
  the single user-facing "submit prescription" action:

    1. Cost every line via the FIFO engine (no writes yet; first failure
       aborts the whole submission naming the drug)
    2. Persist the prescription shell with a null diagnosis log id
    3. Release stock per line with the prescription-use type
    4. Attach the diagnosis log
    5. Finalize the shell with the log id

COMPENSATION (deliberately best-effort):
  The store gives no cross-operation atomicity, so failures in steps 3-4
  are compensated by deleting the prescription shell only. Stock-outs
  already released for earlier lines are NOT rolled back and remain as
  orphans referencing a deleted prescription. This matches the system
  this workflow replaces; every compensation step and every orphan is
  logged. Do not mistake this for transactional rollback.

SEE ALSO:
  - stockout.go: per-line costing and release
  - diagnosis.go: log attachment with the unique prescription binding
*/
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/herbcabinet/inventory-engine/docstore"
)

// PrescriptionService orchestrates the multi-step submission workflow.
type PrescriptionService struct {
	store     docstore.Store
	stockOuts *StockOutEngine
	diagnosis *DiagnosisLogService
	log       zerolog.Logger
}

func NewPrescriptionService(store docstore.Store, stockOuts *StockOutEngine, diagnosis *DiagnosisLogService, log zerolog.Logger) *PrescriptionService {
	return &PrescriptionService{
		store:     store,
		stockOuts: stockOuts,
		diagnosis: diagnosis,
		log:       log.With().Str("component", "prescriptions").Logger(),
	}
}

// SubmitLine is one requested drug line: name plus grams to dispense.
type SubmitLine struct {
	Name  string
	Grams float64
}

// Submit runs the full prescription workflow and returns the finalized
// prescription.
func (s *PrescriptionService) Submit(ctx context.Context, lines []SubmitLine, diag DiagnosisInfo) (*Prescription, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyDrugList
	}

	// Step 1: cost every line before anything is written.
	totalGrams := decimal.Zero
	totalAmount := decimal.Zero
	costed := make([]PrescriptionLine, 0, len(lines))
	for _, line := range lines {
		cost, err := s.stockOuts.EstimateCost(ctx, line.Name, line.Grams)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", line.Name, err)
		}
		totalGrams = totalGrams.Add(dec(line.Grams))
		totalAmount = totalAmount.Add(dec(cost))
		costed = append(costed, PrescriptionLine{Name: line.Name, Grams: line.Grams, Amount: cost})
	}

	// Step 2: persist the shell with no diagnosis log yet.
	grams, _ := totalGrams.Float64()
	amount, _ := round2d(totalAmount).Float64()
	doc, err := docstore.Encode(Prescription{
		DrugList:    costed,
		TotalGrams:  grams,
		TotalAmount: amount,
	})
	if err != nil {
		return nil, err
	}
	created, err := s.store.Create(ctx, docstore.CollectionPrescriptions, doc)
	if err != nil {
		return nil, fmt.Errorf("create prescription: %w", err)
	}
	var prescription Prescription
	if err := docstore.Decode(created, &prescription); err != nil {
		return nil, err
	}

	// Step 3: release stock per line.
	for _, line := range costed {
		_, err := s.stockOuts.Release(ctx, ReleaseInput{
			DrugName:       line.Name,
			OutType:        OutPrescriptionUse,
			Grams:          line.Grams,
			PrescriptionID: &prescription.ID,
			Remark:         "prescription dispensing",
		})
		if err != nil {
			s.compensate(ctx, prescription.ID, "release failed")
			return nil, fmt.Errorf("release %s: %w", line.Name, err)
		}
	}

	// Step 4: attach the diagnosis log.
	diagLog, err := s.diagnosis.Attach(ctx, diag, prescription.ID)
	if err != nil {
		s.compensate(ctx, prescription.ID, "diagnosis log failed")
		return nil, fmt.Errorf("attach diagnosis log: %w", err)
	}

	// Step 5: finalize the shell with the log id.
	prescription.DiagnosisLogID = &diagLog.ID
	finalDoc, err := docstore.Encode(prescription)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Update(ctx, docstore.CollectionPrescriptions, finalDoc); err != nil {
		return nil, fmt.Errorf("finalize prescription: %w", err)
	}

	s.log.Info().
		Int64("id", prescription.ID).
		Int("lines", len(costed)).
		Float64("totalAmount", prescription.TotalAmount).
		Msg("prescription submitted")
	return &prescription, nil
}

// compensate deletes the prescription shell after a partial failure.
// Stock-outs already released for earlier lines stay behind as orphans;
// the gap is logged, not closed.
func (s *PrescriptionService) compensate(ctx context.Context, prescriptionID int64, cause string) {
	existed, err := s.store.Delete(ctx, docstore.CollectionPrescriptions, prescriptionID)
	event := s.log.Warn().
		Int64("prescriptionId", prescriptionID).
		Str("cause", cause)
	if err != nil {
		event.Err(err).Msg("compensating delete failed; prescription shell may remain")
		return
	}
	event.Bool("shellDeleted", existed).
		Msg("prescription rolled back; earlier stock-outs are not reverted")
}

// Last returns the most recently created prescription, or nil when none
// exist. It seeds the default drug list of the next prescription.
func (s *PrescriptionService) Last(ctx context.Context) (*Prescription, error) {
	docs, err := s.store.GetAll(ctx, docstore.CollectionPrescriptions)
	if err != nil {
		return nil, fmt.Errorf("load prescriptions: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	var latest *Prescription
	var latestAt time.Time
	for _, doc := range docs {
		var p Prescription
		if err := docstore.Decode(doc, &p); err != nil {
			return nil, err
		}
		if latest == nil || p.CreateTime.After(latestAt) {
			cp := p
			latest = &cp
			latestAt = p.CreateTime
		}
	}
	return latest, nil
}

// ByTimeRange returns prescriptions created within [start, end].
func (s *PrescriptionService) ByTimeRange(ctx context.Context, start, end time.Time) ([]Prescription, error) {
	docs, err := s.store.Scan(ctx, docstore.CollectionPrescriptions, func(doc docstore.Document) bool {
		at := docstore.Time(doc, "createTime")
		return !at.Before(start) && !at.After(end)
	})
	if err != nil {
		return nil, fmt.Errorf("load prescriptions: %w", err)
	}
	return docstore.DecodeAll[Prescription](docs)
}

// GetByID returns one prescription.
func (s *PrescriptionService) GetByID(ctx context.Context, id int64) (*Prescription, error) {
	doc, err := s.store.GetByID(ctx, docstore.CollectionPrescriptions, id)
	if docstore.IsNotFound(err) {
		return nil, &NotFoundError{Kind: "prescription", Key: fmt.Sprint(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("get prescription: %w", err)
	}
	var p Prescription
	if err := docstore.Decode(doc, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
