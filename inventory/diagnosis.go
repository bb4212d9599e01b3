/*
diagnosis.go - Diagnosis log manager

PURPOSE:
  Binds one free-form observation sheet to exactly one prescription. The
  prescriptionId index is unique, so a second log for the same
  prescription is rejected at the store.
*/
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/herbcabinet/inventory-engine/docstore"
)

// DiagnosisLogService manages the diagnosisLogs collection.
type DiagnosisLogService struct {
	store docstore.Store
	log   zerolog.Logger
}

func NewDiagnosisLogService(store docstore.Store, log zerolog.Logger) *DiagnosisLogService {
	return &DiagnosisLogService{store: store, log: log.With().Str("component", "diagnosis").Logger()}
}

// Attach creates a diagnosis log bound to an existing prescription.
func (s *DiagnosisLogService) Attach(ctx context.Context, info DiagnosisInfo, prescriptionID int64) (*DiagnosisLog, error) {
	if prescriptionID <= 0 {
		return nil, &ValidationError{Field: "prescriptionId", Reason: "must reference a prescription"}
	}

	if _, err := s.store.GetByID(ctx, docstore.CollectionPrescriptions, prescriptionID); err != nil {
		if docstore.IsNotFound(err) {
			return nil, &NotFoundError{Kind: "prescription", Key: fmt.Sprint(prescriptionID)}
		}
		return nil, fmt.Errorf("check prescription: %w", err)
	}

	doc, err := docstore.Encode(DiagnosisLog{
		DiagnosisInfo:  info,
		PrescriptionID: prescriptionID,
	})
	if err != nil {
		return nil, err
	}
	created, err := s.store.Create(ctx, docstore.CollectionDiagnosisLogs, doc)
	if err != nil {
		if docstore.IsDuplicate(err) {
			return nil, &DuplicateError{Kind: "diagnosis log for prescription", Name: fmt.Sprint(prescriptionID)}
		}
		return nil, fmt.Errorf("create diagnosis log: %w", err)
	}

	var log DiagnosisLog
	if err := docstore.Decode(created, &log); err != nil {
		return nil, err
	}
	return &log, nil
}

// ByPrescription returns the log bound to a prescription.
func (s *DiagnosisLogService) ByPrescription(ctx context.Context, prescriptionID int64) (*DiagnosisLog, error) {
	doc, err := s.store.GetByIndex(ctx, docstore.CollectionDiagnosisLogs, "prescriptionId", prescriptionID)
	if docstore.IsNotFound(err) {
		return nil, &NotFoundError{Kind: "diagnosis log for prescription", Key: fmt.Sprint(prescriptionID)}
	}
	if err != nil {
		return nil, fmt.Errorf("get diagnosis log: %w", err)
	}
	var log DiagnosisLog
	if err := docstore.Decode(doc, &log); err != nil {
		return nil, err
	}
	return &log, nil
}

// Last returns the most recently created log, or nil when none exist.
// The UI uses it to pre-fill the next observation sheet.
func (s *DiagnosisLogService) Last(ctx context.Context) (*DiagnosisLog, error) {
	docs, err := s.store.GetAll(ctx, docstore.CollectionDiagnosisLogs)
	if err != nil {
		return nil, fmt.Errorf("load diagnosis logs: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	var latest *DiagnosisLog
	var latestAt time.Time
	for _, doc := range docs {
		var log DiagnosisLog
		if err := docstore.Decode(doc, &log); err != nil {
			return nil, err
		}
		if latest == nil || log.CreateTime.After(latestAt) {
			l := log
			latest = &l
			latestAt = log.CreateTime
		}
	}
	return latest, nil
}
