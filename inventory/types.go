/*
Package inventory contains the herbal-medicine inventory core: registries
for supply sources and drugs, the stock-in and stock-out ledgers with
first-in-first-out cost allocation, the prescription workflow, diagnosis
logs, and derived statistics.

KEY CONCEPTS IN THIS FILE (types.go):
  - Source/Drug: master data; drugs carry a dynamic usage estimate
  - StockIn/StockOut: the movement ledgers; stock is never stored, it is
    replayed as sum(in) - sum(out)
  - Prescription/DiagnosisLog: one prescription references N stock-outs
    and exactly one diagnosis log
  - StorageType/OutType: closed variants, validated at the boundary

DESIGN PRINCIPLES:
  1. Stateless managers: every operation reads and writes through the
     document store; nothing is cached across operations
  2. Precision: all 2-decimal money math goes through shopspring/decimal
  3. Explicit collaboration: managers receive their collaborators via
     constructors, never through package globals
*/
package inventory

import (
	"time"
)

// =============================================================================
// CLOSED VARIANTS
// =============================================================================

// StorageType describes how a drug must be kept.
type StorageType string

const (
	StorageSealed       StorageType = "sealed"
	StorageRefrigerated StorageType = "refrigerated"
)

// Valid reports whether t is one of the declared storage types.
func (t StorageType) Valid() bool {
	switch t {
	case StorageSealed, StorageRefrigerated:
		return true
	}
	return false
}

// OutType classifies a stock-out event. Only OutPrescriptionUse feeds the
// drug's dynamic usage estimate.
type OutType string

const (
	OutPrescriptionUse OutType = "prescription-use"
	OutVoid            OutType = "void"
	OutProcessingLoss  OutType = "processing-loss"
)

// Valid reports whether t is one of the declared out types.
func (t OutType) Valid() bool {
	switch t {
	case OutPrescriptionUse, OutVoid, OutProcessingLoss:
		return true
	}
	return false
}

// =============================================================================
// ENTITIES
// =============================================================================

// Source is a named supply source. Names are unique after trimming.
type Source struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Remark     string    `json:"remark"`
	CreateTime time.Time `json:"createTime"`
}

// Drug is a drug definition together with its usage accounting.
//
// Invariant: CurrentEstimate == round2(TotalUsedGrams/UseCount) whenever
// UseCount > 0, and CurrentEstimate == DefaultEstimate when UseCount == 0.
type Drug struct {
	ID              int64       `json:"id"`
	Name            string      `json:"name"`
	StorageType     StorageType `json:"storageType"`
	MinStock        float64     `json:"minStock"`        // warning threshold, grams
	DefaultEstimate float64     `json:"defaultEstimate"` // grams per use, seed value
	CurrentEstimate float64     `json:"currentEstimate"` // running average, grams per use
	UseCount        int64       `json:"useCount"`
	TotalUsedGrams  float64     `json:"totalUsedGrams"`
	CreateTime      time.Time   `json:"createTime"`
}

// StockIn records one purchase event. Immutable after creation; the
// drug/source names are denormalized at creation time and never cascaded.
type StockIn struct {
	ID          int64     `json:"id"`
	DrugID      int64     `json:"drugId"`
	DrugName    string    `json:"drugName"`
	SourceID    int64     `json:"sourceId"`
	SourceName  string    `json:"sourceName"`
	Grams       float64   `json:"grams"`
	TotalAmount float64   `json:"totalAmount"`
	UnitPrice   float64   `json:"unitPrice"` // round2(totalAmount/grams)
	InTime      time.Time `json:"inTime"`
	Remark      string    `json:"remark"`
	CreateTime  time.Time `json:"createTime"`
}

// StockOut records one release event with its FIFO-derived cost.
type StockOut struct {
	ID             int64     `json:"id"`
	DrugID         int64     `json:"drugId"`
	DrugName       string    `json:"drugName"`
	OutType        OutType   `json:"outType"`
	Grams          float64   `json:"grams"`
	TotalAmount    float64   `json:"totalAmount"`
	OutTime        time.Time `json:"outTime"`
	PrescriptionID *int64    `json:"prescriptionId"` // set only for prescription-use
	Remark         string    `json:"remark"`
	CreateTime     time.Time `json:"createTime"`
}

// PrescriptionLine is one costed drug line inside a prescription.
type PrescriptionLine struct {
	Name   string  `json:"name"`
	Grams  float64 `json:"grams"`
	Amount float64 `json:"amount"`
}

// Prescription is one dispensing event covering several drugs.
type Prescription struct {
	ID             int64              `json:"id"`
	DrugList       []PrescriptionLine `json:"drugList"`
	TotalGrams     float64            `json:"totalGrams"`
	TotalAmount    float64            `json:"totalAmount"`
	DiagnosisLogID *int64             `json:"diagnosisLogId"` // nil until the log is attached
	CreateTime     time.Time          `json:"createTime"`
}

// DiagnosisInfo is the free-form observation sheet captured with a
// prescription.
type DiagnosisInfo struct {
	Urine    string `json:"urine"`
	Stool    string `json:"stool"`
	Sleep    string `json:"sleep"`
	Exercise string `json:"exercise"`
	Other    string `json:"other"`
}

// DiagnosisLog binds one DiagnosisInfo to exactly one prescription.
type DiagnosisLog struct {
	ID int64 `json:"id"`
	DiagnosisInfo
	PrescriptionID int64     `json:"prescriptionId"` // unique: one log per prescription
	CreateTime     time.Time `json:"createTime"`
}

// =============================================================================
// DERIVED VIEWS
// =============================================================================

// DrugWithStock annotates a drug with its replayed current stock.
type DrugWithStock struct {
	Drug
	CurrentStock float64 `json:"currentStock"`
}

// RankedDrug is a drug annotated for prescription building: stock plus the
// number of uses the stock is expected to cover.
type RankedDrug struct {
	Drug
	CurrentStock  float64 `json:"currentStock"`
	RemainingUses float64 `json:"remainingUses"`
}
