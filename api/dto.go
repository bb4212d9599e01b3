/*
dto.go - Request and response shapes for the HTTP API

PURPOSE:
  All wire-level structures in one place. Request structs carry
  validator tags; validation runs in DecodeJSONBody before any handler
  logic. Responses use the Envelope shape so the frontend can branch on
  a single success flag.

SEE ALSO:
  - validate.go: decoding and validation
  - handlers.go: handlers consuming these shapes
*/
package api

// Envelope is the uniform response wrapper: a success flag, a
// human-readable message, and an optional payload.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// =============================================================================
// REQUESTS
// =============================================================================

// CreateSourceRequest registers a supply source.
type CreateSourceRequest struct {
	Name   string `json:"name" validate:"required"`
	Remark string `json:"remark"`
}

// UpdateSourceRequest replaces a source's remark.
type UpdateSourceRequest struct {
	Remark string `json:"remark"`
}

// CreateDrugRequest registers a drug definition.
type CreateDrugRequest struct {
	Name            string  `json:"name" validate:"required"`
	StorageType     string  `json:"storageType" validate:"required,oneof=sealed refrigerated"`
	MinStock        float64 `json:"minStock" validate:"gte=0"`
	DefaultEstimate float64 `json:"defaultEstimate" validate:"gte=1"`
}

// CreateStockInRequest records a purchase event.
type CreateStockInRequest struct {
	DrugID      int64   `json:"drugId" validate:"required,gt=0"`
	DrugName    string  `json:"drugName" validate:"required"`
	SourceID    int64   `json:"sourceId" validate:"required,gt=0"`
	SourceName  string  `json:"sourceName" validate:"required"`
	Grams       float64 `json:"grams" validate:"required,gt=0"`
	TotalAmount float64 `json:"totalAmount" validate:"required,gt=0"`
	Remark      string  `json:"remark"`
}

// CreateStockOutRequest records a standalone release event.
type CreateStockOutRequest struct {
	DrugName string  `json:"drugName" validate:"required"`
	OutType  string  `json:"outType" validate:"required,oneof=prescription-use void processing-loss"`
	Grams    float64 `json:"grams" validate:"required,gt=0"`
	Remark   string  `json:"remark"`
}

// EstimateCostRequest asks for a FIFO cost without writing anything.
type EstimateCostRequest struct {
	DrugName string  `json:"drugName" validate:"required"`
	Grams    float64 `json:"grams" validate:"required,gt=0"`
}

// PrescriptionLineRequest is one drug line of a prescription.
type PrescriptionLineRequest struct {
	Name  string  `json:"name" validate:"required"`
	Grams float64 `json:"grams" validate:"required,gt=0"`
}

// DiagnosisInfoRequest is the observation sheet captured alongside.
type DiagnosisInfoRequest struct {
	Urine    string `json:"urine"`
	Stool    string `json:"stool"`
	Sleep    string `json:"sleep"`
	Exercise string `json:"exercise"`
	Other    string `json:"other"`
}

// SubmitPrescriptionRequest runs the full dispensing workflow.
type SubmitPrescriptionRequest struct {
	DrugList  []PrescriptionLineRequest `json:"drugList" validate:"required,min=1,dive"`
	Diagnosis DiagnosisInfoRequest      `json:"diagnosis"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// EstimateCostResponse carries the computed FIFO cost.
type EstimateCostResponse struct {
	DrugName string  `json:"drugName"`
	Grams    float64 `json:"grams"`
	Cost     float64 `json:"cost"`
}

// StockResponse carries a drug's replayed current stock.
type StockResponse struct {
	DrugName     string  `json:"drugName"`
	CurrentStock float64 `json:"currentStock"`
}
