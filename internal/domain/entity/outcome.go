package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// OutcomeStatus resultado del procesamiento de una mutación.
type OutcomeStatus string

const (
	OutcomeCreated          OutcomeStatus = "created"
	OutcomeSkippedDuplicate OutcomeStatus = "skipped_duplicate"
	OutcomeSkippedInvalid   OutcomeStatus = "skipped_invalid"
	OutcomeFailed           OutcomeStatus = "failed"
	// OutcomeValidated documento construido y cuadrado en una simulación; no se escribió.
	OutcomeValidated OutcomeStatus = "validated"
)

// IsValid indica si el estado es uno de los conocidos.
func (s OutcomeStatus) IsValid() bool {
	switch s {
	case OutcomeCreated, OutcomeSkippedDuplicate, OutcomeSkippedInvalid, OutcomeFailed, OutcomeValidated:
		return true
	}
	return false
}

// ImportOutcome registro único por mutación procesada. Solo se le anexan asignaciones.
type ImportOutcome struct {
	ID                 string
	RunID              string
	ExternalMutationID string
	MutationType       MutationType
	Status             OutcomeStatus
	LocalDocumentRef   string
	Diagnostic         string
	Imbalance          decimal.NullDecimal
	NeedsReview        bool
	ReviewReason       string
	AllocatedTo        []AllocationRef
	CreatedAt          time.Time
}

// AllocationRef referencia a una asignación pago -> factura.
type AllocationRef struct {
	InvoiceID     string
	InvoiceNumber string
	Amount        decimal.Decimal
}
