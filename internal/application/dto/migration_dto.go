package dto

import (
	"time"

	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
)

// StartRunRequest cuerpo de POST /api/migration/runs. Types vacío usa el orden configurado.
// DateFrom / DateTo en formato YYYY-MM-DD, inclusivas; no afectan a los saldos iniciales.
type StartRunRequest struct {
	Types    []int  `json:"types"`
	DryRun   bool   `json:"dry_run"`
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
}

// TypeProgressResponse avance de un tipo.
type TypeProgressResponse struct {
	Type        int                  `json:"type"`
	Name        string               `json:"name"`
	State       string               `json:"state"`
	Pages       int                  `json:"pages"`
	Counts      entity.OutcomeCounts `json:"counts"`
	OutOfWindow int                  `json:"out_of_window,omitempty"`
	FetchError  string               `json:"fetch_error,omitempty"`
}

// RunResponse estado de una corrida.
type RunResponse struct {
	ID                    string                 `json:"id"`
	State                 string                 `json:"state"`
	CurrentType           *int                   `json:"current_type,omitempty"`
	Types                 []TypeProgressResponse `json:"types"`
	Totals                entity.OutcomeCounts   `json:"totals"`
	EnrichmentQueueLength int                    `json:"enrichment_queue_length"`
	DryRun                bool                   `json:"dry_run"`
	DateFrom              *string                `json:"date_from,omitempty"`
	DateTo                *string                `json:"date_to,omitempty"`
	Error                 string                 `json:"error,omitempty"`
	StartedAt             time.Time              `json:"started_at"`
	FinishedAt            *time.Time             `json:"finished_at,omitempty"`
	UpdatedAt             time.Time              `json:"updated_at"`
}

// OutcomeFilterRequest filtros de GET /api/migration/outcomes.
type OutcomeFilterRequest struct {
	RunID  string `query:"run_id"`
	Status string `query:"status"`
	Limit  int    `query:"limit"`
	Offset int    `query:"offset"`
}

// Page normaliza la paginación del filtro.
func (r OutcomeFilterRequest) Page() PageRequest {
	p := PageRequest{Limit: r.Limit, Offset: r.Offset}
	p.DefaultPage()
	return p
}

// AllocationResponse asignación pago -> factura.
type AllocationResponse struct {
	InvoiceID     string `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`
	Amount        string `json:"amount"`
}

// OutcomeResponse resultado de importación de una mutación.
type OutcomeResponse struct {
	ID                 string               `json:"id"`
	RunID              string               `json:"run_id"`
	ExternalMutationID string               `json:"external_mutation_id"`
	MutationType       int                  `json:"mutation_type"`
	Status             string               `json:"status"`
	LocalDocumentRef   string               `json:"local_document_ref,omitempty"`
	Diagnostic         string               `json:"diagnostic,omitempty"`
	Imbalance          *string              `json:"imbalance,omitempty"`
	NeedsReview        bool                 `json:"needs_review"`
	ReviewReason       string               `json:"review_reason,omitempty"`
	AllocatedTo        []AllocationResponse `json:"allocated_to,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
}

// OutcomeListResponse página de resultados.
type OutcomeListResponse struct {
	Items []OutcomeResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}

// EnrichmentResponse entrada de la cola de enriquecimiento.
type EnrichmentResponse struct {
	ID              string    `json:"id"`
	PartyID         string    `json:"party_id"`
	PartyRole       string    `json:"party_role"`
	ExternalPartyID string    `json:"external_party_id,omitempty"`
	ProvisionalName string    `json:"provisional_name"`
	Reason          string    `json:"reason"`
	Status          string    `json:"status"`
	RetryCount      int       `json:"retry_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// EnrichmentListResponse página de la cola.
type EnrichmentListResponse struct {
	Items []EnrichmentResponse `json:"items"`
	Page  PageResponse         `json:"page"`
}
