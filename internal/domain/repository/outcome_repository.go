package repository

import (
	"context"

	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
)

// OutcomeFilter filtro de listado de resultados.
type OutcomeFilter struct {
	RunID  string
	Status entity.OutcomeStatus
	Limit  int
	Offset int
}

// OutcomeRepository almacén append-only de resultados por mutación.
type OutcomeRepository interface {
	Record(ctx context.Context, outcome *entity.ImportOutcome) error
	// AppendReconciliation anexa asignaciones y la marca de revisión manual a un resultado de pago.
	AppendReconciliation(ctx context.Context, outcomeID string, refs []entity.AllocationRef, needsReview bool, reason string) error
	List(ctx context.Context, filter OutcomeFilter) ([]*entity.ImportOutcome, error)
}
