package migration

import (
	"context"
	"fmt"

	"github.com/jhoicas/ledger-migration-api/internal/domain/repository"
)

// IdempotencyGuard consulta en almacenamiento durable si la mutación ya tiene documento local.
// La unicidad real la garantiza el índice único sobre external_id; el guard evita trabajo inútil.
type IdempotencyGuard struct {
	docs repository.DocumentRepository
}

// NewIdempotencyGuard construye el guard.
func NewIdempotencyGuard(docs repository.DocumentRepository) *IdempotencyGuard {
	return &IdempotencyGuard{docs: docs}
}

// Check devuelve la referencia local existente y true si la mutación ya fue importada.
func (g *IdempotencyGuard) Check(ctx context.Context, externalID string) (string, bool, error) {
	ref, ok, err := g.docs.FindByExternalID(ctx, externalID)
	if err != nil {
		return "", false, fmt.Errorf("idempotency check %s: %w", externalID, err)
	}
	return ref, ok, nil
}
