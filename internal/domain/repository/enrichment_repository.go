package repository

import (
	"context"

	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
)

// EnrichmentQueue cola append-only de terceros provisionales.
type EnrichmentQueue interface {
	// Append no duplica entradas pendientes del mismo tercero.
	Append(ctx context.Context, entry *entity.EnrichmentEntry) error
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, limit, offset int) ([]*entity.EnrichmentEntry, error)
}
