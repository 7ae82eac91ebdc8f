package repository

import (
	"context"

	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
)

// RunRepository persistencia del progreso de corridas de migración.
type RunRepository interface {
	// Save inserta o actualiza la corrida completa.
	Save(ctx context.Context, run *entity.MigrationRun) error
	GetByID(ctx context.Context, id string) (*entity.MigrationRun, error)
	Latest(ctx context.Context) (*entity.MigrationRun, error)
}
