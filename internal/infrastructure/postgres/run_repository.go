package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/jhoicas/ledger-migration-api/internal/domain/repository"
)

var _ repository.RunRepository = (*RunRepo)(nil)

// RunRepo persistencia del progreso de corridas; el avance por tipo va en JSONB.
type RunRepo struct {
	q Querier
}

// NewRunRepository construye el adaptador. Pasar pool o tx (Querier).
func NewRunRepository(q Querier) *RunRepo {
	return &RunRepo{q: q}
}

// Save inserta o actualiza la corrida.
func (r *RunRepo) Save(ctx context.Context, run *entity.MigrationRun) error {
	progress, err := json.Marshal(run.Types)
	if err != nil {
		return fmt.Errorf("marshal type progress: %w", err)
	}
	var current *int
	if run.CurrentType != nil {
		t := int(*run.CurrentType)
		current = &t
	}
	query := `
		INSERT INTO migration_runs (id, state, current_type, type_progress, enrichment_queue_length, error, started_at, finished_at, updated_at,
			dry_run, date_from, date_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			current_type = EXCLUDED.current_type,
			type_progress = EXCLUDED.type_progress,
			enrichment_queue_length = EXCLUDED.enrichment_queue_length,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at,
			updated_at = EXCLUDED.updated_at`
	_, err = r.q.Exec(ctx, query,
		run.ID, run.State, current, progress, run.EnrichmentQueueLength, nullIfEmpty(run.Error),
		run.StartedAt, run.FinishedAt, run.UpdatedAt,
		run.DryRun, run.DateFrom, run.DateTo,
	)
	if err != nil {
		return fmt.Errorf("save migration run: %w", err)
	}
	return nil
}

const runColumns = `id, state, current_type, type_progress, enrichment_queue_length, error, started_at, finished_at, updated_at,
	dry_run, date_from, date_to`

// GetByID obtiene una corrida por id.
func (r *RunRepo) GetByID(ctx context.Context, id string) (*entity.MigrationRun, error) {
	return r.scanOne(ctx, `SELECT `+runColumns+` FROM migration_runs WHERE id = $1`, id)
}

// Latest devuelve la corrida iniciada más recientemente.
func (r *RunRepo) Latest(ctx context.Context) (*entity.MigrationRun, error) {
	return r.scanOne(ctx, `SELECT `+runColumns+` FROM migration_runs ORDER BY started_at DESC LIMIT 1`)
}

func (r *RunRepo) scanOne(ctx context.Context, query string, args ...any) (*entity.MigrationRun, error) {
	var (
		run      entity.MigrationRun
		current  *int
		progress []byte
		errMsg   *string
	)
	err := r.q.QueryRow(ctx, query, args...).Scan(
		&run.ID, &run.State, &current, &progress, &run.EnrichmentQueueLength, &errMsg,
		&run.StartedAt, &run.FinishedAt, &run.UpdatedAt,
		&run.DryRun, &run.DateFrom, &run.DateTo,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get migration run: %w", err)
	}
	if current != nil {
		t := entity.MutationType(*current)
		run.CurrentType = &t
	}
	if err := json.Unmarshal(progress, &run.Types); err != nil {
		return nil, fmt.Errorf("unmarshal type progress: %w", err)
	}
	run.Error = derefString(errMsg)
	return &run, nil
}
