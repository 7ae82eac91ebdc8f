package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/jhoicas/ledger-migration-api/internal/domain/repository"
)

var _ repository.EnrichmentQueue = (*EnrichmentRepo)(nil)

// EnrichmentRepo cola de enriquecimiento sobre la tabla enrichment_queue.
type EnrichmentRepo struct {
	q Querier
}

// NewEnrichmentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewEnrichmentRepository(q Querier) *EnrichmentRepo {
	return &EnrichmentRepo{q: q}
}

// Append encola el tercero; si ya tiene una entrada pendiente no hace nada.
func (r *EnrichmentRepo) Append(ctx context.Context, e *entity.EnrichmentEntry) error {
	query := `
		INSERT INTO enrichment_queue (id, party_id, party_role, external_party_id, provisional_name, reason, status, retry_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (party_id) WHERE status = 'pending' DO NOTHING`
	status := e.Status
	if status == "" {
		status = entity.EnrichmentPending
	}
	_, err := r.q.Exec(ctx, query,
		e.ID, e.PartyID, e.PartyRole, nullIfEmpty(e.ExternalPartyID), e.ProvisionalName, e.Reason, status, e.RetryCount, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert enrichment entry: %w", err)
	}
	return nil
}

// Count número de entradas pendientes.
func (r *EnrichmentRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM enrichment_queue WHERE status = 'pending'`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count enrichment queue: %w", err)
	}
	return n, nil
}

// List entradas pendientes en orden de llegada.
func (r *EnrichmentRepo) List(ctx context.Context, limit, offset int) ([]*entity.EnrichmentEntry, error) {
	query := `
		SELECT id, party_id, party_role, external_party_id, provisional_name, reason, status, retry_count, created_at
		FROM enrichment_queue WHERE status = 'pending'
		ORDER BY created_at, id LIMIT $1 OFFSET $2`
	rows, err := r.q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list enrichment queue: %w", err)
	}
	defer rows.Close()
	var list []*entity.EnrichmentEntry
	for rows.Next() {
		var (
			e     entity.EnrichmentEntry
			extID *string
		)
		if err := rows.Scan(&e.ID, &e.PartyID, &e.PartyRole, &extID, &e.ProvisionalName, &e.Reason, &e.Status, &e.RetryCount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan enrichment entry: %w", err)
		}
		e.ExternalPartyID = derefString(extID)
		list = append(list, &e)
	}
	return list, rows.Err()
}
