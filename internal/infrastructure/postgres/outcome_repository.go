package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/jhoicas/ledger-migration-api/internal/domain/repository"
	"github.com/shopspring/decimal"
)

var _ repository.OutcomeRepository = (*OutcomeRepo)(nil)

// OutcomeRepo almacén append-only de resultados de importación.
type OutcomeRepo struct {
	q Querier
}

// NewOutcomeRepository construye el adaptador. Pasar pool o tx (Querier).
func NewOutcomeRepository(q Querier) *OutcomeRepo {
	return &OutcomeRepo{q: q}
}

// Record inserta el resultado de una mutación.
func (r *OutcomeRepo) Record(ctx context.Context, o *entity.ImportOutcome) error {
	query := `
		INSERT INTO import_outcomes (id, run_id, external_mutation_id, mutation_type, status, local_document_ref,
			diagnostic, imbalance, needs_review, review_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		o.ID, o.RunID, o.ExternalMutationID, int(o.MutationType), o.Status, nullIfEmpty(o.LocalDocumentRef),
		nullIfEmpty(o.Diagnostic), o.Imbalance, o.NeedsReview, nullIfEmpty(o.ReviewReason), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert import outcome: %w", err)
	}
	return r.insertAllocations(ctx, o.ID, o.AllocatedTo)
}

// AppendReconciliation anexa asignaciones y actualiza la marca de revisión.
func (r *OutcomeRepo) AppendReconciliation(ctx context.Context, outcomeID string, refs []entity.AllocationRef, needsReview bool, reason string) error {
	_, err := r.q.Exec(ctx,
		`UPDATE import_outcomes SET needs_review = needs_review OR $2, review_reason = COALESCE($3, review_reason) WHERE id = $1`,
		outcomeID, needsReview, nullIfEmpty(reason),
	)
	if err != nil {
		return fmt.Errorf("update import outcome: %w", err)
	}
	return r.insertAllocations(ctx, outcomeID, refs)
}

func (r *OutcomeRepo) insertAllocations(ctx context.Context, outcomeID string, refs []entity.AllocationRef) error {
	if len(refs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ref := range refs {
		batch.Queue(`INSERT INTO outcome_allocations (outcome_id, invoice_id, invoice_number, amount) VALUES ($1, $2, $3, $4)`,
			outcomeID, ref.InvoiceID, nullIfEmpty(ref.InvoiceNumber), ref.Amount)
	}
	if err := sendBatch(ctx, r.q, batch); err != nil {
		return fmt.Errorf("insert outcome allocations: %w", err)
	}
	return nil
}

// List resultados filtrados, más recientes primero, con sus asignaciones.
func (r *OutcomeRepo) List(ctx context.Context, f repository.OutcomeFilter) ([]*entity.ImportOutcome, error) {
	var (
		where []string
		args  []any
	)
	if f.RunID != "" {
		args = append(args, f.RunID)
		where = append(where, fmt.Sprintf("run_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `
		SELECT id, run_id, external_mutation_id, mutation_type, status, local_document_ref,
			diagnostic, imbalance, needs_review, review_reason, created_at
		FROM import_outcomes`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list import outcomes: %w", err)
	}
	defer rows.Close()

	var (
		list []*entity.ImportOutcome
		ids  []string
		byID = map[string]*entity.ImportOutcome{}
	)
	for rows.Next() {
		var (
			o                 entity.ImportOutcome
			mt                int
			ref, diag, reason *string
		)
		if err := rows.Scan(&o.ID, &o.RunID, &o.ExternalMutationID, &mt, &o.Status, &ref,
			&diag, &o.Imbalance, &o.NeedsReview, &reason, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan import outcome: %w", err)
		}
		o.MutationType = entity.MutationType(mt)
		o.LocalDocumentRef, o.Diagnostic, o.ReviewReason = derefString(ref), derefString(diag), derefString(reason)
		list = append(list, &o)
		ids = append(ids, o.ID)
		byID[o.ID] = &o
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return list, nil
	}

	arows, err := r.q.Query(ctx,
		`SELECT outcome_id, invoice_id, invoice_number, amount FROM outcome_allocations WHERE outcome_id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("list outcome allocations: %w", err)
	}
	defer arows.Close()
	for arows.Next() {
		var (
			outcomeID string
			ref       entity.AllocationRef
			number    *string
			amount    decimal.Decimal
		)
		if err := arows.Scan(&outcomeID, &ref.InvoiceID, &number, &amount); err != nil {
			return nil, fmt.Errorf("scan outcome allocation: %w", err)
		}
		ref.InvoiceNumber, ref.Amount = derefString(number), amount
		if o := byID[outcomeID]; o != nil {
			o.AllocatedTo = append(o.AllocatedTo, ref)
		}
	}
	return list, arows.Err()
}

// sendBatch ejecuta el batch en pool o tx.
func sendBatch(ctx context.Context, q Querier, b *pgx.Batch) error {
	sender, ok := q.(interface {
		SendBatch(context.Context, *pgx.Batch) pgx.BatchResults
	})
	if !ok {
		for _, qq := range b.QueuedQueries {
			if _, err := q.Exec(ctx, qq.SQL, qq.Arguments...); err != nil {
				return err
			}
		}
		return nil
	}
	br := sender.SendBatch(ctx, b)
	for range b.QueuedQueries {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	return br.Close()
}
