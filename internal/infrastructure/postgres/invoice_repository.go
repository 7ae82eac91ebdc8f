package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/jhoicas/ledger-migration-api/internal/domain/repository"
)

var (
	_ repository.InvoiceRepository  = (*InvoiceRepo)(nil)
	_ repository.DocumentRepository = (*InvoiceRepo)(nil)
)

// InvoiceRepo lecturas de facturas abiertas y de documentos por id externo.
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

const openInvoiceSelect = `
	SELECT d.id, d.external_id, d.posting_date, d.description, d.party_id, d.party_role, d.created_at,
		i.direction, i.invoice_number, i.grand_total, i.outstanding_amount, i.is_return
	FROM invoices i
	JOIN documents d ON d.id = i.document_id
	WHERE i.outstanding_amount > 0 AND NOT i.is_return`

// FindOpenByNumber facturas abiertas con ese número en la dirección dada.
func (r *InvoiceRepo) FindOpenByNumber(ctx context.Context, number string, direction entity.InvoiceDirection) ([]*entity.Invoice, error) {
	query := openInvoiceSelect + ` AND i.invoice_number = $1 AND i.direction = $2 ORDER BY d.posting_date, d.id`
	return r.list(ctx, query, number, direction)
}

// FindOpenCandidates facturas abiertas del tercero con saldo dentro de la tolerancia y fecha en la ventana.
func (r *InvoiceRepo) FindOpenCandidates(ctx context.Context, q repository.CandidateQuery) ([]*entity.Invoice, error) {
	query := openInvoiceSelect + `
		AND d.party_id = $1 AND i.direction = $2
		AND i.outstanding_amount BETWEEN $3 AND $4
		AND d.posting_date BETWEEN $5 AND $6
		ORDER BY d.posting_date, d.id`
	return r.list(ctx, query,
		q.PartyID, q.Direction, q.Amount.Sub(q.Tolerance), q.Amount.Add(q.Tolerance), q.From, q.To,
	)
}

func (r *InvoiceRepo) list(ctx context.Context, query string, args ...any) ([]*entity.Invoice, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list open invoices: %w", err)
	}
	defer rows.Close()
	var list []*entity.Invoice
	for rows.Next() {
		var (
			inv           entity.Invoice
			partyID, role *string
			number        *string
		)
		inv.Kind = entity.KindInvoice
		if err := rows.Scan(&inv.ID, &inv.ExternalID, &inv.PostingDate, &inv.Description, &partyID, &role, &inv.CreatedAt,
			&inv.Direction, &number, &inv.GrandTotal, &inv.Outstanding, &inv.IsReturn); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		inv.PartyID = derefString(partyID)
		inv.PartyRole = entity.PartyRole(derefString(role))
		inv.InvoiceNumber = derefString(number)
		list = append(list, &inv)
	}
	return list, rows.Err()
}

// FindByExternalID devuelve el id local del documento de cualquier variante con ese id externo.
func (r *InvoiceRepo) FindByExternalID(ctx context.Context, externalID string) (string, bool, error) {
	var id string
	err := r.q.QueryRow(ctx, `SELECT id FROM documents WHERE external_id = $1`, externalID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get document by external id: %w", err)
	}
	return id, true, nil
}

// FindPendingPayment pago aún no marcado como conciliado, con el importe que queda sin asignar.
func (r *InvoiceRepo) FindPendingPayment(ctx context.Context, documentID string) (*entity.Payment, error) {
	query := `
		SELECT d.id, d.external_id, d.posting_date, d.description, d.party_id, d.party_role, d.created_at,
			p.direction, p.is_refund,
			p.amount - COALESCE((SELECT SUM(a.amount) FROM payment_allocations a WHERE a.payment_id = p.document_id), 0)
		FROM payments p
		JOIN documents d ON d.id = p.document_id
		WHERE p.document_id = $1 AND p.reconciled_at IS NULL`
	var (
		pay           entity.Payment
		partyID, role *string
	)
	pay.Kind = entity.KindPayment
	err := r.q.QueryRow(ctx, query, documentID).Scan(
		&pay.ID, &pay.ExternalID, &pay.PostingDate, &pay.Description, &partyID, &role, &pay.CreatedAt,
		&pay.Direction, &pay.IsRefund, &pay.Amount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get pending payment: %w", err)
	}
	pay.PartyID = derefString(partyID)
	pay.PartyRole = entity.PartyRole(derefString(role))
	return &pay, nil
}
