package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/ledger-migration-api/internal/application/migration"
	"github.com/jhoicas/ledger-migration-api/internal/domain"
	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/jhoicas/ledger-migration-api/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

var _ migration.AccountingService = (*DocumentStore)(nil)

// DocumentStore subsistema contable local: valida y persiste documentos y asignaciones en una transacción.
type DocumentStore struct {
	tx  *TxRunner
	now func() time.Time
}

// NewDocumentStore construye el adaptador.
func NewDocumentStore(tx *TxRunner) *DocumentStore {
	return &DocumentStore{tx: tx, now: time.Now}
}

// CreateDocument persiste cabecera, líneas y la fila de la variante. Devuelve el id local.
func (s *DocumentStore) CreateDocument(ctx context.Context, doc entity.Document) (string, error) {
	if err := ValidateDocument(doc); err != nil {
		return "", err
	}
	h := doc.Header()
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = s.now()
	}

	err := s.tx.Run(ctx, func(tx pgx.Tx) error {
		if err := insertHeader(ctx, tx, h); err != nil {
			return err
		}
		if err := insertLines(ctx, tx, "document_lines", h.ID, h.Lines, true); err != nil {
			return err
		}
		return insertVariant(ctx, tx, doc)
	})
	if err != nil {
		return "", err
	}
	return h.ID, nil
}

// ValidateDocument reglas de integridad que el subsistema exige a cualquier documento.
func ValidateDocument(doc entity.Document) error {
	if doc == nil || doc.Header() == nil {
		return fmt.Errorf("%w: documento vacío", domain.ErrInvalidInput)
	}
	h := doc.Header()
	if strings.TrimSpace(h.ExternalID) == "" {
		return fmt.Errorf("%w: documento sin id externo", domain.ErrInvalidInput)
	}
	if len(h.Lines) == 0 {
		return fmt.Errorf("%w: documento sin líneas", domain.ErrInvalidInput)
	}
	for i, l := range h.Lines {
		if l.AccountID == "" {
			return fmt.Errorf("%w: línea %d sin cuenta", domain.ErrInvalidInput, i+1)
		}
		if l.Debit.IsPositive() && l.Credit.IsPositive() {
			return fmt.Errorf("%w: línea %d con debe y haber", domain.ErrInvalidInput, i+1)
		}
	}
	return ledger.CheckBalance(h.Lines)
}

func insertHeader(ctx context.Context, tx pgx.Tx, h *entity.DocumentHeader) error {
	debit, credit := h.Totals()
	query := `
		INSERT INTO documents (id, external_id, kind, posting_date, description, party_id, party_role, total_debit, total_credit, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := tx.Exec(ctx, query,
		h.ID, h.ExternalID, h.Kind, h.PostingDate, h.Description, nullIfEmpty(h.PartyID), nullIfEmpty(string(h.PartyRole)),
		ledger.Round(debit), ledger.Round(credit), h.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		if isCheckViolation(err) {
			return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func insertLines(ctx context.Context, tx pgx.Tx, table, documentID string, lines []entity.DocumentLine, withParty bool) error {
	if len(lines) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, l := range lines {
		if withParty {
			batch.Queue(`INSERT INTO `+table+` (document_id, line_no, account_id, debit, credit, party_id, remark) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				documentID, i+1, l.AccountID, ledger.Round(l.Debit), ledger.Round(l.Credit), nullIfEmpty(l.PartyID), l.Remark)
			continue
		}
		batch.Queue(`INSERT INTO `+table+` (document_id, line_no, account_id, debit, credit, remark) VALUES ($1, $2, $3, $4, $5, $6)`,
			documentID, i+1, l.AccountID, ledger.Round(l.Debit), ledger.Round(l.Credit), l.Remark)
	}
	if err := sendBatch(ctx, tx, batch); err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func insertVariant(ctx context.Context, tx pgx.Tx, doc entity.Document) error {
	var err error
	switch d := doc.(type) {
	case *entity.Invoice:
		_, err = tx.Exec(ctx, `
			INSERT INTO invoices (document_id, direction, invoice_number, grand_total, outstanding_amount, is_return)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			d.ID, d.Direction, nullIfEmpty(d.InvoiceNumber), ledger.Round(d.GrandTotal), ledger.Round(d.Outstanding), d.IsReturn)
	case *entity.Payment:
		_, err = tx.Exec(ctx, `INSERT INTO payments (document_id, direction, amount, is_refund) VALUES ($1, $2, $3, $4)`,
			d.ID, d.Direction, ledger.Round(d.Amount), d.IsRefund)
	case *entity.MoneyTransfer:
		_, err = tx.Exec(ctx, `INSERT INTO money_transfers (document_id, direction, bank_account_id) VALUES ($1, $2, $3)`,
			d.ID, d.Direction, d.BankAccountID)
	case *entity.OpeningBalance:
		return insertLines(ctx, tx, "opening_balance_exclusions", d.ID, d.ExcludedLines, false)
	case *entity.JournalEntry:
		return nil
	default:
		return fmt.Errorf("%w: variante de documento %T no soportada", domain.ErrInvalidInput, doc)
	}
	if err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		return fmt.Errorf("insert %s: %w", doc.Header().Kind, err)
	}
	return nil
}

// Allocate descuenta el importe del saldo pendiente de la factura y registra la asignación.
// El UPDATE condicionado garantiza que el saldo nunca quede negativo.
func (s *DocumentStore) Allocate(ctx context.Context, alloc *entity.Allocation) (decimal.Decimal, error) {
	if !alloc.Amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: importe de asignación no positivo", domain.ErrInvalidInput)
	}
	if alloc.ID == "" {
		alloc.ID = uuid.New().String()
	}
	if alloc.CreatedAt.IsZero() {
		alloc.CreatedAt = s.now()
	}
	amount := ledger.Round(alloc.Amount)

	var left decimal.Decimal
	err := s.tx.Run(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE invoices SET outstanding_amount = outstanding_amount - $2
			WHERE document_id = $1 AND outstanding_amount >= $2
			RETURNING outstanding_amount`, alloc.InvoiceID, amount).Scan(&left)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: el importe %s excede el saldo pendiente de la factura %s", domain.ErrConflict, amount, alloc.InvoiceID)
			}
			return fmt.Errorf("update outstanding: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO payment_allocations (id, payment_id, invoice_id, invoice_number, amount, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			alloc.ID, alloc.PaymentID, alloc.InvoiceID, nullIfEmpty(alloc.InvoiceNumber), amount, alloc.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert payment allocation: %w", err)
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return left, nil
}

// MarkReconciled registra que la conciliación del pago terminó (con o sin asignaciones).
func (s *DocumentStore) MarkReconciled(ctx context.Context, paymentID string) error {
	var marked bool
	err := s.tx.Run(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE payments SET reconciled_at = $2 WHERE document_id = $1 AND reconciled_at IS NULL`,
			paymentID, s.now())
		if err != nil {
			return fmt.Errorf("mark payment reconciled: %w", err)
		}
		marked = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return err
	}
	if !marked {
		return fmt.Errorf("%w: pago %s inexistente o ya conciliado", domain.ErrNotFound, paymentID)
	}
	return nil
}
