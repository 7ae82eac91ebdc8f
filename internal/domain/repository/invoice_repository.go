package repository

import (
	"context"
	"time"

	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// CandidateQuery criterios de búsqueda por proximidad para conciliación.
type CandidateQuery struct {
	PartyID   string
	Direction entity.InvoiceDirection
	Amount    decimal.Decimal
	Tolerance decimal.Decimal
	From      time.Time
	To        time.Time
}

// InvoiceRepository lectura de facturas abiertas (saldo pendiente > 0, sin devoluciones).
type InvoiceRepository interface {
	FindOpenByNumber(ctx context.Context, number string, direction entity.InvoiceDirection) ([]*entity.Invoice, error)
	FindOpenCandidates(ctx context.Context, q CandidateQuery) ([]*entity.Invoice, error)
}

// DocumentRepository consulta de documentos por id externo (clave de idempotencia).
type DocumentRepository interface {
	// FindByExternalID devuelve el id local y true si ya existe un documento de cualquier variante.
	FindByExternalID(ctx context.Context, externalID string) (string, bool, error)
	// FindPendingPayment devuelve el pago con ese id local si aún no se marcó como conciliado,
	// con Amount reducido a lo que queda sin asignar. nil, nil si no es un pago o ya se concilió.
	FindPendingPayment(ctx context.Context, documentID string) (*entity.Payment, error)
}
