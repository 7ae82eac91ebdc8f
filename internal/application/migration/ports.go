package migration

import (
	"context"

	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// LedgerClient puerto hacia la API del ledger externo.
// Los fallos transitorios agotados se devuelven envolviendo domain.ErrTransient;
// los recursos inexistentes como domain.ErrNotFound.
type LedgerClient interface {
	FetchPage(ctx context.Context, mutationType entity.MutationType, cursor string) (entity.MutationPage, error)
	FetchDetail(ctx context.Context, externalID string) (*entity.Mutation, error)
	RelationFetcher
}

// RelationFetcher subconjunto usado por el PartyResolver.
type RelationFetcher interface {
	FetchRelation(ctx context.Context, externalPartyID string) (*entity.Relation, error)
}

// AccountingService subsistema contable local: única vía para crear documentos.
// CreateDocument devuelve domain.ErrDuplicate si el id externo ya tiene documento y un error
// que envuelve domain.ErrInvalidInput o domain.ErrImbalance si el documento no es válido.
type AccountingService interface {
	CreateDocument(ctx context.Context, doc entity.Document) (string, error)
	// Allocate aplica un pago a una factura y devuelve el saldo pendiente restante.
	// Nunca deja el saldo negativo: devuelve domain.ErrConflict si el importe excede lo pendiente.
	Allocate(ctx context.Context, alloc *entity.Allocation) (decimal.Decimal, error)
	// MarkReconciled cierra la conciliación del pago; hasta entonces una corrida posterior la retoma.
	MarkReconciled(ctx context.Context, paymentID string) error
}

// RunLock candado entre procesos para una sola corrida activa.
// Acquire devuelve domain.ErrRunInProgress si otro proceso lo tiene.
type RunLock interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}
