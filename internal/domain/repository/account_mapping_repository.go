package repository

import (
	"context"

	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
)

// AccountMappingRepository lectura del mapeo cuenta externa -> cuenta local.
// Las funciones devuelven nil, nil si no existe el registro.
type AccountMappingRepository interface {
	GetByExternalID(ctx context.Context, externalLedgerID string) (*entity.AccountMapping, error)
	GetAccountByCode(ctx context.Context, code string) (*entity.Account, error)
}
