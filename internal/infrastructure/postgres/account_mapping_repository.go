package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/jhoicas/ledger-migration-api/internal/domain/repository"
)

var _ repository.AccountMappingRepository = (*AccountMappingRepo)(nil)

// AccountMappingRepo lectura del plan contable local y su mapeo desde cuentas externas.
type AccountMappingRepo struct {
	q Querier
}

// NewAccountMappingRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAccountMappingRepository(q Querier) *AccountMappingRepo {
	return &AccountMappingRepo{q: q}
}

const accountColumns = `a.id, a.code, a.name, a.root_type, a.account_type`

func scanAccount(row pgx.Row, a *entity.Account) error {
	return row.Scan(&a.ID, &a.Code, &a.Name, &a.RootType, &a.AccountType)
}

// GetByExternalID obtiene la cuenta local mapeada a la cuenta externa.
func (r *AccountMappingRepo) GetByExternalID(ctx context.Context, externalLedgerID string) (*entity.AccountMapping, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM ledger_account_mappings m
		JOIN accounts a ON a.id = m.account_id
		WHERE m.external_ledger_id = $1`
	m := entity.AccountMapping{ExternalLedgerID: externalLedgerID}
	if err := scanAccount(r.q.QueryRow(ctx, query, externalLedgerID), &m.Account); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account mapping: %w", err)
	}
	return &m, nil
}

// GetAccountByCode obtiene una cuenta local por código (cuentas configuradas).
func (r *AccountMappingRepo) GetAccountByCode(ctx context.Context, code string) (*entity.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts a WHERE a.code = $1`
	var a entity.Account
	if err := scanAccount(r.q.QueryRow(ctx, query, code), &a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account by code: %w", err)
	}
	return &a, nil
}

// UpsertMapping crea o reemplaza el mapeo de una cuenta externa a una cuenta local por código.
// Devuelve false si la cuenta local no existe.
func (r *AccountMappingRepo) UpsertMapping(ctx context.Context, externalLedgerID, localCode string) (bool, error) {
	query := `
		INSERT INTO ledger_account_mappings (external_ledger_id, account_id, updated_at)
		SELECT $1, id, now() FROM accounts WHERE code = $2
		ON CONFLICT (external_ledger_id) DO UPDATE SET account_id = EXCLUDED.account_id, updated_at = now()`
	tag, err := r.q.Exec(ctx, query, externalLedgerID, localCode)
	if err != nil {
		return false, fmt.Errorf("upsert account mapping: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
