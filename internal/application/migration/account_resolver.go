package migration

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jhoicas/ledger-migration-api/internal/domain"
	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/jhoicas/ledger-migration-api/internal/domain/repository"
)

// AccountResolver traduce cuentas externas a cuentas locales con memo por corrida.
// Nunca sustituye una cuenta por defecto: sin mapeo la mutación falla.
type AccountResolver struct {
	repo repository.AccountMappingRepository

	mu       sync.RWMutex
	byLedger map[string]entity.Account
	byCode   map[string]entity.Account
}

// NewAccountResolver construye el resolver con memo vacío.
func NewAccountResolver(repo repository.AccountMappingRepository) *AccountResolver {
	return &AccountResolver{
		repo:     repo,
		byLedger: make(map[string]entity.Account),
		byCode:   make(map[string]entity.Account),
	}
}

// Resolve devuelve la cuenta local mapeada para el id externo.
func (r *AccountResolver) Resolve(ctx context.Context, externalLedgerID string) (entity.Account, error) {
	id := strings.TrimSpace(externalLedgerID)
	if id == "" {
		return entity.Account{}, fmt.Errorf("%w: línea sin cuenta externa", domain.ErrInvalidMutation)
	}
	r.mu.RLock()
	acct, ok := r.byLedger[id]
	r.mu.RUnlock()
	if ok {
		return acct, nil
	}

	m, err := r.repo.GetByExternalID(ctx, id)
	if err != nil {
		return entity.Account{}, fmt.Errorf("get account mapping %s: %w", id, err)
	}
	if m == nil {
		return entity.Account{}, &domain.MissingAccountMappingError{LedgerID: id}
	}

	r.mu.Lock()
	r.byLedger[id] = m.Account
	r.mu.Unlock()
	return m.Account, nil
}

// ResolveCode devuelve una cuenta local configurada por código (p. ej. cuenta puente).
func (r *AccountResolver) ResolveCode(ctx context.Context, code string) (entity.Account, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return entity.Account{}, &domain.MissingAccountMappingError{LocalCode: "(vacío)"}
	}
	r.mu.RLock()
	acct, ok := r.byCode[code]
	r.mu.RUnlock()
	if ok {
		return acct, nil
	}

	a, err := r.repo.GetAccountByCode(ctx, code)
	if err != nil {
		return entity.Account{}, fmt.Errorf("get account %s: %w", code, err)
	}
	if a == nil {
		return entity.Account{}, &domain.MissingAccountMappingError{LocalCode: code}
	}

	r.mu.Lock()
	r.byCode[code] = *a
	r.mu.Unlock()
	return *a, nil
}

// Invalidate vacía el memo tras un cambio explícito del plan de cuentas.
func (r *AccountResolver) Invalidate() {
	r.mu.Lock()
	r.byLedger = make(map[string]entity.Account)
	r.byCode = make(map[string]entity.Account)
	r.mu.Unlock()
}
