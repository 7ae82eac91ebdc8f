package repository

import (
	"context"

	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
)

// PartyRepository puerto de persistencia de terceros y su mapeo (external_party_id, role).
type PartyRepository interface {
	// Create devuelve domain.ErrDuplicate si ya existe el mapeo para ese id externo y rol.
	Create(ctx context.Context, party *entity.Party) error
	// FindByExternalID devuelve nil, nil si no hay mapeo.
	FindByExternalID(ctx context.Context, externalPartyID string, role entity.PartyRole) (*entity.Party, error)
}
