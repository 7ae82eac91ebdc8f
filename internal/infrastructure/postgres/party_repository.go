package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/ledger-migration-api/internal/domain"
	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/jhoicas/ledger-migration-api/internal/domain/repository"
)

var _ repository.PartyRepository = (*PartyRepo)(nil)

// PartyRepo implementación de PartyRepository (usable con pool o tx).
type PartyRepo struct {
	q Querier
}

// NewPartyRepository construye el adaptador. Pasar pool o tx (Querier).
func NewPartyRepository(q Querier) *PartyRepo {
	return &PartyRepo{q: q}
}

const partyColumns = `id, role, name, email, phone, tax_id, provisional, external_party_id, created_at, updated_at`

// Create persiste un tercero. ErrDuplicate si ya existe el mapeo (external_party_id, role).
func (r *PartyRepo) Create(ctx context.Context, p *entity.Party) error {
	query := `
		INSERT INTO parties (` + partyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		p.ID, p.Role, p.Name, nullIfEmpty(p.Email), nullIfEmpty(p.Phone), nullIfEmpty(p.TaxID),
		p.Provisional, nullIfEmpty(p.ExternalPartyID), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert party: %w", err)
	}
	return nil
}

// FindByExternalID obtiene el tercero mapeado al id externo con el rol dado.
func (r *PartyRepo) FindByExternalID(ctx context.Context, externalPartyID string, role entity.PartyRole) (*entity.Party, error) {
	return r.scanOne(ctx, `SELECT `+partyColumns+` FROM parties WHERE external_party_id = $1 AND role = $2`, externalPartyID, role)
}

func (r *PartyRepo) scanOne(ctx context.Context, query string, args ...any) (*entity.Party, error) {
	var (
		p                        entity.Party
		email, phone, tax, extID *string
	)
	err := r.q.QueryRow(ctx, query, args...).Scan(
		&p.ID, &p.Role, &p.Name, &email, &phone, &tax, &p.Provisional, &extID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get party: %w", err)
	}
	p.Email, p.Phone, p.TaxID, p.ExternalPartyID = derefString(email), derefString(phone), derefString(tax), derefString(extID)
	return &p, nil
}
