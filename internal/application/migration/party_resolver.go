package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/ledger-migration-api/internal/domain"
	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/jhoicas/ledger-migration-api/internal/domain/ledger"
	"github.com/jhoicas/ledger-migration-api/internal/domain/repository"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// MutationContext datos de la mutación que el resolver usa como respaldo.
type MutationContext struct {
	ExternalMutationID string
	Description        string
}

// PartyResolver busca o crea el tercero local para un id de relación externa.
// Un tercero sin nombre utilizable se crea provisional y se encola para enriquecimiento.
type PartyResolver struct {
	parties  repository.PartyRepository
	queue    repository.EnrichmentQueue
	fetcher  RelationFetcher
	now      func() time.Time
	log      zerolog.Logger
	inflight singleflight.Group

	mu   sync.RWMutex
	memo map[string]*entity.Party
}

// NewPartyResolver construye el resolver con memo vacío.
func NewPartyResolver(parties repository.PartyRepository, queue repository.EnrichmentQueue, fetcher RelationFetcher) *PartyResolver {
	return &PartyResolver{
		parties: parties,
		queue:   queue,
		fetcher: fetcher,
		now:     time.Now,
		log:     log.With().Str("component", "party_resolver").Logger(),
		memo:    make(map[string]*entity.Party),
	}
}

// Resolve devuelve el tercero local. Sin id externo devuelve nil, nil (documento sin tercero).
func (r *PartyResolver) Resolve(ctx context.Context, externalPartyID string, role entity.PartyRole, mc MutationContext) (*entity.Party, error) {
	id := strings.TrimSpace(externalPartyID)
	if id == "" {
		return nil, nil
	}
	key := string(role) + ":" + id

	r.mu.RLock()
	p, ok := r.memo[key]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	v, err, _ := r.inflight.Do(key, func() (interface{}, error) {
		return r.resolve(ctx, id, role, mc)
	})
	if err != nil {
		return nil, err
	}
	p = v.(*entity.Party)

	r.mu.Lock()
	r.memo[key] = p
	r.mu.Unlock()
	return p, nil
}

func (r *PartyResolver) resolve(ctx context.Context, id string, role entity.PartyRole, mc MutationContext) (*entity.Party, error) {
	existing, err := r.parties.FindByExternalID(ctx, id, role)
	if err != nil {
		return nil, fmt.Errorf("find party %s: %w", id, err)
	}
	if existing != nil {
		return existing, nil
	}

	rel, reason, err := r.fetchRelation(ctx, id)
	if err != nil {
		return nil, err
	}

	now := r.now()
	party := &entity.Party{
		ID:              uuid.New().String(),
		Role:            role,
		ExternalPartyID: id,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if rel != nil {
		party.Email = strings.TrimSpace(rel.Email)
		party.Phone = strings.TrimSpace(rel.Phone)
		party.TaxID = strings.TrimSpace(rel.TaxID)
	}
	if name := rel.DisplayName(); name != "" {
		party.Name = name
	} else {
		party.Provisional = true
		party.Name = ledger.ExtractPartyName(mc.Description)
		if party.Name == "" {
			party.Name = ledger.FallbackPartyLabel(id)
		}
		if reason == "" {
			reason = "relación sin nombre utilizable"
		}
	}

	if err := r.parties.Create(ctx, party); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			// otro worker lo creó primero
			again, ferr := r.parties.FindByExternalID(ctx, id, role)
			if ferr != nil {
				return nil, fmt.Errorf("find party %s: %w", id, ferr)
			}
			if again != nil {
				return again, nil
			}
		}
		return nil, fmt.Errorf("create party %s: %w", id, err)
	}

	if party.Provisional {
		entry := &entity.EnrichmentEntry{
			ID:              uuid.New().String(),
			PartyID:         party.ID,
			PartyRole:       role,
			ExternalPartyID: id,
			ProvisionalName: party.Name,
			Reason:          reason,
			Status:          entity.EnrichmentPending,
			CreatedAt:       now,
		}
		if err := r.queue.Append(ctx, entry); err != nil {
			return nil, fmt.Errorf("enqueue enrichment %s: %w", id, err)
		}
		r.log.Info().
			Str("external_party_id", id).
			Str("role", string(role)).
			Str("name", party.Name).
			Str("mutation", mc.ExternalMutationID).
			Msg("tercero provisional creado y encolado")
	}
	return party, nil
}

// fetchRelation consulta la relación externa. Si la API no la tiene o no responde,
// devuelve nil y el motivo; solo la cancelación del contexto es un error.
func (r *PartyResolver) fetchRelation(ctx context.Context, id string) (*entity.Relation, string, error) {
	rel, err := r.fetcher.FetchRelation(ctx, id)
	switch {
	case err == nil:
		return rel, "", nil
	case ctx.Err() != nil:
		return nil, "", ctx.Err()
	case errors.Is(err, domain.ErrNotFound):
		return nil, "relación no encontrada en el ledger externo", nil
	default:
		r.log.Warn().Err(err).Str("external_party_id", id).Msg("relación no disponible, se crea tercero provisional")
		return nil, "relación no disponible: " + err.Error(), nil
	}
}
