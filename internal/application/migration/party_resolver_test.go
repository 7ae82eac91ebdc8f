package migration_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/ledger-migration-api/internal/application/migration"
	"github.com/jhoicas/ledger-migration-api/internal/domain"
	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
)

type relationMock struct{ mock.Mock }

func (m *relationMock) FetchRelation(ctx context.Context, id string) (*entity.Relation, error) {
	args := m.Called(ctx, id)
	rel, _ := args.Get(0).(*entity.Relation)
	return rel, args.Error(1)
}

func newPartyResolver(rel migration.RelationFetcher) (*migration.PartyResolver, *memParties, *memQueue) {
	parties, queue := newMemParties(), &memQueue{}
	return migration.NewPartyResolver(parties, queue, rel), parties, queue
}

func TestPartyResolver_SinIdNoHayTercero(t *testing.T) {
	rel := &relationMock{}
	r, _, _ := newPartyResolver(rel)

	p, err := r.Resolve(context.Background(), " ", entity.RoleCustomer, migration.MutationContext{})
	require.NoError(t, err)
	assert.Nil(t, p)
	rel.AssertNotCalled(t, "FetchRelation", mock.Anything, mock.Anything)
}

func TestPartyResolver_TerceroExistente(t *testing.T) {
	rel := &relationMock{}
	r, parties, queue := newPartyResolver(rel)
	parties.seed(entity.Party{ID: "p-55", Role: entity.RoleCustomer, Name: "Bakkerij Smit", ExternalPartyID: "55"})

	p, err := r.Resolve(context.Background(), "55", entity.RoleCustomer, migration.MutationContext{})
	require.NoError(t, err)
	assert.Equal(t, "p-55", p.ID)
	assert.Zero(t, parties.creates)
	assert.Empty(t, queue.entries)
	rel.AssertNotCalled(t, "FetchRelation", mock.Anything, mock.Anything)
}

func TestPartyResolver_RelacionConNombre(t *testing.T) {
	rel := &relationMock{}
	rel.On("FetchRelation", mock.Anything, "12").
		Return(&entity.Relation{ID: "12", CompanyName: "Drukkerij Van Dam BV", Email: " info@vandam.nl ", TaxID: "NL123"}, nil).
		Once()
	r, parties, queue := newPartyResolver(rel)

	p, err := r.Resolve(context.Background(), "12", entity.RoleSupplier, migration.MutationContext{})
	require.NoError(t, err)
	assert.False(t, p.Provisional)
	assert.Equal(t, "Drukkerij Van Dam BV", p.Name)
	assert.Equal(t, "info@vandam.nl", p.Email)
	assert.Equal(t, entity.RoleSupplier, p.Role)
	assert.Equal(t, 1, parties.creates)
	assert.Empty(t, queue.entries)
	rel.AssertExpectations(t)
}

func TestPartyResolver_ProvisionalUnaSolaEntradaEnCola(t *testing.T) {
	rel := &relationMock{}
	rel.On("FetchRelation", mock.Anything, "77").Return(nil, domain.ErrNotFound).Once()
	r, parties, queue := newPartyResolver(rel)
	ctx := context.Background()
	mc := migration.MutationContext{ExternalMutationID: "m-1", Description: "Betaling van Jan Jansen factuur 2024-001"}

	p, err := r.Resolve(ctx, "77", entity.RoleCustomer, mc)
	require.NoError(t, err)
	assert.True(t, p.Provisional)
	assert.Equal(t, "Jan Jansen", p.Name)

	again, err := r.Resolve(ctx, "77", entity.RoleCustomer, mc)
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)

	assert.Equal(t, 1, parties.creates)
	require.Len(t, queue.entries, 1)
	e := queue.entries[0]
	assert.Equal(t, p.ID, e.PartyID)
	assert.Equal(t, "77", e.ExternalPartyID)
	assert.Equal(t, entity.EnrichmentPending, e.Status)
	assert.Contains(t, e.Reason, "no encontrada")
	rel.AssertExpectations(t)
}

func TestPartyResolver_EtiquetaDeRespaldo(t *testing.T) {
	rel := &relationMock{}
	rel.On("FetchRelation", mock.Anything, "9").Return(&entity.Relation{ID: "9"}, nil)
	r, _, queue := newPartyResolver(rel)

	p, err := r.Resolve(context.Background(), "9", entity.RoleSupplier, migration.MutationContext{Description: "Memoriaal"})
	require.NoError(t, err)
	assert.True(t, p.Provisional)
	assert.Equal(t, "Relation 9", p.Name)
	require.Len(t, queue.entries, 1)
	assert.Equal(t, "relación sin nombre utilizable", queue.entries[0].Reason)
}

func TestPartyResolver_RelacionNoDisponible(t *testing.T) {
	rel := &relationMock{}
	rel.On("FetchRelation", mock.Anything, "5").Return(nil, errors.New("timeout"))
	r, _, queue := newPartyResolver(rel)

	p, err := r.Resolve(context.Background(), "5", entity.RoleCustomer, migration.MutationContext{})
	require.NoError(t, err)
	assert.True(t, p.Provisional)
	require.Len(t, queue.entries, 1)
	assert.Contains(t, queue.entries[0].Reason, "timeout")
}

func TestPartyResolver_ContextoCancelado(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rel := &relationMock{}
	rel.On("FetchRelation", mock.Anything, "5").Return(nil, context.Canceled)
	r, parties, _ := newPartyResolver(rel)

	_, err := r.Resolve(ctx, "5", entity.RoleCustomer, migration.MutationContext{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, parties.creates)
}

func TestPartyResolver_ConcurrenteCreaUnaVez(t *testing.T) {
	rel := &relationMock{}
	rel.On("FetchRelation", mock.Anything, "88").Return(nil, domain.ErrNotFound)
	r, parties, queue := newPartyResolver(rel)

	var wg sync.WaitGroup
	ids := make([]string, 16)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := r.Resolve(context.Background(), "88", entity.RoleCustomer, migration.MutationContext{})
			if err == nil {
				ids[i] = p.ID
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, parties.creates)
	assert.Len(t, queue.entries, 1)
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestPartyResolver_RolesDistintosSonTercerosDistintos(t *testing.T) {
	rel := &relationMock{}
	rel.On("FetchRelation", mock.Anything, "31").Return(&entity.Relation{Name: "Groothandel Noord"}, nil)
	r, parties, _ := newPartyResolver(rel)
	ctx := context.Background()

	c, err := r.Resolve(ctx, "31", entity.RoleCustomer, migration.MutationContext{})
	require.NoError(t, err)
	s, err := r.Resolve(ctx, "31", entity.RoleSupplier, migration.MutationContext{})
	require.NoError(t, err)
	assert.NotEqual(t, c.ID, s.ID)
	assert.Equal(t, 2, parties.creates)
}
