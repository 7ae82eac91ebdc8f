package scheduler

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/ledger-migration-api/internal/application/migration"
	"github.com/jhoicas/ledger-migration-api/internal/domain"
	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
)

type stubRunner struct {
	starts atomic.Int32
	last   migration.RunParams
	err    error
}

func (r *stubRunner) Start(_ context.Context, p migration.RunParams) (*entity.MigrationRun, error) {
	r.starts.Add(1)
	r.last = p
	if r.err != nil {
		return nil, r.err
	}
	return &entity.MigrationRun{ID: "run-1"}, nil
}
func (r *stubRunner) Cancel() bool                  { return false }
func (r *stubRunner) Current() *entity.MigrationRun { return nil }
func (r *stubRunner) InvalidateAccounts() bool      { return false }

func TestSchedule_ExpresionVaciaNoRegistra(t *testing.T) {
	s := New(&stubRunner{}, zerolog.Nop())
	require.NoError(t, s.Schedule(""))
	assert.Empty(t, s.cron.Entries())
}

func TestSchedule_ExpresionInvalida(t *testing.T) {
	s := New(&stubRunner{}, zerolog.Nop())
	assert.Error(t, s.Schedule("no es cron"))
}

func TestSchedule_Registra(t *testing.T) {
	s := New(&stubRunner{}, zerolog.Nop())
	require.NoError(t, s.Schedule("@daily"))
	assert.Len(t, s.cron.Entries(), 1)
}

func TestTrigger_OmiteSiHayCorridaEnCurso(t *testing.T) {
	r := &stubRunner{err: domain.ErrRunInProgress}
	s := New(r, zerolog.Nop())
	assert.NotPanics(t, s.trigger)
	assert.Equal(t, int32(1), r.starts.Load())
}

func TestTrigger_UsaParametrosPorDefecto(t *testing.T) {
	r := &stubRunner{}
	s := New(r, zerolog.Nop())
	s.trigger()
	assert.Equal(t, int32(1), r.starts.Load())
	assert.Empty(t, r.last.Types)
	assert.False(t, r.last.DryRun)
	assert.True(t, r.last.DateFrom.IsZero())
}
