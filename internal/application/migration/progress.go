package migration

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
)

// runState estado vivo de una corrida. Los workers por tipo actualizan su propia entrada.
type runState struct {
	rc        *RunContext
	cancelled atomic.Bool
	cancelFn  context.CancelFunc
	done      chan struct{}
	now       func() time.Time

	mu  sync.Mutex
	run entity.MigrationRun
}

func newRunState(run entity.MigrationRun, rc *RunContext, now func() time.Time) *runState {
	return &runState{run: run, rc: rc, now: now, done: make(chan struct{})}
}

// snapshot copia profunda para lectores concurrentes.
func (s *runState) snapshot() *entity.MigrationRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := s.run
	cp.Types = append([]entity.TypeProgress(nil), s.run.Types...)
	if s.run.CurrentType != nil {
		t := *s.run.CurrentType
		cp.CurrentType = &t
	}
	if s.run.FinishedAt != nil {
		f := *s.run.FinishedAt
		cp.FinishedAt = &f
	}
	return &cp
}

func (s *runState) typeAt(i int) entity.MutationType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run.Types[i].Type
}

func (s *runState) transition(state entity.RunState, t *entity.MutationType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.State = state
	if t != nil {
		cur := *t
		s.run.CurrentType = &cur
	}
	s.run.UpdatedAt = s.now()
}

func (s *runState) setTypeState(i int, state, fetchErr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.Types[i].State = state
	if fetchErr != "" {
		s.run.Types[i].FetchError = fetchErr
	}
	s.run.UpdatedAt = s.now()
}

func (s *runState) pageStarted(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.Types[i].Pages++
	s.run.State = entity.RunProcessingPage
	t := s.run.Types[i].Type
	s.run.CurrentType = &t
	s.run.UpdatedAt = s.now()
}

func (s *runState) count(i int, o *entity.ImportOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.Types[i].Counts.Add(o)
}

func (s *runState) outOfWindow(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.Types[i].OutOfWindow++
}

func (s *runState) finish(state entity.RunState, errMsg string, queueLen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.run.State = state
	s.run.Error = errMsg
	s.run.EnrichmentQueueLength = queueLen
	s.run.FinishedAt = &now
	s.run.UpdatedAt = now
}

func (s *runState) isCancelled(ctx context.Context) bool {
	return s.cancelled.Load() || ctx.Err() != nil
}

// Summary totales de la corrida por estado.
func Summary(run *entity.MigrationRun) entity.OutcomeCounts {
	var total entity.OutcomeCounts
	for _, t := range run.Types {
		total.Created += t.Counts.Created
		total.SkippedDuplicate += t.Counts.SkippedDuplicate
		total.SkippedInvalid += t.Counts.SkippedInvalid
		total.Failed += t.Counts.Failed
		total.NeedsReview += t.Counts.NeedsReview
		total.Validated += t.Counts.Validated
	}
	return total
}
