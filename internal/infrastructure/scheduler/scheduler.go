package scheduler

import (
	"context"
	"errors"

	"github.com/jhoicas/ledger-migration-api/internal/application/migration"
	"github.com/jhoicas/ledger-migration-api/internal/domain"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler lanza corridas de migración según una expresión cron.
type Scheduler struct {
	cron   *cron.Cron
	runner migration.Runner
	log    zerolog.Logger
}

// New crea el scheduler. Las expresiones son de cinco campos o descriptores como "@daily".
func New(runner migration.Runner, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		runner: runner,
		log:    log.With().Str("component", "scheduler").Logger(),
	}
}

// Schedule registra la corrida periódica. Una expresión vacía no registra nada.
func (s *Scheduler) Schedule(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := s.cron.AddFunc(spec, s.trigger); err != nil {
		return err
	}
	s.log.Info().Str("schedule", spec).Msg("migración programada")
	return nil
}

// trigger inicia una corrida con el orden configurado; si ya hay una en curso se omite.
func (s *Scheduler) trigger() {
	run, err := s.runner.Start(context.Background(), migration.RunParams{})
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		s.log.Info().Msg("corrida programada omitida: ya hay una en curso")
	case err != nil:
		s.log.Error().Err(err).Msg("no se pudo iniciar la corrida programada")
	default:
		s.log.Info().Str("run_id", run.ID).Msg("corrida programada iniciada")
	}
}

// Start arranca el scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler iniciado")
}

// Stop detiene el scheduler y espera a que terminen los disparos en curso.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler detenido")
}
