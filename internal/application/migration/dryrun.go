package migration

import (
	"context"

	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/jhoicas/ledger-migration-api/internal/domain/repository"
)

// Adaptadores de solo lectura para las corridas de simulación: leen del almacenamiento real
// pero descartan las escrituras de terceros y de la cola de enriquecimiento.

type dryRunParties struct {
	repository.PartyRepository
}

func (dryRunParties) Create(context.Context, *entity.Party) error { return nil }

type dryRunQueue struct {
	repository.EnrichmentQueue
}

func (dryRunQueue) Append(context.Context, *entity.EnrichmentEntry) error { return nil }
