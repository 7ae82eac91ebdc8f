package migration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/ledger-migration-api/internal/application/dto"
	"github.com/jhoicas/ledger-migration-api/internal/domain"
	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/jhoicas/ledger-migration-api/internal/domain/repository"
)

// Runner subconjunto del Coordinator usado por la capa HTTP y el scheduler.
type Runner interface {
	Start(ctx context.Context, params RunParams) (*entity.MigrationRun, error)
	Cancel() bool
	Current() *entity.MigrationRun
	InvalidateAccounts() bool
}

var _ Runner = (*Coordinator)(nil)

// MigrationUseCase casos de uso de operación: lanzar, cancelar y consultar corridas.
type MigrationUseCase struct {
	runner   Runner
	runs     repository.RunRepository
	outcomes repository.OutcomeRepository
	queue    repository.EnrichmentQueue
}

// NewMigrationUseCase construye el caso de uso.
func NewMigrationUseCase(runner Runner, runs repository.RunRepository, outcomes repository.OutcomeRepository, queue repository.EnrichmentQueue) *MigrationUseCase {
	return &MigrationUseCase{runner: runner, runs: runs, outcomes: outcomes, queue: queue}
}

// StartRun valida tipos y rango de fechas y lanza la corrida en segundo plano.
func (uc *MigrationUseCase) StartRun(ctx context.Context, in dto.StartRunRequest) (*dto.RunResponse, error) {
	params := RunParams{
		Types:  make([]entity.MutationType, 0, len(in.Types)),
		DryRun: in.DryRun,
	}
	for _, t := range in.Types {
		mt := entity.MutationType(t)
		if !mt.IsKnown() {
			return nil, fmt.Errorf("%w: tipo de mutación %d desconocido", domain.ErrInvalidInput, t)
		}
		params.Types = append(params.Types, mt)
	}
	var err error
	if params.DateFrom, err = parseDay("date_from", in.DateFrom); err != nil {
		return nil, err
	}
	if params.DateTo, err = parseDay("date_to", in.DateTo); err != nil {
		return nil, err
	}
	if !params.DateFrom.IsZero() && !params.DateTo.IsZero() && params.DateFrom.After(params.DateTo) {
		return nil, fmt.Errorf("%w: date_from posterior a date_to", domain.ErrInvalidInput)
	}
	run, err := uc.runner.Start(ctx, params)
	if err != nil {
		return nil, err
	}
	return ToRunResponse(run), nil
}

func parseDay(field, v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s debe tener formato YYYY-MM-DD", domain.ErrInvalidInput, field)
	}
	return t, nil
}

// CancelRun solicita la cancelación de la corrida activa. ErrNotFound si no hay ninguna.
func (uc *MigrationUseCase) CancelRun() error {
	if !uc.runner.Cancel() {
		return domain.ErrNotFound
	}
	return nil
}

// InvalidateAccounts vacía el memo de cuentas tras corregir mapeos durante una corrida.
func (uc *MigrationUseCase) InvalidateAccounts() error {
	if !uc.runner.InvalidateAccounts() {
		return domain.ErrNotFound
	}
	return nil
}

// CurrentRun devuelve la corrida en memoria o, si no hay, la última persistida.
func (uc *MigrationUseCase) CurrentRun(ctx context.Context) (*dto.RunResponse, error) {
	if run := uc.runner.Current(); run != nil {
		return ToRunResponse(run), nil
	}
	run, err := uc.runs.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, domain.ErrNotFound
	}
	return ToRunResponse(run), nil
}

// GetRun devuelve una corrida persistida por id.
func (uc *MigrationUseCase) GetRun(ctx context.Context, id string) (*dto.RunResponse, error) {
	if cur := uc.runner.Current(); cur != nil && cur.ID == id {
		return ToRunResponse(cur), nil
	}
	run, err := uc.runs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, domain.ErrNotFound
	}
	return ToRunResponse(run), nil
}

// ListOutcomes lista resultados filtrados por corrida y estado.
func (uc *MigrationUseCase) ListOutcomes(ctx context.Context, in dto.OutcomeFilterRequest) (*dto.OutcomeListResponse, error) {
	page := in.Page()
	status := entity.OutcomeStatus(in.Status)
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("%w: estado %q desconocido", domain.ErrInvalidInput, in.Status)
	}
	list, err := uc.outcomes.List(ctx, repository.OutcomeFilter{
		RunID:  in.RunID,
		Status: status,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		return nil, err
	}
	out := &dto.OutcomeListResponse{
		Items: make([]dto.OutcomeResponse, 0, len(list)),
		Page:  dto.NewPageResponse(page, len(list), -1),
	}
	for _, o := range list {
		out.Items = append(out.Items, toOutcomeResponse(o))
	}
	return out, nil
}

// ListEnrichment lista la cola de terceros provisionales.
func (uc *MigrationUseCase) ListEnrichment(ctx context.Context, page dto.PageRequest) (*dto.EnrichmentListResponse, error) {
	page.DefaultPage()
	list, err := uc.queue.List(ctx, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	total, err := uc.queue.Count(ctx)
	if err != nil {
		return nil, err
	}
	out := &dto.EnrichmentListResponse{
		Items: make([]dto.EnrichmentResponse, 0, len(list)),
		Page:  dto.NewPageResponse(page, len(list), total),
	}
	for _, e := range list {
		out.Items = append(out.Items, dto.EnrichmentResponse{
			ID:              e.ID,
			PartyID:         e.PartyID,
			PartyRole:       string(e.PartyRole),
			ExternalPartyID: e.ExternalPartyID,
			ProvisionalName: e.ProvisionalName,
			Reason:          e.Reason,
			Status:          e.Status,
			RetryCount:      e.RetryCount,
			CreatedAt:       e.CreatedAt,
		})
	}
	return out, nil
}

// ToRunResponse convierte la corrida al DTO de respuesta.
func ToRunResponse(run *entity.MigrationRun) *dto.RunResponse {
	out := &dto.RunResponse{
		ID:                    run.ID,
		State:                 string(run.State),
		Types:                 make([]dto.TypeProgressResponse, 0, len(run.Types)),
		Totals:                Summary(run),
		EnrichmentQueueLength: run.EnrichmentQueueLength,
		DryRun:                run.DryRun,
		DateFrom:              formatDay(run.DateFrom),
		DateTo:                formatDay(run.DateTo),
		Error:                 run.Error,
		StartedAt:             run.StartedAt,
		FinishedAt:            run.FinishedAt,
		UpdatedAt:             run.UpdatedAt,
	}
	if run.CurrentType != nil {
		t := int(*run.CurrentType)
		out.CurrentType = &t
	}
	for _, t := range run.Types {
		out.Types = append(out.Types, dto.TypeProgressResponse{
			Type:        int(t.Type),
			Name:        t.Type.String(),
			State:       t.State,
			Pages:       t.Pages,
			Counts:      t.Counts,
			OutOfWindow: t.OutOfWindow,
			FetchError:  t.FetchError,
		})
	}
	return out
}

func formatDay(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}

func toOutcomeResponse(o *entity.ImportOutcome) dto.OutcomeResponse {
	r := dto.OutcomeResponse{
		ID:                 o.ID,
		RunID:              o.RunID,
		ExternalMutationID: o.ExternalMutationID,
		MutationType:       int(o.MutationType),
		Status:             string(o.Status),
		LocalDocumentRef:   o.LocalDocumentRef,
		Diagnostic:         o.Diagnostic,
		NeedsReview:        o.NeedsReview,
		ReviewReason:       o.ReviewReason,
		CreatedAt:          o.CreatedAt,
	}
	if o.Imbalance.Valid {
		s := o.Imbalance.Decimal.StringFixed(2)
		r.Imbalance = &s
	}
	for _, a := range o.AllocatedTo {
		r.AllocatedTo = append(r.AllocatedTo, dto.AllocationResponse{
			InvoiceID:     a.InvoiceID,
			InvoiceNumber: a.InvoiceNumber,
			Amount:        a.Amount.StringFixed(2),
		})
	}
	return r
}
