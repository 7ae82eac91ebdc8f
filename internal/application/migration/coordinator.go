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
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Deps dependencias del coordinador.
type Deps struct {
	Client   LedgerClient
	Books    AccountingService
	Docs     repository.DocumentRepository
	Accounts repository.AccountMappingRepository
	Parties  repository.PartyRepository
	Invoices repository.InvoiceRepository
	Outcomes repository.OutcomeRepository
	Queue    repository.EnrichmentQueue
	Runs     repository.RunRepository
	Lock     RunLock // opcional
}

// Options configuración de la corrida.
type Options struct {
	// Types orden de importación; los saldos iniciales siempre van primero.
	Types []entity.MutationType
	// Concurrency > 1 procesa en paralelo los tipos posteriores a los saldos iniciales.
	Concurrency int
	Build       BuildSettings
	Reconcile   ReconcileSettings
	// DryRun, DateFrom y DateTo son los valores por defecto de cada corrida (ver RunParams).
	DryRun   bool
	DateFrom time.Time
	DateTo   time.Time
}

// RunParams parámetros de una corrida concreta. Types vacío usa el orden configurado;
// fechas en cero usan las de Options. DryRun se suma al de Options.
type RunParams struct {
	Types []entity.MutationType
	// DryRun construye, cuadra y concilia en simulación sin escribir documentos ni asignaciones.
	DryRun bool
	// DateFrom y DateTo (inclusivas, por día) filtran todos los tipos salvo los saldos iniciales.
	DateFrom time.Time
	DateTo   time.Time
}

// Coordinator orquesta la migración: tipo por tipo, página por página, mutación por mutación.
// Cada mutación termina en exactamente un ImportOutcome; solo una caída del almacenamiento aborta la corrida.
type Coordinator struct {
	deps       Deps
	opts       Options
	router     *Router
	guard      *IdempotencyGuard
	reconciler *Reconciler
	log        zerolog.Logger
	now        func() time.Time

	mu     sync.Mutex
	active *runState
	last   *runState
}

// NewCoordinator construye el coordinador.
func NewCoordinator(deps Deps, opts Options) *Coordinator {
	return &Coordinator{
		deps:       deps,
		opts:       opts,
		router:     NewRouter(opts.Build),
		guard:      NewIdempotencyGuard(deps.Docs),
		reconciler: NewReconciler(deps.Invoices, deps.Books, opts.Reconcile),
		log:        log.With().Str("component", "migration_coordinator").Logger(),
		now:        time.Now,
	}
}

// Run ejecuta una corrida completa y devuelve el resumen final.
func (c *Coordinator) Run(ctx context.Context, params RunParams) (*entity.MigrationRun, error) {
	rs, runCtx, release, err := c.begin(ctx, params)
	if err != nil {
		return nil, err
	}
	c.execute(runCtx, rs, release)
	return rs.snapshot(), nil
}

// Start lanza la corrida en segundo plano y devuelve la foto inicial.
// La corrida no depende del contexto de la petición; se detiene con Cancel.
func (c *Coordinator) Start(ctx context.Context, params RunParams) (*entity.MigrationRun, error) {
	rs, runCtx, release, err := c.begin(context.WithoutCancel(ctx), params)
	if err != nil {
		return nil, err
	}
	go c.execute(runCtx, rs, release)
	return rs.snapshot(), nil
}

// Cancel marca la corrida activa para detenerse entre mutaciones.
func (c *Coordinator) Cancel() bool {
	c.mu.Lock()
	rs := c.active
	c.mu.Unlock()
	if rs == nil {
		return false
	}
	rs.cancelled.Store(true)
	c.log.Info().Str("run_id", rs.rc.RunID).Msg("cancelación solicitada")
	return true
}

// Wait bloquea hasta que termine la corrida activa, si la hay.
func (c *Coordinator) Wait() {
	c.mu.Lock()
	rs := c.active
	c.mu.Unlock()
	if rs != nil {
		<-rs.done
	}
}

// Current devuelve la foto de la corrida activa o de la última terminada en este proceso.
func (c *Coordinator) Current() *entity.MigrationRun {
	c.mu.Lock()
	rs := c.active
	if rs == nil {
		rs = c.last
	}
	c.mu.Unlock()
	if rs == nil {
		return nil
	}
	return rs.snapshot()
}

// InvalidateAccounts vacía el memo de cuentas de la corrida activa.
func (c *Coordinator) InvalidateAccounts() bool {
	c.mu.Lock()
	rs := c.active
	c.mu.Unlock()
	if rs == nil {
		return false
	}
	rs.rc.Accounts.Invalidate()
	return true
}

// ── Ciclo de vida ─────────────────────────────────────────────────────────────

func (c *Coordinator) begin(ctx context.Context, params RunParams) (*runState, context.Context, func(context.Context) error, error) {
	params = c.withDefaults(params)
	if !params.DateFrom.IsZero() && !params.DateTo.IsZero() && params.DateFrom.After(params.DateTo) {
		return nil, nil, nil, fmt.Errorf("%w: date_from posterior a date_to", domain.ErrInvalidInput)
	}

	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return nil, nil, nil, domain.ErrRunInProgress
	}
	now := c.now()
	run := entity.MigrationRun{
		ID:        uuid.New().String(),
		State:     entity.RunNotStarted,
		DryRun:    params.DryRun,
		DateFrom:  datePtr(params.DateFrom),
		DateTo:    datePtr(params.DateTo),
		StartedAt: now,
		UpdatedAt: now,
	}
	for _, t := range c.order(params.Types) {
		run.Types = append(run.Types, entity.TypeProgress{Type: t, State: entity.TypePending})
	}
	parties, queue := c.deps.Parties, c.deps.Queue
	if params.DryRun {
		parties, queue = dryRunParties{parties}, dryRunQueue{queue}
	}
	rc := &RunContext{
		RunID:    run.ID,
		Accounts: NewAccountResolver(c.deps.Accounts),
		Parties:  NewPartyResolver(parties, queue, c.deps.Client),
		DryRun:   params.DryRun,
		DateFrom: run.DateFrom,
		DateTo:   run.DateTo,
	}
	rs := newRunState(run, rc, c.now)
	runCtx, cancel := context.WithCancel(ctx)
	rs.cancelFn = cancel
	c.active = rs
	c.mu.Unlock()

	abort := func(err error) (*runState, context.Context, func(context.Context) error, error) {
		cancel()
		c.mu.Lock()
		c.active = nil
		c.mu.Unlock()
		return nil, nil, nil, err
	}

	release := func(context.Context) error { return nil }
	if c.deps.Lock != nil {
		rel, err := c.deps.Lock.Acquire(ctx)
		if err != nil {
			return abort(err)
		}
		release = rel
	}
	if err := c.deps.Runs.Save(ctx, rs.snapshot()); err != nil {
		_ = release(ctx)
		return abort(fmt.Errorf("save run: %w", err))
	}
	return rs, runCtx, release, nil
}

func (c *Coordinator) withDefaults(p RunParams) RunParams {
	p.DryRun = p.DryRun || c.opts.DryRun
	if p.DateFrom.IsZero() {
		p.DateFrom = c.opts.DateFrom
	}
	if p.DateTo.IsZero() {
		p.DateTo = c.opts.DateTo
	}
	return p
}

func datePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	d := truncateDay(t)
	return &d
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// inWindow aplica el rango de fechas de la corrida. Los saldos iniciales siempre entran;
// con rango activo, una mutación sin fecha queda fuera.
func inWindow(rc *RunContext, m *entity.Mutation) bool {
	if m.Type == entity.MutationOpeningBalance || (rc.DateFrom == nil && rc.DateTo == nil) {
		return true
	}
	if m.Date.IsZero() {
		return false
	}
	day := truncateDay(m.Date)
	if rc.DateFrom != nil && day.Before(*rc.DateFrom) {
		return false
	}
	if rc.DateTo != nil && day.After(*rc.DateTo) {
		return false
	}
	return true
}

// order normaliza la lista de tipos: sin duplicados y con saldos iniciales primero.
func (c *Coordinator) order(types []entity.MutationType) []entity.MutationType {
	if len(types) == 0 {
		types = c.opts.Types
	}
	if len(types) == 0 {
		types = entity.KnownMutationTypes
	}
	seen := make(map[entity.MutationType]struct{}, len(types))
	out := make([]entity.MutationType, 0, len(types))
	for _, t := range types {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if t == entity.MutationOpeningBalance {
			out = append([]entity.MutationType{t}, out...)
			continue
		}
		out = append(out, t)
	}
	return out
}

func (c *Coordinator) execute(ctx context.Context, rs *runState, release func(context.Context) error) {
	bg := context.WithoutCancel(ctx)
	defer func() {
		rs.cancelFn()
		if err := release(bg); err != nil {
			c.log.Warn().Err(err).Msg("liberar candado de corrida")
		}
		c.mu.Lock()
		c.last = rs
		c.active = nil
		c.mu.Unlock()
		close(rs.done)
	}()

	c.log.Info().
		Str("run_id", rs.rc.RunID).
		Int("types", len(rs.run.Types)).
		Bool("dry_run", rs.rc.DryRun).
		Msg("iniciando migración")
	fatal := c.processTypes(ctx, rs)

	state, msg := entity.RunCompleted, ""
	switch {
	case rs.cancelled.Load():
		state = entity.RunCancelled
	case fatal != nil:
		state, msg = entity.RunFailed, fatal.Error()
	case ctx.Err() != nil:
		state = entity.RunCancelled
	}

	queueLen, err := c.deps.Queue.Count(bg)
	if err != nil {
		c.log.Warn().Err(err).Msg("contar cola de enriquecimiento")
	}
	rs.finish(state, msg, queueLen)
	c.persist(bg, rs)
	c.logSummary(rs.snapshot())
}

func (c *Coordinator) processTypes(ctx context.Context, rs *runState) error {
	n := len(rs.run.Types)
	if n == 0 {
		return nil
	}
	start := 0
	if rs.typeAt(0) == entity.MutationOpeningBalance {
		if err := c.processType(ctx, rs, 0); err != nil {
			return err
		}
		start = 1
	}
	if c.opts.Concurrency <= 1 {
		for i := start; i < n; i++ {
			if err := c.processType(ctx, rs, i); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for i := start; i < n; i++ {
		g.Go(func() error { return c.processType(gctx, rs, i) })
	}
	return g.Wait()
}

// processType recorre todas las páginas de un tipo. Un fallo de lectura aborta solo este tipo;
// el error devuelto es fatal para la corrida.
func (c *Coordinator) processType(ctx context.Context, rs *runState, i int) error {
	t := rs.typeAt(i)
	logger := c.log.With().Str("run_id", rs.rc.RunID).Str("type", t.String()).Logger()

	rs.setTypeState(i, entity.TypeRunning, "")
	rs.transition(entity.RunFetchingType, &t)
	c.persist(ctx, rs)

	abortType := func(err error) error {
		logger.Error().Err(err).Msg("fallo de lectura del ledger; se aborta el tipo")
		rs.setTypeState(i, entity.TypeAborted, err.Error())
		c.persist(ctx, rs)
		return nil
	}
	cancelType := func() error {
		rs.setTypeState(i, entity.TypeCancelled, "")
		return nil
	}

	cursor := ""
	for {
		if rs.isCancelled(ctx) {
			return cancelType()
		}
		page, err := c.deps.Client.FetchPage(ctx, t, cursor)
		if err != nil {
			if rs.isCancelled(ctx) {
				return cancelType()
			}
			return abortType(err)
		}
		if len(page.Items) == 0 {
			break
		}
		rs.pageStarted(i)
		logger.Debug().Int("items", len(page.Items)).Str("cursor", cursor).Msg("procesando página")

		for k := range page.Items {
			if rs.isCancelled(ctx) {
				return cancelType()
			}
			m := page.Items[k]
			if !inWindow(rs.rc, &m) {
				rs.outOfWindow(i)
				continue
			}
			outcome, err := c.processMutation(ctx, rs, &m)
			if err != nil {
				switch {
				case rs.isCancelled(ctx):
					return cancelType()
				case errors.Is(err, domain.ErrTransient):
					return abortType(err)
				default:
					logger.Error().Err(err).Str("mutation", m.ExternalID).Msg("fallo de almacenamiento; se aborta la corrida")
					return fmt.Errorf("tipo %s, mutación %s: %w", t, m.ExternalID, err)
				}
			}
			rs.count(i, outcome)
		}
		c.persist(ctx, rs)

		if page.NextCursor == "" || page.NextCursor == cursor {
			break
		}
		cursor = page.NextCursor
	}

	rs.setTypeState(i, entity.TypeDone, "")
	c.persist(ctx, rs)
	return nil
}

// ── Procesamiento por mutación ────────────────────────────────────────────────

// processMutation guard → detalle → router → builder → cuadre → alta → resultado → conciliación.
// Solo devuelve error ante fallos de almacenamiento, lecturas transitorias agotadas o cancelación.
func (c *Coordinator) processMutation(ctx context.Context, rs *runState, m *entity.Mutation) (*entity.ImportOutcome, error) {
	o := &entity.ImportOutcome{
		ID:                 uuid.New().String(),
		RunID:              rs.rc.RunID,
		ExternalMutationID: m.ExternalID,
		MutationType:       m.Type,
		CreatedAt:          c.now(),
	}
	if strings.TrimSpace(m.ExternalID) == "" {
		return c.record(ctx, o, entity.OutcomeSkippedInvalid, "mutación sin id externo")
	}

	ref, exists, err := c.guard.Check(ctx, m.ExternalID)
	if err != nil {
		return nil, err
	}
	if exists {
		return c.duplicate(ctx, rs, o, m, ref)
	}

	if m.NeedsDetail() {
		detail, err := c.deps.Client.FetchDetail(ctx, m.ExternalID)
		switch {
		case err == nil:
			m = mergeDetail(m, detail)
		case errors.Is(err, domain.ErrNotFound):
			return c.record(ctx, o, entity.OutcomeSkippedInvalid, "detalle de la mutación no encontrado")
		case errors.Is(err, domain.ErrTransient), ctx.Err() != nil:
			return nil, err
		default:
			return c.record(ctx, o, entity.OutcomeFailed, "detalle: "+err.Error())
		}
	}

	doc, err := c.build(ctx, rs.rc, m)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return c.recordError(ctx, o, err)
	}
	if err := ledger.CheckBalance(doc.Header().Lines); err != nil {
		return c.recordError(ctx, o, err)
	}

	if rs.rc.DryRun {
		return c.simulate(ctx, o, doc, m)
	}

	ref, err = c.deps.Books.CreateDocument(ctx, doc)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicate):
			// otra corrida lo escribió entre el guard y el alta
			ref, _, gerr := c.guard.Check(ctx, m.ExternalID)
			if gerr != nil {
				return nil, gerr
			}
			return c.duplicate(ctx, rs, o, m, ref)
		case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrImbalance):
			return c.recordError(ctx, o, err)
		default:
			return nil, fmt.Errorf("create document: %w", err)
		}
	}
	o.LocalDocumentRef = ref
	if _, err := c.record(ctx, o, entity.OutcomeCreated, ""); err != nil {
		return nil, err
	}

	if !m.Type.IsPayment() {
		return o, nil
	}
	if pay, ok := doc.(*entity.Payment); ok {
		if err := c.reconcile(ctx, o, pay, m); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// duplicate registra una mutación que ya tiene documento local. Si es un pago cuya conciliación
// no llegó a cerrarse (corrida abortada entre el alta y la conciliación), se concilia ahora
// por el importe que quedó sin asignar.
func (c *Coordinator) duplicate(ctx context.Context, rs *runState, o *entity.ImportOutcome, m *entity.Mutation, ref string) (*entity.ImportOutcome, error) {
	o.LocalDocumentRef = ref
	var pending *entity.Payment
	if m.Type.IsPayment() && !rs.rc.DryRun && ref != "" {
		p, err := c.deps.Docs.FindPendingPayment(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("find pending payment %s: %w", m.ExternalID, err)
		}
		pending = p
	}
	if _, err := c.record(ctx, o, entity.OutcomeSkippedDuplicate, ""); err != nil {
		return nil, err
	}
	if pending == nil {
		return o, nil
	}

	c.log.Info().
		Str("mutation", m.ExternalID).
		Str("unallocated", pending.Amount.StringFixed(2)).
		Msg("retomando conciliación de pago ya importado")
	if m.NeedsDetail() && strings.TrimSpace(m.InvoiceNumber) == "" {
		detail, err := c.deps.Client.FetchDetail(ctx, m.ExternalID)
		switch {
		case err == nil:
			m = mergeDetail(m, detail)
		case errors.Is(err, domain.ErrTransient), ctx.Err() != nil:
			return nil, err
		}
	}
	if err := c.reconcile(ctx, o, pending, m); err != nil {
		return nil, err
	}
	return o, nil
}

// simulate registra el documento validado sin escribirlo; los pagos se concilian en modo vista previa.
func (c *Coordinator) simulate(ctx context.Context, o *entity.ImportOutcome, doc entity.Document, m *entity.Mutation) (*entity.ImportOutcome, error) {
	if pay, ok := doc.(*entity.Payment); ok && m.Type.IsPayment() {
		res, err := c.reconciler.Preview(ctx, pay, m)
		if err != nil {
			res.NeedsReview = true
			res.Reason = "error de conciliación: " + err.Error()
		}
		o.AllocatedTo = res.Refs()
		o.NeedsReview = res.NeedsReview
		o.ReviewReason = res.Reason
	}
	return c.record(ctx, o, entity.OutcomeValidated, "")
}

// build ejecuta el builder; un panic se convierte en fallo de la mutación.
func (c *Coordinator) build(ctx context.Context, rc *RunContext, m *entity.Mutation) (doc entity.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic en builder %s: %v", m.Type, r)
		}
	}()
	return c.router.Route(m.Type).Build(ctx, rc, m)
}

func (c *Coordinator) reconcile(ctx context.Context, o *entity.ImportOutcome, pay *entity.Payment, m *entity.Mutation) error {
	res, err := c.reconciler.Reconcile(ctx, pay, m)
	if err != nil {
		c.log.Warn().Err(err).Str("mutation", m.ExternalID).Msg("conciliación incompleta")
		res.NeedsReview = true
		res.Reason = "error de conciliación: " + err.Error()
	}
	if len(res.Allocations) > 0 || res.NeedsReview {
		refs := res.Refs()
		if err := c.deps.Outcomes.AppendReconciliation(context.WithoutCancel(ctx), o.ID, refs, res.NeedsReview, res.Reason); err != nil {
			return fmt.Errorf("append reconciliation: %w", err)
		}
		o.AllocatedTo = append(o.AllocatedTo, refs...)
		o.NeedsReview = res.NeedsReview
		o.ReviewReason = res.Reason
	}
	if err := c.deps.Books.MarkReconciled(context.WithoutCancel(ctx), pay.ID); err != nil {
		return fmt.Errorf("mark reconciled: %w", err)
	}
	return nil
}

func (c *Coordinator) record(ctx context.Context, o *entity.ImportOutcome, status entity.OutcomeStatus, diagnostic string) (*entity.ImportOutcome, error) {
	o.Status = status
	o.Diagnostic = diagnostic
	if err := c.deps.Outcomes.Record(context.WithoutCancel(ctx), o); err != nil {
		return nil, fmt.Errorf("record outcome: %w", err)
	}
	return o, nil
}

// recordError clasifica un error de construcción o validación en el resultado correspondiente.
func (c *Coordinator) recordError(ctx context.Context, o *entity.ImportOutcome, err error) (*entity.ImportOutcome, error) {
	status := entity.OutcomeFailed
	var imb *domain.ImbalanceError
	switch {
	case errors.As(err, &imb):
		o.Imbalance = decimal.NullDecimal{Decimal: imb.Amount(), Valid: true}
	case errors.Is(err, domain.ErrInvalidMutation):
		status = entity.OutcomeSkippedInvalid
	}
	c.log.Warn().
		Err(err).
		Str("mutation", o.ExternalMutationID).
		Str("status", string(status)).
		Msg("mutación no importada")
	return c.record(ctx, o, status, err.Error())
}

// mergeDetail completa la mutación del listado con el detalle (líneas y campos de cabecera).
func mergeDetail(m, d *entity.Mutation) *entity.Mutation {
	out := *m
	out.Lines = d.Lines
	out.HasDetail = true
	if out.LedgerID == "" {
		out.LedgerID = d.LedgerID
	}
	if out.ExternalPartyID == "" {
		out.ExternalPartyID = d.ExternalPartyID
	}
	if out.InvoiceNumber == "" {
		out.InvoiceNumber = d.InvoiceNumber
	}
	if out.Description == "" {
		out.Description = d.Description
	}
	if out.Amount.IsZero() {
		out.Amount = d.Amount
	}
	if out.Date.IsZero() {
		out.Date = d.Date
	}
	return &out
}

func (c *Coordinator) persist(ctx context.Context, rs *runState) {
	if err := c.deps.Runs.Save(context.WithoutCancel(ctx), rs.snapshot()); err != nil {
		c.log.Warn().Err(err).Str("run_id", rs.rc.RunID).Msg("guardar progreso de la corrida")
	}
}

func (c *Coordinator) logSummary(run *entity.MigrationRun) {
	for _, t := range run.Types {
		c.log.Info().
			Str("run_id", run.ID).
			Str("type", t.Type.String()).
			Str("state", t.State).
			Int("created", t.Counts.Created).
			Int("skipped_duplicate", t.Counts.SkippedDuplicate).
			Int("skipped_invalid", t.Counts.SkippedInvalid).
			Int("failed", t.Counts.Failed).
			Int("needs_review", t.Counts.NeedsReview).
			Int("validated", t.Counts.Validated).
			Int("out_of_window", t.OutOfWindow).
			Str("fetch_error", t.FetchError).
			Msg("resumen por tipo")
	}
	total := Summary(run)
	c.log.Info().
		Str("run_id", run.ID).
		Str("state", string(run.State)).
		Bool("dry_run", run.DryRun).
		Int("processed", total.Total()).
		Int("failed", total.Failed).
		Int("enrichment_queue", run.EnrichmentQueueLength).
		Str("error", run.Error).
		Msg("migración finalizada")
}
