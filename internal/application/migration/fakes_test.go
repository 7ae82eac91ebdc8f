package migration_test

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/ledger-migration-api/internal/application/migration"
	"github.com/jhoicas/ledger-migration-api/internal/domain"
	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/jhoicas/ledger-migration-api/internal/domain/ledger"
	"github.com/jhoicas/ledger-migration-api/internal/domain/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// Plan de cuentas de prueba
// ──────────────────────────────────────────────────────────────────────────────

var (
	acctBank       = entity.Account{ID: "acc-bank", Code: "1000", Name: "Bank", RootType: entity.RootAsset, AccountType: entity.AccountBank}
	acctReceivable = entity.Account{ID: "acc-rec", Code: "1300", Name: "Debiteuren", RootType: entity.RootAsset, AccountType: entity.AccountReceivable}
	acctPayable    = entity.Account{ID: "acc-pay", Code: "1600", Name: "Crediteuren", RootType: entity.RootLiability, AccountType: entity.AccountPayable}
	acctStock      = entity.Account{ID: "acc-stock", Code: "3000", Name: "Voorraad", RootType: entity.RootAsset, AccountType: entity.AccountStock}
	acctEquity     = entity.Account{ID: "acc-eq", Code: "0500", Name: "Eigen vermogen", RootType: entity.RootEquity}
	acctIncome     = entity.Account{ID: "acc-inc", Code: "8000", Name: "Omzet", RootType: entity.RootIncome}
	acctExpense    = entity.Account{ID: "acc-exp", Code: "4000", Name: "Kosten", RootType: entity.RootExpense}
	acctBridge     = entity.Account{ID: "acc-bridge", Code: "1390", Name: "Tussenrekening", RootType: entity.RootAsset}
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func line(ledgerID, amount string) entity.MutationLine {
	return entity.MutationLine{LedgerID: ledgerID, Amount: dec(amount)}
}

// ──────────────────────────────────────────────────────────────────────────────
// Mapeo de cuentas
// ──────────────────────────────────────────────────────────────────────────────

type memAccounts struct {
	mu       sync.Mutex
	byLedger map[string]entity.Account
	calls    int
	err      error
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byLedger: map[string]entity.Account{
		"1000": acctBank,
		"1300": acctReceivable,
		"1600": acctPayable,
		"3000": acctStock,
		"0500": acctEquity,
		"8000": acctIncome,
		"4000": acctExpense,
	}}
}

func (m *memAccounts) GetByExternalID(_ context.Context, id string) (*entity.AccountMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	a, ok := m.byLedger[id]
	if !ok {
		return nil, nil
	}
	return &entity.AccountMapping{ExternalLedgerID: id, Account: a}, nil
}

func (m *memAccounts) GetAccountByCode(_ context.Context, code string) (*entity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for _, a := range []entity.Account{acctBank, acctReceivable, acctPayable, acctStock, acctEquity, acctIncome, acctExpense, acctBridge} {
		if a.Code == code {
			return &a, nil
		}
	}
	return nil, nil
}

func (m *memAccounts) set(id string, a entity.Account) {
	m.mu.Lock()
	m.byLedger[id] = a
	m.mu.Unlock()
}

func (m *memAccounts) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// ──────────────────────────────────────────────────────────────────────────────
// Terceros y cola de enriquecimiento
// ──────────────────────────────────────────────────────────────────────────────

type memParties struct {
	mu      sync.Mutex
	byKey   map[string]*entity.Party
	creates int
}

func newMemParties() *memParties { return &memParties{byKey: map[string]*entity.Party{}} }

func partyKey(ext string, role entity.PartyRole) string { return string(role) + ":" + ext }

func (m *memParties) Create(_ context.Context, p *entity.Party) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := partyKey(p.ExternalPartyID, p.Role)
	if _, ok := m.byKey[k]; ok {
		return domain.ErrDuplicate
	}
	cp := *p
	m.byKey[k] = &cp
	m.creates++
	return nil
}

func (m *memParties) FindByExternalID(_ context.Context, ext string, role entity.PartyRole) (*entity.Party, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byKey[partyKey(ext, role)]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memParties) seed(p entity.Party) {
	m.mu.Lock()
	m.byKey[partyKey(p.ExternalPartyID, p.Role)] = &p
	m.mu.Unlock()
}

type memQueue struct {
	mu      sync.Mutex
	entries []*entity.EnrichmentEntry
}

func (q *memQueue) Append(_ context.Context, e *entity.EnrichmentEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, x := range q.entries {
		if x.PartyID == e.PartyID && x.Status == entity.EnrichmentPending {
			return nil
		}
	}
	q.entries = append(q.entries, e)
	return nil
}

func (q *memQueue) Count(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries), nil
}

func (q *memQueue) List(_ context.Context, limit, offset int) ([]*entity.EnrichmentEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if offset >= len(q.entries) {
		return nil, nil
	}
	end := offset + limit
	if end > len(q.entries) {
		end = len(q.entries)
	}
	return q.entries[offset:end], nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Subsistema contable en memoria: documentos, facturas y asignaciones
// ──────────────────────────────────────────────────────────────────────────────

type memBooks struct {
	mu         sync.Mutex
	docs       map[string]entity.Document // por id externo
	invoices   []*entity.Invoice
	allocs     []entity.Allocation
	reconciled map[string]bool // por id de documento de pago
	failWith   error
}

func newMemBooks() *memBooks {
	return &memBooks{docs: map[string]entity.Document{}, reconciled: map[string]bool{}}
}

var (
	_ migration.AccountingService   = (*memBooks)(nil)
	_ repository.InvoiceRepository  = (*memBooks)(nil)
	_ repository.DocumentRepository = (*memBooks)(nil)
)

func (b *memBooks) CreateDocument(_ context.Context, doc entity.Document) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failWith != nil {
		return "", b.failWith
	}
	h := doc.Header()
	if err := ledger.CheckBalance(h.Lines); err != nil {
		return "", err
	}
	if _, ok := b.docs[h.ExternalID]; ok {
		return "", domain.ErrDuplicate
	}
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	b.docs[h.ExternalID] = doc
	if inv, ok := doc.(*entity.Invoice); ok {
		cp := *inv
		b.invoices = append(b.invoices, &cp)
	}
	return h.ID, nil
}

func (b *memBooks) Allocate(_ context.Context, a *entity.Allocation) (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, inv := range b.invoices {
		if inv.ID != a.InvoiceID {
			continue
		}
		if inv.Outstanding.LessThan(a.Amount) {
			return decimal.Zero, domain.ErrConflict
		}
		inv.Outstanding = inv.Outstanding.Sub(a.Amount)
		b.allocs = append(b.allocs, *a)
		return inv.Outstanding, nil
	}
	return decimal.Zero, domain.ErrNotFound
}

func (b *memBooks) FindByExternalID(_ context.Context, ext string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.docs[ext]
	if !ok {
		return "", false, nil
	}
	return d.Header().ID, true, nil
}

func (b *memBooks) MarkReconciled(_ context.Context, paymentID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reconciled[paymentID] || b.paymentByID(paymentID) == nil {
		return domain.ErrNotFound
	}
	b.reconciled[paymentID] = true
	return nil
}

func (b *memBooks) FindPendingPayment(_ context.Context, documentID string) (*entity.Payment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pay := b.paymentByID(documentID)
	if pay == nil || b.reconciled[documentID] {
		return nil, nil
	}
	cp := *pay
	for _, a := range b.allocs {
		if a.PaymentID == documentID {
			cp.Amount = cp.Amount.Sub(a.Amount)
		}
	}
	return &cp, nil
}

func (b *memBooks) paymentByID(id string) *entity.Payment {
	for _, d := range b.docs {
		if p, ok := d.(*entity.Payment); ok && p.ID == id {
			return p
		}
	}
	return nil
}

func (b *memBooks) isReconciled(paymentID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reconciled[paymentID]
}

func (b *memBooks) reconciledCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.reconciled)
}

func (b *memBooks) allocationCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.allocs)
}

func (b *memBooks) FindOpenByNumber(_ context.Context, number string, dir entity.InvoiceDirection) ([]*entity.Invoice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*entity.Invoice
	for _, inv := range b.invoices {
		if inv.InvoiceNumber == number && inv.Direction == dir && inv.Outstanding.IsPositive() && !inv.IsReturn {
			cp := *inv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (b *memBooks) FindOpenCandidates(_ context.Context, q repository.CandidateQuery) ([]*entity.Invoice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*entity.Invoice
	for _, inv := range b.invoices {
		if inv.PartyID != q.PartyID || inv.Direction != q.Direction || !inv.Outstanding.IsPositive() || inv.IsReturn {
			continue
		}
		if inv.Outstanding.Sub(q.Amount).Abs().GreaterThan(q.Tolerance) {
			continue
		}
		if inv.PostingDate.Before(q.From) || inv.PostingDate.After(q.To) {
			continue
		}
		cp := *inv
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PostingDate.Before(out[j].PostingDate) })
	return out, nil
}

// seedInvoice registra una factura abierta ya importada.
func (b *memBooks) seedInvoice(number, partyID string, dir entity.InvoiceDirection, outstanding string, date time.Time) *entity.Invoice {
	b.mu.Lock()
	defer b.mu.Unlock()
	inv := &entity.Invoice{
		DocumentHeader: entity.DocumentHeader{
			ID:          uuid.New().String(),
			ExternalID:  "seed-" + number + "-" + strconv.Itoa(len(b.invoices)),
			Kind:        entity.KindInvoice,
			PostingDate: date,
			PartyID:     partyID,
		},
		Direction:     dir,
		InvoiceNumber: number,
		GrandTotal:    dec(outstanding),
		Outstanding:   dec(outstanding),
	}
	b.invoices = append(b.invoices, inv)
	b.docs[inv.ExternalID] = inv
	return inv
}

func (b *memBooks) outstanding(invoiceID string) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, inv := range b.invoices {
		if inv.ID == invoiceID {
			return inv.Outstanding
		}
	}
	return decimal.Zero
}

func (b *memBooks) doc(externalID string) entity.Document {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.docs[externalID]
}

func (b *memBooks) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.docs)
}

// ──────────────────────────────────────────────────────────────────────────────
// Resultados y corridas
// ──────────────────────────────────────────────────────────────────────────────

type memOutcomes struct {
	mu    sync.Mutex
	items []*entity.ImportOutcome
	err   error
}

func (m *memOutcomes) Record(_ context.Context, o *entity.ImportOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	cp := *o
	m.items = append(m.items, &cp)
	return nil
}

func (m *memOutcomes) AppendReconciliation(_ context.Context, id string, refs []entity.AllocationRef, review bool, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.items {
		if o.ID == id {
			o.AllocatedTo = append(o.AllocatedTo, refs...)
			o.NeedsReview = review
			o.ReviewReason = reason
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memOutcomes) List(_ context.Context, f repository.OutcomeFilter) ([]*entity.ImportOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.ImportOutcome
	for _, o := range m.items {
		if f.RunID != "" && o.RunID != f.RunID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// byMutation último resultado registrado para la mutación.
func (m *memOutcomes) byMutation(ext string) *entity.ImportOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.items) - 1; i >= 0; i-- {
		if m.items[i].ExternalMutationID == ext {
			return m.items[i]
		}
	}
	return nil
}

func (m *memOutcomes) forRun(runID string) []*entity.ImportOutcome {
	out, _ := m.List(context.Background(), repository.OutcomeFilter{RunID: runID})
	return out
}

type memRuns struct {
	mu   sync.Mutex
	runs map[string]entity.MigrationRun
	last string
}

func newMemRuns() *memRuns { return &memRuns{runs: map[string]entity.MigrationRun{}} }

func (m *memRuns) Save(_ context.Context, r *entity.MigrationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[r.ID] = *r
	m.last = r.ID
	return nil
}

func (m *memRuns) GetByID(_ context.Context, id string) (*entity.MigrationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memRuns) Latest(ctx context.Context) (*entity.MigrationRun, error) {
	return m.GetByID(ctx, m.last)
}

// ──────────────────────────────────────────────────────────────────────────────
// Ledger externo en memoria
// ──────────────────────────────────────────────────────────────────────────────

type fakeLedger struct {
	mu        sync.Mutex
	pageSize  int
	byType    map[entity.MutationType][]entity.Mutation
	fetchErr  map[entity.MutationType]error
	details   map[string]*entity.Mutation
	relations map[string]*entity.Relation
	fetched   []entity.MutationType
	// onPage se invoca tras servir cada página (para cancelar a mitad de corrida).
	onPage func(t entity.MutationType, cursor string)
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		pageSize:  100,
		byType:    map[entity.MutationType][]entity.Mutation{},
		fetchErr:  map[entity.MutationType]error{},
		details:   map[string]*entity.Mutation{},
		relations: map[string]*entity.Relation{},
	}
}

func (f *fakeLedger) add(ms ...entity.Mutation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range ms {
		f.byType[m.Type] = append(f.byType[m.Type], m)
	}
}

func (f *fakeLedger) FetchPage(_ context.Context, t entity.MutationType, cursor string) (entity.MutationPage, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, t)
	if err := f.fetchErr[t]; err != nil {
		f.mu.Unlock()
		return entity.MutationPage{}, err
	}
	all := f.byType[t]
	offset := 0
	if cursor != "" {
		offset, _ = strconv.Atoi(cursor)
	}
	end := offset + f.pageSize
	if end > len(all) {
		end = len(all)
	}
	page := entity.MutationPage{}
	if offset < len(all) {
		page.Items = append(page.Items, all[offset:end]...)
	}
	if end < len(all) {
		page.NextCursor = strconv.Itoa(end)
	}
	hook := f.onPage
	f.mu.Unlock()
	if hook != nil {
		hook(t, cursor)
	}
	return page, nil
}

func (f *fakeLedger) FetchDetail(_ context.Context, id string) (*entity.Mutation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.details[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	cp.HasDetail = true
	return &cp, nil
}

func (f *fakeLedger) FetchRelation(_ context.Context, id string) (*entity.Relation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.relations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

func (f *fakeLedger) fetchedTypes() []entity.MutationType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.MutationType(nil), f.fetched...)
}

var errStorageDown = errors.New("conexión rechazada")
