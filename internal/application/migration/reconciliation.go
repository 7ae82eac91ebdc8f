package migration

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/jhoicas/ledger-migration-api/internal/domain/repository"
	"github.com/shopspring/decimal"
)

// ReconcileSettings tolerancias de la búsqueda por proximidad.
type ReconcileSettings struct {
	AmountTolerance decimal.Decimal
	DateWindow      time.Duration
}

// ReconcileResult asignaciones realizadas y marca de revisión manual.
type ReconcileResult struct {
	Allocations []entity.Allocation
	NeedsReview bool
	Reason      string
}

// Refs convierte las asignaciones en referencias para el resultado de importación.
func (r ReconcileResult) Refs() []entity.AllocationRef {
	out := make([]entity.AllocationRef, 0, len(r.Allocations))
	for _, a := range r.Allocations {
		out = append(out, entity.AllocationRef{InvoiceID: a.InvoiceID, InvoiceNumber: a.InvoiceNumber, Amount: a.Amount})
	}
	return out
}

// Reconciler aplica pagos contra facturas abiertas. Nunca elige entre candidatas equivalentes.
type Reconciler struct {
	invoices repository.InvoiceRepository
	books    AccountingService
	settings ReconcileSettings
	now      func() time.Time
}

// NewReconciler construye el motor de conciliación.
func NewReconciler(invoices repository.InvoiceRepository, books AccountingService, settings ReconcileSettings) *Reconciler {
	return &Reconciler{invoices: invoices, books: books, settings: settings, now: time.Now}
}

// Reconcile busca la(s) factura(s) del pago y asigna min(pendiente del pago, pendiente de la factura).
// 1. Con número(s) de factura: cada número debe identificar una sola factura abierta.
// 2. Sin número: una única candidata por tercero, importe ± tolerancia y ventana de fechas.
// Cero o varias candidatas dejan el pago sin asignar y marcado para revisión; los números no
// encontrados también marcan revisión aunque otros sí se hayan asignado.
func (r *Reconciler) Reconcile(ctx context.Context, p *entity.Payment, m *entity.Mutation) (ReconcileResult, error) {
	return r.run(ctx, p, m, true)
}

// Preview resuelve las mismas asignaciones sin llamar a Allocate (simulación).
func (r *Reconciler) Preview(ctx context.Context, p *entity.Payment, m *entity.Mutation) (ReconcileResult, error) {
	return r.run(ctx, p, m, false)
}

func (r *Reconciler) run(ctx context.Context, p *entity.Payment, m *entity.Mutation, apply bool) (ReconcileResult, error) {
	if p.IsRefund || !p.Amount.IsPositive() {
		return ReconcileResult{}, nil
	}
	direction := p.Direction.InvoiceDirectionFor()

	var (
		targets []*entity.Invoice
		missing []string
		reason  string
		err     error
	)
	if numbers := m.InvoiceNumbers(); len(numbers) > 0 {
		targets, missing, reason, err = r.byNumbers(ctx, numbers, direction, p.PartyID)
	} else {
		targets, reason, err = r.byProximity(ctx, p, direction)
	}
	if err != nil {
		return ReconcileResult{}, err
	}
	if len(targets) == 0 {
		return ReconcileResult{NeedsReview: true, Reason: reason}, nil
	}

	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].PostingDate.Before(targets[j].PostingDate)
	})
	res := ReconcileResult{}
	remaining := p.Amount
	for _, inv := range targets {
		if !remaining.IsPositive() {
			break
		}
		amount := decimal.Min(remaining, inv.Outstanding)
		if !amount.IsPositive() {
			continue
		}
		alloc := entity.Allocation{
			ID:            uuid.New().String(),
			PaymentID:     p.ID,
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			Amount:        amount,
			CreatedAt:     r.now(),
		}
		left := inv.Outstanding.Sub(amount)
		if apply {
			left, err = r.books.Allocate(ctx, &alloc)
			if err != nil {
				return res, fmt.Errorf("allocate %s -> %s: %w", p.ExternalID, inv.InvoiceNumber, err)
			}
		}
		inv.Outstanding = left
		res.Allocations = append(res.Allocations, alloc)
		remaining = remaining.Sub(amount)
	}
	switch {
	case len(res.Allocations) == 0:
		res.NeedsReview = true
		res.Reason = "facturas sin saldo pendiente"
	case len(missing) > 0:
		res.NeedsReview = true
		res.Reason = missingReason(missing)
	}
	return res, nil
}

// byNumbers resuelve cada número a una factura abierta. Devuelve las encontradas y los números
// sin factura; un número ambiguo deja todo el pago sin asignar.
func (r *Reconciler) byNumbers(ctx context.Context, numbers []string, direction entity.InvoiceDirection, partyID string) ([]*entity.Invoice, []string, string, error) {
	var (
		targets []*entity.Invoice
		missing []string
	)
	for _, n := range numbers {
		found, err := r.invoices.FindOpenByNumber(ctx, n, direction)
		if err != nil {
			return nil, nil, "", fmt.Errorf("find invoice %s: %w", n, err)
		}
		if len(found) > 1 && partyID != "" {
			found = filterByParty(found, partyID)
		}
		switch len(found) {
		case 0:
			missing = append(missing, n)
		case 1:
			targets = append(targets, found[0])
		default:
			return nil, nil, fmt.Sprintf("factura %s coincide con %d documentos abiertos", n, len(found)), nil
		}
	}
	if len(targets) == 0 {
		return nil, missing, missingReason(missing), nil
	}
	return targets, missing, "", nil
}

func missingReason(numbers []string) string {
	return "factura(s) " + strings.Join(numbers, ", ") + " no encontrada(s) o sin saldo"
}

func (r *Reconciler) byProximity(ctx context.Context, p *entity.Payment, direction entity.InvoiceDirection) ([]*entity.Invoice, string, error) {
	if p.PartyID == "" {
		return nil, "pago sin número de factura ni tercero", nil
	}
	q := repository.CandidateQuery{
		PartyID:   p.PartyID,
		Direction: direction,
		Amount:    p.Amount,
		Tolerance: r.settings.AmountTolerance,
		From:      p.PostingDate.Add(-r.settings.DateWindow),
		To:        p.PostingDate.Add(r.settings.DateWindow),
	}
	found, err := r.invoices.FindOpenCandidates(ctx, q)
	if err != nil {
		return nil, "", fmt.Errorf("find candidates: %w", err)
	}
	switch len(found) {
	case 0:
		return nil, "sin facturas candidatas por importe y fecha", nil
	case 1:
		return found, "", nil
	default:
		return nil, fmt.Sprintf("%d facturas candidatas; asignación ambigua", len(found)), nil
	}
}

func filterByParty(list []*entity.Invoice, partyID string) []*entity.Invoice {
	out := list[:0:0]
	for _, inv := range list {
		if inv.PartyID == partyID {
			out = append(out, inv)
		}
	}
	return out
}
