package entity

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MutationType código de tipo de mutación del ledger externo.
type MutationType int

// Tipos de mutación emitidos por el ledger externo.
const (
	MutationOpeningBalance  MutationType = 0
	MutationPurchaseInvoice MutationType = 1
	MutationSalesInvoice    MutationType = 2
	MutationCustomerPayment MutationType = 3
	MutationSupplierPayment MutationType = 4
	MutationMoneyReceived   MutationType = 5
	MutationMoneyPaid       MutationType = 6
	MutationMemorial        MutationType = 7
)

// KnownMutationTypes lista los códigos conocidos en el orden por defecto de importación.
// Los saldos iniciales van primero y las facturas antes que los pagos.
var KnownMutationTypes = []MutationType{
	MutationOpeningBalance,
	MutationPurchaseInvoice,
	MutationSalesInvoice,
	MutationMemorial,
	MutationCustomerPayment,
	MutationSupplierPayment,
	MutationMoneyReceived,
	MutationMoneyPaid,
}

func (t MutationType) String() string {
	switch t {
	case MutationOpeningBalance:
		return "opening_balance"
	case MutationPurchaseInvoice:
		return "purchase_invoice"
	case MutationSalesInvoice:
		return "sales_invoice"
	case MutationCustomerPayment:
		return "customer_payment"
	case MutationSupplierPayment:
		return "supplier_payment"
	case MutationMoneyReceived:
		return "money_received"
	case MutationMoneyPaid:
		return "money_paid"
	case MutationMemorial:
		return "memorial"
	default:
		return "type_" + strconv.Itoa(int(t))
	}
}

// IsKnown indica si el código corresponde a un tipo emitido por el ledger externo.
func (t MutationType) IsKnown() bool {
	return t >= MutationOpeningBalance && t <= MutationMemorial
}

// IsPayment indica si el tipo genera un pago conciliable contra facturas.
func (t MutationType) IsPayment() bool {
	return t == MutationCustomerPayment || t == MutationSupplierPayment
}

// Mutation transacción leída del ledger externo (solo lectura).
type Mutation struct {
	ExternalID      string
	Type            MutationType
	Date            time.Time
	Amount          decimal.Decimal
	Description     string
	LedgerID        string // cuenta de cabecera: banco, deudores o acreedores
	ExternalPartyID string
	InvoiceNumber   string
	Lines           []MutationLine
	HasDetail       bool // las líneas provienen del endpoint de detalle
}

// MutationLine línea de una mutación con su cuenta externa.
type MutationLine struct {
	LedgerID    string
	Amount      decimal.Decimal
	Description string
}

// NeedsDetail indica si hay que pedir el detalle porque el listado no trajo líneas.
func (m *Mutation) NeedsDetail() bool {
	return !m.HasDetail && len(m.Lines) == 0
}

// InvoiceNumbers separa el campo invoiceNumber (puede venir separado por comas).
func (m *Mutation) InvoiceNumbers() []string {
	if strings.TrimSpace(m.InvoiceNumber) == "" {
		return nil
	}
	parts := strings.Split(m.InvoiceNumber, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// MutationPage página devuelta por el ledger externo. NextCursor vacío = no hay más.
type MutationPage struct {
	Items      []Mutation
	NextCursor string
}
