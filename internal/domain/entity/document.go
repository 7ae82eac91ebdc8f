package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentKind variante de documento contable local.
type DocumentKind string

const (
	KindInvoice        DocumentKind = "invoice"
	KindPayment        DocumentKind = "payment"
	KindMoneyTransfer  DocumentKind = "money_transfer"
	KindJournalEntry   DocumentKind = "journal_entry"
	KindOpeningBalance DocumentKind = "opening_balance"
)

// Document documento contable local. Cada variante expone su cabecera común.
type Document interface {
	Header() *DocumentHeader
}

// DocumentHeader datos comunes de todas las variantes.
// ExternalID enlaza 1:1 con la mutación de origen y es único entre variantes.
type DocumentHeader struct {
	ID          string
	ExternalID  string
	Kind        DocumentKind
	PostingDate time.Time
	Description string
	PartyID     string
	PartyRole   PartyRole
	Lines       []DocumentLine
	CreatedAt   time.Time
}

// Header implementa Document para todas las variantes que embeben la cabecera.
func (h *DocumentHeader) Header() *DocumentHeader { return h }

// Totals suma debe y haber de las líneas.
func (h *DocumentHeader) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range h.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// DocumentLine línea de partida doble. Solo uno de Debit/Credit es distinto de cero.
type DocumentLine struct {
	AccountID   string
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	PartyID     string
	Remark      string
}

// InvoiceDirection dirección de la factura.
type InvoiceDirection string

const (
	InvoiceSales    InvoiceDirection = "sales"
	InvoicePurchase InvoiceDirection = "purchase"
)

// PaymentDirection dirección del pago.
type PaymentDirection string

const (
	PaymentReceive PaymentDirection = "receive"
	PaymentPay     PaymentDirection = "pay"
)

// InvoiceDirectionFor devuelve la dirección de factura que concilia con el pago.
func (d PaymentDirection) InvoiceDirectionFor() InvoiceDirection {
	if d == PaymentPay {
		return InvoicePurchase
	}
	return InvoiceSales
}

// Payment pago (cobro a cliente o pago a proveedor).
type Payment struct {
	DocumentHeader
	Direction   PaymentDirection
	Amount      decimal.Decimal
	IsRefund    bool
	Allocations []Allocation
}

// Allocation aplicación de un pago sobre el saldo pendiente de una factura.
type Allocation struct {
	ID            string
	PaymentID     string
	InvoiceID     string
	InvoiceNumber string
	Amount        decimal.Decimal
	CreatedAt     time.Time
}

// TransferDirection entrada o salida de dinero.
type TransferDirection string

const (
	TransferIn  TransferDirection = "in"
	TransferOut TransferDirection = "out"
)

// MoneyTransfer dinero recibido o pagado sin factura asociada.
type MoneyTransfer struct {
	DocumentHeader
	Direction     TransferDirection
	BankAccountID string
}

// JournalEntry asiento de diario genérico (memorial y tipos desconocidos).
type JournalEntry struct {
	DocumentHeader
}

// OpeningBalance asiento de saldos iniciales.
// ExcludedLines conserva las líneas de inventario y resultados fuera del cuadre.
type OpeningBalance struct {
	DocumentHeader
	ExcludedLines []DocumentLine
}
