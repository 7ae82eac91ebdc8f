package entity

import "github.com/shopspring/decimal"

// Invoice factura de venta o compra importada.
// Outstanding es el saldo pendiente que la conciliación va reduciendo.
type Invoice struct {
	DocumentHeader
	Direction     InvoiceDirection
	InvoiceNumber string
	GrandTotal    decimal.Decimal
	Outstanding   decimal.Decimal
	IsReturn      bool // nota de crédito (total negativo en origen)
}
