package migration

import "github.com/jhoicas/ledger-migration-api/internal/domain/entity"

// Router despacha cada tipo de mutación a su builder. Los tipos desconocidos van al asiento genérico.
type Router struct {
	sales    Builder
	purchase Builder
	receive  Builder
	pay      Builder
	moneyIn  Builder
	moneyOut Builder
	journal  Builder
	opening  Builder
}

// NewRouter construye un builder por variante con las reglas compartidas.
func NewRouter(settings BuildSettings) *Router {
	base := baseBuilder{settings: settings}
	return &Router{
		sales:    &invoiceBuilder{baseBuilder: base, direction: entity.InvoiceSales},
		purchase: &invoiceBuilder{baseBuilder: base, direction: entity.InvoicePurchase},
		receive:  &paymentBuilder{baseBuilder: base, direction: entity.PaymentReceive},
		pay:      &paymentBuilder{baseBuilder: base, direction: entity.PaymentPay},
		moneyIn:  &transferBuilder{baseBuilder: base, direction: entity.TransferIn},
		moneyOut: &transferBuilder{baseBuilder: base, direction: entity.TransferOut},
		journal:  &journalBuilder{baseBuilder: base},
		opening:  &openingBuilder{baseBuilder: base},
	}
}

// Route devuelve el builder para el tipo dado.
func (r *Router) Route(t entity.MutationType) Builder {
	switch t {
	case entity.MutationOpeningBalance:
		return r.opening
	case entity.MutationPurchaseInvoice:
		return r.purchase
	case entity.MutationSalesInvoice:
		return r.sales
	case entity.MutationCustomerPayment:
		return r.receive
	case entity.MutationSupplierPayment:
		return r.pay
	case entity.MutationMoneyReceived:
		return r.moneyIn
	case entity.MutationMoneyPaid:
		return r.moneyOut
	default:
		return r.journal
	}
}
