package migration

import (
	"context"
	"fmt"
	"strings"

	"github.com/jhoicas/ledger-migration-api/internal/domain"
	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/jhoicas/ledger-migration-api/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// invoiceBuilder construye facturas de venta (deudores al debe) o de compra (acreedores al haber).
// Un total negativo produce una nota de crédito con los lados invertidos.
type invoiceBuilder struct {
	baseBuilder
	direction entity.InvoiceDirection
}

func (b *invoiceBuilder) Kind() entity.DocumentKind { return entity.KindInvoice }

func (b *invoiceBuilder) Build(ctx context.Context, rc *RunContext, m *entity.Mutation) (entity.Document, error) {
	lines, err := nonZeroLines(m)
	if err != nil {
		return nil, err
	}

	role, fallback := entity.RoleCustomer, b.settings.ReceivableAccount
	if b.direction == entity.InvoicePurchase {
		role, fallback = entity.RoleSupplier, b.settings.PayableAccount
	}
	party, err := b.party(ctx, rc, m, role)
	if err != nil {
		return nil, err
	}

	// ventas: ingresos al haber; compras: gastos al debe
	sales := b.direction == entity.InvoiceSales
	items, err := b.sideLines(ctx, rc, m, lines, !sales, nil)
	if err != nil {
		return nil, err
	}
	net := items.net
	if net.IsZero() {
		return nil, fmt.Errorf("%w: factura %s con total cero", domain.ErrInvalidMutation, m.ExternalID)
	}

	var partyAcct entity.Account
	if sales && b.viaIntermediary(m) {
		partyAcct, err = b.intermediary(ctx, rc)
	} else {
		partyAcct, err = b.headerAccount(ctx, rc, m, fallback)
	}
	if err != nil {
		return nil, err
	}
	partyLine := ledger.Signed(partyAcct, net, sales, strings.TrimSpace(m.Description))
	partyLine.PartyID = partyID(party)

	inv := &entity.Invoice{
		DocumentHeader: newHeader(m, entity.KindInvoice),
		Direction:      b.direction,
		InvoiceNumber:  strings.TrimSpace(m.InvoiceNumber),
		GrandTotal:     net.Abs(),
		Outstanding:    decimal.Zero,
		IsReturn:       net.IsNegative(),
	}
	if !inv.IsReturn {
		inv.Outstanding = net
	}
	inv.PartyID = partyID(party)
	inv.PartyRole = role
	inv.Lines = append([]entity.DocumentLine{partyLine}, items.lines...)
	return inv, nil
}
