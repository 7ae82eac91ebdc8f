package migration

import (
	"context"
	"fmt"
	"strings"

	"github.com/jhoicas/ledger-migration-api/internal/domain"
	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/jhoicas/ledger-migration-api/internal/domain/ledger"
)

// paymentBuilder construye cobros (banco al debe) y pagos (banco al haber).
// La dirección sale del tipo; un neto negativo es un reembolso y no se concilia.
type paymentBuilder struct {
	baseBuilder
	direction entity.PaymentDirection
}

func (b *paymentBuilder) Kind() entity.DocumentKind { return entity.KindPayment }

func (b *paymentBuilder) Build(ctx context.Context, rc *RunContext, m *entity.Mutation) (entity.Document, error) {
	lines, err := nonZeroLines(m)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(m.LedgerID) == "" {
		return nil, fmt.Errorf("%w: pago %s sin cuenta bancaria", domain.ErrInvalidMutation, m.ExternalID)
	}
	bank, err := rc.Accounts.Resolve(ctx, m.LedgerID)
	if err != nil {
		return nil, err
	}

	receive := b.direction == entity.PaymentReceive
	role := entity.RoleCustomer
	if !receive {
		role = entity.RoleSupplier
	}
	party, err := b.party(ctx, rc, m, role)
	if err != nil {
		return nil, err
	}

	var override *entity.Account
	if receive && b.viaIntermediary(m) {
		acct, err := b.intermediary(ctx, rc)
		if err != nil {
			return nil, err
		}
		override = &acct
	}
	// cobro: cuenta del tercero al haber; pago: al debe
	partySide, err := b.sideLines(ctx, rc, m, lines, !receive, override)
	if err != nil {
		return nil, err
	}
	net := partySide.net
	if net.IsZero() {
		return nil, fmt.Errorf("%w: pago %s con neto cero", domain.ErrInvalidMutation, m.ExternalID)
	}
	bankLine := ledger.Signed(bank, net, receive, strings.TrimSpace(m.Description))

	p := &entity.Payment{
		DocumentHeader: newHeader(m, entity.KindPayment),
		Direction:      b.direction,
		Amount:         net.Abs(),
		IsRefund:       net.IsNegative(),
	}
	p.PartyID = partyID(party)
	p.PartyRole = role
	p.Lines = append([]entity.DocumentLine{bankLine}, withParty(partySide.lines, p.PartyID)...)
	return p, nil
}
