package migration

import (
	"context"
	"fmt"
	"strings"

	"github.com/jhoicas/ledger-migration-api/internal/domain"
	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/jhoicas/ledger-migration-api/internal/domain/ledger"
)

// transferBuilder dinero recibido (banco al debe) o pagado (banco al haber) sin factura.
type transferBuilder struct {
	baseBuilder
	direction entity.TransferDirection
}

func (b *transferBuilder) Kind() entity.DocumentKind { return entity.KindMoneyTransfer }

func (b *transferBuilder) Build(ctx context.Context, rc *RunContext, m *entity.Mutation) (entity.Document, error) {
	lines, err := nonZeroLines(m)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(m.LedgerID) == "" {
		return nil, fmt.Errorf("%w: movimiento %s sin cuenta bancaria", domain.ErrInvalidMutation, m.ExternalID)
	}
	bank, err := rc.Accounts.Resolve(ctx, m.LedgerID)
	if err != nil {
		return nil, err
	}

	in := b.direction == entity.TransferIn
	counter, err := b.sideLines(ctx, rc, m, lines, !in, nil)
	if err != nil {
		return nil, err
	}
	if err := b.attachParties(ctx, rc, m, counter); err != nil {
		return nil, err
	}

	t := &entity.MoneyTransfer{
		DocumentHeader: newHeader(m, entity.KindMoneyTransfer),
		Direction:      b.direction,
		BankAccountID:  bank.ID,
	}
	if !counter.net.IsZero() {
		t.Lines = append(t.Lines, ledger.Signed(bank, counter.net, in, strings.TrimSpace(m.Description)))
	}
	t.Lines = append(t.Lines, counter.lines...)
	return t, nil
}
