package migration

import (
	"context"
	"fmt"

	"github.com/jhoicas/ledger-migration-api/internal/domain"
	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/jhoicas/ledger-migration-api/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// openingBuilder saldos iniciales a la fecha de corte.
// Activo: positivo al debe. Pasivo y patrimonio: positivo al haber.
// Las cuentas de inventario y de resultados quedan fuera del cuadre (ExcludedLines).
type openingBuilder struct {
	baseBuilder
}

func (b *openingBuilder) Kind() entity.DocumentKind { return entity.KindOpeningBalance }

func (b *openingBuilder) Build(ctx context.Context, rc *RunContext, m *entity.Mutation) (entity.Document, error) {
	lines, err := nonZeroLines(m)
	if err != nil {
		return nil, err
	}

	ob := &entity.OpeningBalance{DocumentHeader: newHeader(m, entity.KindOpeningBalance)}
	posted := &postedLines{net: decimal.Zero}
	for _, l := range lines {
		acct, err := rc.Accounts.Resolve(ctx, l.LedgerID)
		if err != nil {
			return nil, err
		}
		line := ledger.Signed(acct, ledger.Round(l.Amount), naturalDebit(acct), lineRemark(l, m))
		if acct.IsStock() || acct.IsProfitAndLoss() {
			ob.ExcludedLines = append(ob.ExcludedLines, line)
			continue
		}
		posted.add(acct, line)
	}
	if len(posted.lines) == 0 {
		return nil, fmt.Errorf("%w: saldo inicial %s sin cuentas monetarias", domain.ErrInvalidMutation, m.ExternalID)
	}
	if err := b.attachParties(ctx, rc, m, posted); err != nil {
		return nil, err
	}
	ob.Lines = posted.lines
	return ob, nil
}

func naturalDebit(acct entity.Account) bool {
	switch acct.RootType {
	case entity.RootLiability, entity.RootEquity, entity.RootIncome:
		return false
	default:
		return true
	}
}
