package migration

import (
	"context"
	"strings"

	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/jhoicas/ledger-migration-api/internal/domain/ledger"
)

// journalBuilder asiento genérico para memoriales y tipos desconocidos.
// Con cuenta de cabecera, cada línea positiva va al debe y la cabecera compensa.
// Sin cabecera, positivo = debe y negativo = haber, y el asiento debe cuadrar por sí mismo.
type journalBuilder struct {
	baseBuilder
}

func (b *journalBuilder) Kind() entity.DocumentKind { return entity.KindJournalEntry }

func (b *journalBuilder) Build(ctx context.Context, rc *RunContext, m *entity.Mutation) (entity.Document, error) {
	lines, err := nonZeroLines(m)
	if err != nil {
		return nil, err
	}
	body, err := b.sideLines(ctx, rc, m, lines, true, nil)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(m.LedgerID) != "" && !body.net.IsZero() {
		hdr, err := rc.Accounts.Resolve(ctx, m.LedgerID)
		if err != nil {
			return nil, err
		}
		body.add(hdr, ledger.Signed(hdr, body.net, false, strings.TrimSpace(m.Description)))
	}
	if err := b.attachParties(ctx, rc, m, body); err != nil {
		return nil, err
	}

	je := &entity.JournalEntry{DocumentHeader: newHeader(m, entity.KindJournalEntry)}
	je.Lines = body.lines
	return je, nil
}
