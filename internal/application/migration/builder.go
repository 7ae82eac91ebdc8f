package migration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/ledger-migration-api/internal/domain"
	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/jhoicas/ledger-migration-api/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// Builder construye el documento local de una variante a partir de una mutación con detalle.
type Builder interface {
	Kind() entity.DocumentKind
	Build(ctx context.Context, rc *RunContext, m *entity.Mutation) (entity.Document, error)
}

// BuildSettings reglas configurables compartidas por los builders.
type BuildSettings struct {
	Collectors *ledger.CollectorMatcher
	// IntermediaryAccount código local de la cuenta puente para intermediarios de cobro.
	// Vacío desactiva la regla.
	IntermediaryAccount string
	// ReceivableAccount / PayableAccount códigos locales usados cuando la mutación no trae cuenta de cabecera.
	ReceivableAccount string
	PayableAccount    string
}

// RunContext estado por corrida compartido entre workers: memos de cuentas y terceros.
type RunContext struct {
	RunID    string
	Accounts *AccountResolver
	Parties  *PartyResolver
	// DryRun: los terceros nuevos no se persisten ni se encolan.
	DryRun bool
	// DateFrom / DateTo rango de fechas por día; nil sin límite.
	DateFrom *time.Time
	DateTo   *time.Time
}

type baseBuilder struct {
	settings BuildSettings
}

func newHeader(m *entity.Mutation, kind entity.DocumentKind) entity.DocumentHeader {
	return entity.DocumentHeader{
		ID:          uuid.New().String(),
		ExternalID:  m.ExternalID,
		Kind:        kind,
		PostingDate: m.Date,
		Description: strings.TrimSpace(m.Description),
	}
}

// nonZeroLines descarta líneas sin importe; sin líneas la mutación es inválida.
func nonZeroLines(m *entity.Mutation) ([]entity.MutationLine, error) {
	out := make([]entity.MutationLine, 0, len(m.Lines))
	for _, l := range m.Lines {
		if ledger.Round(l.Amount).IsZero() {
			continue
		}
		out = append(out, l)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: mutación %s sin líneas con importe", domain.ErrInvalidMutation, m.ExternalID)
	}
	return out, nil
}

func lineRemark(l entity.MutationLine, m *entity.Mutation) string {
	if d := strings.TrimSpace(l.Description); d != "" {
		return d
	}
	return strings.TrimSpace(m.Description)
}

// headerAccount resuelve la cuenta de cabecera o, si falta, la cuenta configurada por código.
func (b baseBuilder) headerAccount(ctx context.Context, rc *RunContext, m *entity.Mutation, fallbackCode string) (entity.Account, error) {
	if strings.TrimSpace(m.LedgerID) != "" {
		return rc.Accounts.Resolve(ctx, m.LedgerID)
	}
	if strings.TrimSpace(fallbackCode) != "" {
		return rc.Accounts.ResolveCode(ctx, fallbackCode)
	}
	return entity.Account{}, fmt.Errorf("%w: mutación %s sin cuenta de cabecera", domain.ErrInvalidMutation, m.ExternalID)
}

// viaIntermediary indica si aplica la regla de la cuenta puente.
func (b baseBuilder) viaIntermediary(m *entity.Mutation) bool {
	return b.settings.IntermediaryAccount != "" && b.settings.Collectors.Matches(m.Description)
}

func (b baseBuilder) intermediary(ctx context.Context, rc *RunContext) (entity.Account, error) {
	return rc.Accounts.ResolveCode(ctx, b.settings.IntermediaryAccount)
}

func (b baseBuilder) party(ctx context.Context, rc *RunContext, m *entity.Mutation, role entity.PartyRole) (*entity.Party, error) {
	return rc.Parties.Resolve(ctx, m.ExternalPartyID, role, MutationContext{
		ExternalMutationID: m.ExternalID,
		Description:        m.Description,
	})
}

// postedLines líneas construidas junto con la cuenta local de cada una.
type postedLines struct {
	lines    []entity.DocumentLine
	accounts []entity.Account
	net      decimal.Decimal
}

func (p *postedLines) add(acct entity.Account, line entity.DocumentLine) {
	p.lines = append(p.lines, line)
	p.accounts = append(p.accounts, acct)
}

// sideLines coloca cada línea con su signo y acumula el neto redondeado.
// positiveIsDebit indica el lado de una línea positiva.
func (b baseBuilder) sideLines(ctx context.Context, rc *RunContext, m *entity.Mutation, lines []entity.MutationLine, positiveIsDebit bool, override *entity.Account) (*postedLines, error) {
	out := &postedLines{net: decimal.Zero}
	for _, l := range lines {
		var acct entity.Account
		if override != nil {
			acct = *override
		} else {
			a, err := rc.Accounts.Resolve(ctx, l.LedgerID)
			if err != nil {
				return nil, err
			}
			acct = a
		}
		amount := ledger.Round(l.Amount)
		out.add(acct, ledger.Signed(acct, amount, positiveIsDebit, lineRemark(l, m)))
		out.net = out.net.Add(amount)
	}
	return out, nil
}

// attachParties asigna tercero a las líneas de deudores/acreedores cuando la mutación trae relación.
func (b baseBuilder) attachParties(ctx context.Context, rc *RunContext, m *entity.Mutation, p *postedLines) error {
	if strings.TrimSpace(m.ExternalPartyID) == "" {
		return nil
	}
	for i, acct := range p.accounts {
		if !acct.NeedsParty() {
			continue
		}
		role := entity.RoleCustomer
		if acct.AccountType == entity.AccountPayable {
			role = entity.RoleSupplier
		}
		party, err := b.party(ctx, rc, m, role)
		if err != nil {
			return err
		}
		p.lines[i].PartyID = partyID(party)
	}
	return nil
}

func withParty(lines []entity.DocumentLine, id string) []entity.DocumentLine {
	for i := range lines {
		lines[i].PartyID = id
	}
	return lines
}

func partyID(p *entity.Party) string {
	if p == nil {
		return ""
	}
	return p.ID
}
