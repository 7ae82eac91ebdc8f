package ledger

import (
	"github.com/jhoicas/ledger-migration-api/internal/domain"
	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// CurrencyPrecision decimales de la moneda local.
const CurrencyPrecision = 2

// Round redondea a la precisión de la moneda.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPrecision)
}

// Debit construye una línea al debe.
func Debit(acct entity.Account, amount decimal.Decimal, remark string) entity.DocumentLine {
	return entity.DocumentLine{
		AccountID:   acct.ID,
		AccountCode: acct.Code,
		Debit:       Round(amount),
		Credit:      decimal.Zero,
		Remark:      remark,
	}
}

// Credit construye una línea al haber.
func Credit(acct entity.Account, amount decimal.Decimal, remark string) entity.DocumentLine {
	return entity.DocumentLine{
		AccountID:   acct.ID,
		AccountCode: acct.Code,
		Debit:       decimal.Zero,
		Credit:      Round(amount),
		Remark:      remark,
	}
}

// Signed coloca un importe con signo: positivo al lado indicado, negativo al opuesto.
func Signed(acct entity.Account, amount decimal.Decimal, positiveIsDebit bool, remark string) entity.DocumentLine {
	if amount.IsNegative() {
		positiveIsDebit = !positiveIsDebit
	}
	if positiveIsDebit {
		return Debit(acct, amount.Abs(), remark)
	}
	return Credit(acct, amount.Abs(), remark)
}

// CheckBalance verifica debe = haber a la precisión de la moneda.
// Devuelve *domain.ImbalanceError si no cuadra o si alguna línea trae importe negativo.
func CheckBalance(lines []entity.DocumentLine) error {
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range lines {
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return &domain.ImbalanceError{Debit: debit.Add(l.Debit), Credit: credit.Add(l.Credit)}
		}
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	if !Round(debit).Equal(Round(credit)) {
		return &domain.ImbalanceError{Debit: Round(debit), Credit: Round(credit)}
	}
	return nil
}
