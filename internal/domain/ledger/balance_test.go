package ledger_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/ledger-migration-api/internal/domain"
	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/jhoicas/ledger-migration-api/internal/domain/ledger"
)

var (
	bank   = entity.Account{ID: "a-bank", Code: "1000", RootType: entity.RootAsset, AccountType: entity.AccountBank}
	income = entity.Account{ID: "a-inc", Code: "8000", RootType: entity.RootIncome}
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSigned_NegativoInvierteLado(t *testing.T) {
	l := ledger.Signed(bank, dec("10.005"), true, "x")
	assert.True(t, dec("10.01").Equal(l.Debit), "redondea a dos decimales")
	assert.True(t, l.Credit.IsZero())
	assert.Equal(t, "1000", l.AccountCode)

	l = ledger.Signed(bank, dec("-25"), true, "")
	assert.True(t, l.Debit.IsZero())
	assert.True(t, dec("25").Equal(l.Credit))
}

func TestCheckBalance(t *testing.T) {
	ok := []entity.DocumentLine{
		ledger.Debit(bank, dec("121.00"), ""),
		ledger.Credit(income, dec("100.00"), ""),
		ledger.Credit(income, dec("21.00"), ""),
	}
	require.NoError(t, ledger.CheckBalance(ok))

	bad := []entity.DocumentLine{ledger.Debit(bank, dec("100"), "")}
	err := ledger.CheckBalance(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrImbalance))
	var imb *domain.ImbalanceError
	require.ErrorAs(t, err, &imb)
	assert.Equal(t, "100.00", imb.Amount().StringFixed(2))
}

func TestCheckBalance_RechazaImportesNegativos(t *testing.T) {
	lines := []entity.DocumentLine{
		{AccountID: "a", Debit: dec("-5"), Credit: decimal.Zero},
		{AccountID: "b", Debit: decimal.Zero, Credit: dec("-5")},
	}
	assert.ErrorIs(t, ledger.CheckBalance(lines), domain.ErrImbalance)
}
