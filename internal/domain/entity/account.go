package entity

// RootType naturaleza de la cuenta en el plan contable local.
type RootType string

const (
	RootAsset     RootType = "asset"
	RootLiability RootType = "liability"
	RootEquity    RootType = "equity"
	RootIncome    RootType = "income"
	RootExpense   RootType = "expense"
)

// AccountType subtipo operativo de la cuenta.
type AccountType string

const (
	AccountGeneric    AccountType = ""
	AccountBank       AccountType = "bank"
	AccountCash       AccountType = "cash"
	AccountReceivable AccountType = "receivable"
	AccountPayable    AccountType = "payable"
	AccountStock      AccountType = "stock"
	AccountTax        AccountType = "tax"
)

// Account cuenta del plan contable local (precondición externa, nunca creada aquí).
type Account struct {
	ID          string
	Code        string
	Name        string
	RootType    RootType
	AccountType AccountType
}

// IsStock indica cuentas de valoración de inventario.
func (a Account) IsStock() bool { return a.AccountType == AccountStock }

// IsProfitAndLoss indica cuentas de resultados.
func (a Account) IsProfitAndLoss() bool {
	return a.RootType == RootIncome || a.RootType == RootExpense
}

// NeedsParty indica si las líneas sobre esta cuenta deben llevar tercero.
func (a Account) NeedsParty() bool {
	return a.AccountType == AccountReceivable || a.AccountType == AccountPayable
}

// AccountMapping relación explícita cuenta externa -> cuenta local.
type AccountMapping struct {
	ExternalLedgerID string
	Account          Account
}
