package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Errores de dominio (sin dependencias de infraestructura).
var (
	ErrNotFound              = errors.New("recurso no encontrado")
	ErrInvalidInput          = errors.New("entrada inválida")
	ErrDuplicate             = errors.New("recurso duplicado")
	ErrUnauthorized          = errors.New("no autorizado")
	ErrConflict              = errors.New("conflicto con el estado actual")
	ErrMissingAccountMapping = errors.New("cuenta contable sin mapeo")
	ErrImbalance             = errors.New("documento descuadrado")
	ErrInvalidMutation       = errors.New("mutación inválida")
	ErrTransient             = errors.New("fallo transitorio del ledger externo")
	ErrRunInProgress         = errors.New("ya hay una migración en curso")
)

// MissingAccountMappingError identifica la cuenta externa sin mapeo local,
// o la cuenta local configurada por código que no existe.
type MissingAccountMappingError struct {
	LedgerID  string
	LocalCode string
}

func (e *MissingAccountMappingError) Error() string {
	if e.LocalCode != "" {
		return fmt.Sprintf("cuenta local configurada %q no existe", e.LocalCode)
	}
	return fmt.Sprintf("cuenta externa %q sin mapeo a cuenta local", e.LedgerID)
}

func (e *MissingAccountMappingError) Unwrap() error { return ErrMissingAccountMapping }

// ImbalanceError lleva la diferencia debe - haber de un documento que no cuadra.
type ImbalanceError struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// Amount devuelve la diferencia absoluta.
func (e *ImbalanceError) Amount() decimal.Decimal {
	return e.Debit.Sub(e.Credit).Abs()
}

func (e *ImbalanceError) Error() string {
	return fmt.Sprintf("debe %s ≠ haber %s (diferencia %s)",
		e.Debit.StringFixed(2), e.Credit.StringFixed(2), e.Amount().StringFixed(2))
}

func (e *ImbalanceError) Unwrap() error { return ErrImbalance }
