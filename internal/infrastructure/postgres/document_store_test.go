package postgres_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/ledger-migration-api/internal/domain"
	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/jhoicas/ledger-migration-api/internal/infrastructure/postgres"
)

func docLine(account, debit, credit string) entity.DocumentLine {
	return entity.DocumentLine{
		AccountID: account,
		Debit:     decimal.RequireFromString(debit),
		Credit:    decimal.RequireFromString(credit),
	}
}

func TestValidateDocument(t *testing.T) {
	valid := func() *entity.JournalEntry {
		je := &entity.JournalEntry{DocumentHeader: entity.DocumentHeader{ExternalID: "m-1", Kind: entity.KindJournalEntry}}
		je.Lines = []entity.DocumentLine{docLine("a", "10", "0"), docLine("b", "0", "10")}
		return je
	}

	assert.NoError(t, postgres.ValidateDocument(valid()))

	cases := []struct {
		name   string
		mutate func(*entity.JournalEntry)
		want   error
	}{
		{"sin id externo", func(je *entity.JournalEntry) { je.ExternalID = " " }, domain.ErrInvalidInput},
		{"sin líneas", func(je *entity.JournalEntry) { je.Lines = nil }, domain.ErrInvalidInput},
		{"línea sin cuenta", func(je *entity.JournalEntry) { je.Lines[0].AccountID = "" }, domain.ErrInvalidInput},
		{"debe y haber en la misma línea", func(je *entity.JournalEntry) {
			je.Lines[0].Credit = decimal.NewFromInt(10)
			je.Lines = append(je.Lines, docLine("c", "0", "10"))
		}, domain.ErrInvalidInput},
		{"descuadrado", func(je *entity.JournalEntry) { je.Lines[1].Credit = decimal.NewFromInt(9) }, domain.ErrImbalance},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			je := valid()
			c.mutate(je)
			assert.ErrorIs(t, postgres.ValidateDocument(je), c.want)
		})
	}
}

func TestValidateDocument_Nil(t *testing.T) {
	assert.ErrorIs(t, postgres.ValidateDocument(nil), domain.ErrInvalidInput)
}
