package ledger_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/ledger-migration-api/internal/domain/ledger"
)

func TestExtractPartyName(t *testing.T) {
	cases := []struct {
		name string
		desc string
		want string
	}{
		{"contraparte con van", "Betaling van Jan Jansen factuur 2024-001", "Jan Jansen"},
		{"prefijo IBAN", "NL91ABNA0417164300 Stichting De Linde EREF 123", "Stichting De Linde"},
		{"fecha al final", "Vereniging Groen 12-03-2024 contributie", "Vereniging Groen"},
		{"solo palabras genéricas", "Betaling factuur", ""},
		{"vacía", "   ", ""},
		{"demasiado corta", "AB", ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, ledger.ExtractPartyName(c.desc))
		})
	}
}

func TestExtractPartyName_Trunca(t *testing.T) {
	long := strings.Repeat("Abcdefghij ", 20)
	got := ledger.ExtractPartyName(long)
	assert.Len(t, []rune(got), ledger.MaxPartyNameLength)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestFallbackPartyLabel(t *testing.T) {
	assert.Equal(t, "Relation 42", ledger.FallbackPartyLabel(" 42 "))
}
