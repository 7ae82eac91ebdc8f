package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/ledger-migration-api/internal/domain/ledger"
)

func TestCollectorMatcher(t *testing.T) {
	m := ledger.NewCollectorMatcher(append([]string{"  ", "Mollie"}, ledger.DefaultCollectorPatterns...))

	cases := []struct {
		desc string
		want bool
	}{
		{"Bestelling #123 via WooCommerce", true},
		{"FACTUURSTUREN factuur 2024-01", true},
		{"Uitbetaling   MOLLIE  payments", true},
		{"Betaling van Jan Jansen", false},
		{"", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, m.Matches(c.desc), c.desc)
	}
}

func TestCollectorMatcher_SinPatrones(t *testing.T) {
	var nilMatcher *ledger.CollectorMatcher
	assert.False(t, nilMatcher.Matches("woocommerce"))
	assert.False(t, ledger.NewCollectorMatcher(nil).Matches("woocommerce"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "cafe creme", ledger.Normalize("  Café   CRÈME "))
	assert.Equal(t, "", ledger.Normalize("   "))
}
