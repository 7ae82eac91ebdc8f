package ledger

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultCollectorPatterns intermediarios de cobro conocidos (tienda online, facturación).
var DefaultCollectorPatterns = []string{"woocommerce", "factuursturen"}

// CollectorMatcher detecta mutaciones cuyo dinero transita por un intermediario de cobro.
type CollectorMatcher struct {
	patterns []string
}

// NewCollectorMatcher normaliza los patrones una sola vez.
func NewCollectorMatcher(patterns []string) *CollectorMatcher {
	m := &CollectorMatcher{}
	for _, p := range patterns {
		if p = Normalize(p); p != "" {
			m.patterns = append(m.patterns, p)
		}
	}
	return m
}

// Matches indica si la descripción contiene algún patrón (sin distinguir mayúsculas ni acentos).
func (m *CollectorMatcher) Matches(description string) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}
	d := Normalize(description)
	for _, p := range m.patterns {
		if strings.Contains(d, p) {
			return true
		}
	}
	return false
}

// Normalize quita diacríticos, pliega mayúsculas y colapsa espacios.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(cases.Fold().String(out)), " ")
}
