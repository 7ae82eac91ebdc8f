package ledger

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// MaxPartyNameLength longitud máxima del nombre de un tercero.
const MaxPartyNameLength = 140

var (
	ibanPrefixRe   = regexp.MustCompile(`^[A-Z]{2}\d{2}[A-Z0-9]{4,30}\s+`)
	bicPrefixRe    = regexp.MustCompile(`^[A-Z]{6}[A-Z0-9]{2}(?:[A-Z0-9]{3})?\s+`)
	counterpartyRe = regexp.MustCompile(`(?i)\b(?:van|from|naar|to)\s+([A-Za-z][A-Za-z\s&.\-']{2,60})`)
	referenceCutRe = regexp.MustCompile(`(?i)\s+(?:ER\s+EF|EREF|MREF|CRED|SVWZ|factuurnummer|factuur|invoice|ordernummer|transactienummer|kenmerk|ref|reference|je order)\b.*$`)
	dateCutRe      = regexp.MustCompile(`\s+(?:\d{1,2}[-/]\d{1,2}[-/]\d{2,4}|\d{4}-\d{2}-\d{2}|\d{1,2}:\d{2}).*$`)
	longNumberRe   = regexp.MustCompile(`\s+\d{6,}.*$`)
	trailingCodeRe = regexp.MustCompile(`\s+[A-Z0-9]\s*$`)
)

var genericWords = map[string]struct{}{
	"betaling": {}, "payment": {}, "factuur": {}, "invoice": {}, "klant": {}, "customer": {},
	"leverancier": {}, "supplier": {}, "debiteur": {}, "crediteur": {}, "onbekend": {},
	"unknown": {}, "memoriaal": {}, "kas": {}, "bank": {},
}

// ExtractPartyName intenta obtener un nombre de contraparte a partir de la descripción libre
// (formato SEPA o textos tipo "Betaling van X"). Devuelve "" si no hay un nombre plausible.
func ExtractPartyName(description string) string {
	desc := strings.TrimSpace(description)
	if desc == "" {
		return ""
	}
	if m := counterpartyRe.FindStringSubmatch(desc); m != nil {
		if name := cleanCandidate(m[1]); isPlausibleName(name) {
			return truncateName(name)
		}
	}
	name := ibanPrefixRe.ReplaceAllString(desc, "")
	name = bicPrefixRe.ReplaceAllString(name, "")
	if name = cleanCandidate(name); isPlausibleName(name) {
		return truncateName(name)
	}
	return ""
}

// FallbackPartyLabel nombre determinista para terceros sin datos utilizables.
func FallbackPartyLabel(externalPartyID string) string {
	return fmt.Sprintf("Relation %s", strings.TrimSpace(externalPartyID))
}

func cleanCandidate(s string) string {
	s = referenceCutRe.ReplaceAllString(s, "")
	s = dateCutRe.ReplaceAllString(s, "")
	s = longNumberRe.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	s = trailingCodeRe.ReplaceAllString(s, "")
	return strings.Trim(s, " -.,;:")
}

func isPlausibleName(s string) bool {
	if len(s) < 4 {
		return false
	}
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters < 3 {
		return false
	}
	for _, w := range strings.Fields(Normalize(s)) {
		if _, ok := genericWords[strings.Trim(w, ".,:;-")]; ok {
			return false
		}
	}
	return true
}

func truncateName(s string) string {
	r := []rune(s)
	if len(r) <= MaxPartyNameLength {
		return s
	}
	return string(r[:MaxPartyNameLength-3]) + "..."
}
