package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMappings_Windows1252(t *testing.T) {
	// 0xE9 = "é" en Windows-1252
	raw := []byte("ledger_id;code;name\n1300;1300;Debiteuren\n8000;4000;Omzet caf\xe9\n\n# comentario\n1300;1310;Debiteuren NL\n")

	got, err := parseMappings(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "1300", got[0].externalID)
	assert.Equal(t, "1310", got[0].localCode, "la última fila de un id gana")
	assert.Equal(t, "8000", got[1].externalID)
	assert.Equal(t, "Omzet café", got[1].name)
}

func TestParseMappings_FilaIncompleta(t *testing.T) {
	_, err := parseMappings(strings.NewReader("1300;\n"))
	assert.Error(t, err)
}

func TestWriteSQL_EscapaComillas(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSQL(&buf, []mapping{{externalID: "1'3", localCode: "4000", name: "O'Brien"}}))

	out := buf.String()
	assert.Contains(t, out, "SELECT '1''3', id, now() FROM accounts WHERE code = '4000'")
	assert.Contains(t, out, "ON CONFLICT (external_ledger_id) DO UPDATE")
	assert.Contains(t, out, "-- O'Brien")
}
