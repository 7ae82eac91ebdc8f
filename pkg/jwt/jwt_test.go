package jwt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgjwt "github.com/jhoicas/ledger-migration-api/pkg/jwt"
)

const secret = "s3cr3t"

func TestGenerateParse_ConservaSujetoYRol(t *testing.T) {
	tok, err := pkgjwt.Generate(secret, "admin", "admin", "ledger-migration", 5)
	require.NoError(t, err)

	sub, role, err := pkgjwt.Parse(secret, tok)
	require.NoError(t, err)
	assert.Equal(t, "admin", sub)
	assert.Equal(t, "admin", role)
}

func TestParse_Rechazos(t *testing.T) {
	expired, err := pkgjwt.Generate(secret, "op", "viewer", "", -1)
	require.NoError(t, err)
	valid, err := pkgjwt.Generate(secret, "op", "viewer", "", 5)
	require.NoError(t, err)

	_, _, err = pkgjwt.Parse(secret, expired)
	assert.Error(t, err, "expirado")
	_, _, err = pkgjwt.Parse("otro", valid)
	assert.Error(t, err, "firma con otro secreto")
	_, _, err = pkgjwt.Parse("", valid)
	assert.Error(t, err, "secreto vacío")
}

func TestGenerate_SecretoVacio(t *testing.T) {
	_, err := pkgjwt.Generate("", "op", "admin", "", 5)
	assert.Error(t, err)
}
