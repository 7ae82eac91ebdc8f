// seed_mappings genera el script SQL que mapea las cuentas del ledger externo a cuentas locales
// a partir de una exportación CSV (separador ";", codificación Windows-1252).
//
// Uso: go run ./cmd/seed_mappings [ruta/mapeos.csv] [--apply]
// Por defecto busca mapeos.csv en el directorio actual.
// Escribe: internal/infrastructure/postgres/seeds/account_mappings.sql
// Con --apply además aplica los mapeos contra la base configurada.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/jhoicas/ledger-migration-api/internal/infrastructure/postgres"
	"github.com/jhoicas/ledger-migration-api/pkg/config"
)

type mapping struct {
	externalID string
	localCode  string
	name       string
}

func main() {
	csvPath := "mapeos.csv"
	apply := false
	for _, a := range os.Args[1:] {
		if a == "--apply" {
			apply = true
			continue
		}
		csvPath = a
	}

	f, err := os.Open(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir CSV: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	mappings, err := parseMappings(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Leer CSV: %v\n", err)
		os.Exit(1)
	}

	moduleRoot := findModuleRoot()
	outPath := filepath.Join(moduleRoot, "internal", "infrastructure", "postgres", "seeds", "account_mappings.sql")
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Crear directorio: %v\n", err)
		os.Exit(1)
	}
	out, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Crear archivo: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	if err := writeSQL(out, mappings); err != nil {
		fmt.Fprintf(os.Stderr, "Escribir SQL: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generado %s: %d mapeos\n", outPath, len(mappings))

	if apply {
		if err := applyMappings(mappings); err != nil {
			fmt.Fprintf(os.Stderr, "Aplicar mapeos: %v\n", err)
			os.Exit(1)
		}
	}
}

// parseMappings lee filas id_externo;código_local[;nombre]. Omite cabecera, vacías y comentarios.
// Un id externo repetido conserva la última fila.
func parseMappings(r io.Reader) ([]mapping, error) {
	cr := csv.NewReader(transform.NewReader(r, charmap.Windows1252.NewDecoder()))
	cr.Comma = ';'
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	byID := make(map[string]mapping)
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(rec) < 2 {
			if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
				continue
			}
			return nil, fmt.Errorf("línea %d: se esperaban al menos 2 columnas", line)
		}
		m := mapping{
			externalID: strings.TrimSpace(rec[0]),
			localCode:  strings.TrimSpace(rec[1]),
		}
		if len(rec) > 2 {
			m.name = strings.TrimSpace(rec[2])
		}
		if line == 1 && isHeader(m.externalID) {
			continue
		}
		if m.externalID == "" || m.localCode == "" {
			return nil, fmt.Errorf("línea %d: id externo y código local son obligatorios", line)
		}
		byID[m.externalID] = m
	}

	out := make([]mapping, 0, len(byID))
	for _, m := range byID {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].externalID < out[j].externalID })
	return out, nil
}

func isHeader(first string) bool {
	f := strings.ToLower(first)
	return strings.Contains(f, "ledger") || strings.Contains(f, "grootboek") || strings.Contains(f, "id")
}

func writeSQL(w io.Writer, mappings []mapping) error {
	var b strings.Builder
	b.WriteString("-- Mapeo de cuentas del ledger externo a cuentas locales\n")
	b.WriteString("-- Generado por cmd/seed_mappings; las cuentas locales deben existir\n\n")
	for _, m := range mappings {
		if m.name != "" {
			fmt.Fprintf(&b, "-- %s\n", strings.ReplaceAll(m.name, "\n", " "))
		}
		b.WriteString("INSERT INTO ledger_account_mappings (external_ledger_id, account_id, updated_at)\n")
		fmt.Fprintf(&b, "SELECT '%s', id, now() FROM accounts WHERE code = '%s'\n", escapeSQL(m.externalID), escapeSQL(m.localCode))
		b.WriteString("ON CONFLICT (external_ledger_id) DO UPDATE SET account_id = EXCLUDED.account_id, updated_at = now();\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func applyMappings(mappings []mapping) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	repo := postgres.NewAccountMappingRepository(pool)
	applied, missing := 0, 0
	for _, m := range mappings {
		ok, err := repo.UpsertMapping(ctx, m.externalID, m.localCode)
		if err != nil {
			return err
		}
		if !ok {
			missing++
			fmt.Fprintf(os.Stderr, "Cuenta local %s no existe (id externo %s)\n", m.localCode, m.externalID)
			continue
		}
		applied++
	}
	fmt.Printf("Aplicados %d mapeos, %d sin cuenta local\n", applied, missing)
	return nil
}

func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func findModuleRoot() string {
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
