package eboekhouden

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// ── Estructuras del protocolo REST ───────────────────────────────────────────

type sessionRequest struct {
	AccessToken string `json:"accessToken"`
	Source      string `json:"source"`
}

type sessionResponse struct {
	Token string `json:"token"`
}

type mutationList struct {
	Items []mutationPayload `json:"items"`
}

type mutationPayload struct {
	ID            flexID          `json:"id"`
	Type          int             `json:"type"`
	Date          string          `json:"date"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	RelationID    flexID          `json:"relationId"`
	InvoiceNumber string          `json:"invoiceNumber"`
	LedgerID      flexID          `json:"ledgerId"`
	Rows          []rowPayload    `json:"rows"`
}

type rowPayload struct {
	LedgerID    flexID          `json:"ledgerId"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type relationPayload struct {
	ID          flexID `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	CompanyName string `json:"companyName"`
	ContactName string `json:"contactName"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	VATNumber   string `json:"vatNumber"`
}

type apiError struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// flexID acepta ids numéricos o string; 0 y null se tratan como ausentes.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id no numérico: %s", b)
	}
	if n.String() == "0" {
		*f = ""
		return nil
	}
	*f = flexID(n.String())
	return nil
}

var dateLayouts = []string{"2006-01-02", "2006-01-02T15:04:05", time.RFC3339}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("fecha %q no reconocida", s)
}

func (p mutationPayload) toEntity(detail bool) (entity.Mutation, error) {
	date, err := parseDate(p.Date)
	if err != nil {
		return entity.Mutation{}, fmt.Errorf("mutación %s: %w", p.ID, err)
	}
	m := entity.Mutation{
		ExternalID:      string(p.ID),
		Type:            entity.MutationType(p.Type),
		Date:            date,
		Amount:          p.Amount,
		Description:     strings.TrimSpace(p.Description),
		LedgerID:        string(p.LedgerID),
		ExternalPartyID: string(p.RelationID),
		InvoiceNumber:   strings.TrimSpace(p.InvoiceNumber),
		HasDetail:       detail,
	}
	for _, r := range p.Rows {
		m.Lines = append(m.Lines, entity.MutationLine{
			LedgerID:    string(r.LedgerID),
			Amount:      r.Amount,
			Description: strings.TrimSpace(r.Description),
		})
	}
	return m, nil
}

func (p relationPayload) toEntity() *entity.Relation {
	r := &entity.Relation{
		ID:          string(p.ID),
		Kind:        p.Type,
		Name:        strings.TrimSpace(p.Name),
		CompanyName: strings.TrimSpace(p.CompanyName),
		FirstName:   strings.TrimSpace(p.FirstName),
		LastName:    strings.TrimSpace(p.LastName),
		Email:       strings.TrimSpace(p.Email),
		Phone:       strings.TrimSpace(p.Phone),
		TaxID:       strings.TrimSpace(p.VATNumber),
	}
	if r.FirstName == "" && r.LastName == "" {
		r.FirstName = strings.TrimSpace(p.ContactName)
	}
	return r
}

func nextCursor(offset, got, limit int) string {
	if got < limit {
		return ""
	}
	return strconv.Itoa(offset + got)
}
