package entity

import (
	"strings"
	"time"
)

// PartyRole rol del tercero en el sistema local.
type PartyRole string

const (
	RoleCustomer PartyRole = "customer"
	RoleSupplier PartyRole = "supplier"
)

// Party cliente o proveedor local.
type Party struct {
	ID              string
	Role            PartyRole
	Name            string
	Email           string
	Phone           string
	TaxID           string
	Provisional     bool // nombre sintetizado, pendiente de enriquecimiento
	ExternalPartyID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Relation tercero tal como lo devuelve el ledger externo.
type Relation struct {
	ID          string
	Kind        string // B = empresa, P = persona
	Name        string
	CompanyName string
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	TaxID       string
}

// DisplayName devuelve el primer nombre utilizable o cadena vacía.
func (r *Relation) DisplayName() string {
	if r == nil {
		return ""
	}
	if n := strings.TrimSpace(r.Name); n != "" {
		return n
	}
	if n := strings.TrimSpace(r.CompanyName); n != "" {
		return n
	}
	return strings.TrimSpace(strings.TrimSpace(r.FirstName) + " " + strings.TrimSpace(r.LastName))
}
