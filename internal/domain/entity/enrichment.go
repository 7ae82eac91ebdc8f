package entity

import "time"

// Estados de la cola de enriquecimiento.
const (
	EnrichmentPending = "pending"
)

// EnrichmentEntry tercero provisional a completar por un proceso posterior.
type EnrichmentEntry struct {
	ID              string
	PartyID         string
	PartyRole       PartyRole
	ExternalPartyID string
	ProvisionalName string
	Reason          string
	Status          string
	RetryCount      int
	CreatedAt       time.Time
}
