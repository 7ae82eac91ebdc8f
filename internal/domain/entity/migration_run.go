package entity

import "time"

// RunState estado de la máquina de estados del coordinador.
type RunState string

const (
	RunNotStarted     RunState = "not_started"
	RunFetchingType   RunState = "fetching_type"
	RunProcessingPage RunState = "processing_page"
	RunCompleted      RunState = "completed"
	RunFailed         RunState = "failed"
	RunCancelled      RunState = "cancelled"
)

// IsTerminal indica si la corrida ya terminó.
func (s RunState) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

// Estados por tipo de mutación.
const (
	TypePending   = "pending"
	TypeRunning   = "running"
	TypeDone      = "done"
	TypeAborted   = "aborted"
	TypeCancelled = "cancelled"
)

// OutcomeCounts conteo de resultados por estado.
type OutcomeCounts struct {
	Created          int `json:"created"`
	SkippedDuplicate int `json:"skipped_duplicate"`
	SkippedInvalid   int `json:"skipped_invalid"`
	Failed           int `json:"failed"`
	NeedsReview      int `json:"needs_review"`
	Validated        int `json:"validated,omitempty"`
}

// Add incrementa el contador correspondiente.
func (c *OutcomeCounts) Add(o *ImportOutcome) {
	switch o.Status {
	case OutcomeCreated:
		c.Created++
	case OutcomeSkippedDuplicate:
		c.SkippedDuplicate++
	case OutcomeSkippedInvalid:
		c.SkippedInvalid++
	case OutcomeFailed:
		c.Failed++
	case OutcomeValidated:
		c.Validated++
	}
	if o.NeedsReview {
		c.NeedsReview++
	}
}

// Total número de mutaciones procesadas.
func (c OutcomeCounts) Total() int {
	return c.Created + c.SkippedDuplicate + c.SkippedInvalid + c.Failed + c.Validated
}

// TypeProgress avance de un tipo de mutación dentro de la corrida.
type TypeProgress struct {
	Type   MutationType  `json:"type"`
	State  string        `json:"state"`
	Pages  int           `json:"pages"`
	Counts OutcomeCounts `json:"counts"`
	// OutOfWindow mutaciones leídas y descartadas por el rango de fechas de la corrida.
	OutOfWindow int    `json:"out_of_window,omitempty"`
	FetchError  string `json:"fetch_error,omitempty"`
}

// MigrationRun corrida de migración; es el modelo de lectura del progreso.
type MigrationRun struct {
	ID                    string
	State                 RunState
	CurrentType           *MutationType
	Types                 []TypeProgress
	EnrichmentQueueLength int
	// DryRun construye y valida sin escribir documentos ni asignaciones.
	DryRun bool
	// DateFrom y DateTo acotan por fecha todos los tipos salvo los saldos iniciales.
	DateFrom   *time.Time
	DateTo     *time.Time
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
	UpdatedAt  time.Time
}
