package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/ledger-migration-api/internal/application/dto"
	"github.com/jhoicas/ledger-migration-api/internal/application/migration"
	"github.com/jhoicas/ledger-migration-api/internal/domain"
	"github.com/rs/zerolog/log"
)

// MigrationHandler operación de corridas y consulta de resultados.
type MigrationHandler struct {
	uc *migration.MigrationUseCase
}

// NewMigrationHandler construye el handler.
func NewMigrationHandler(uc *migration.MigrationUseCase) *MigrationHandler {
	return &MigrationHandler{uc: uc}
}

// StartRun godoc
// @Summary      Lanzar una corrida de migración
// @Description  La corrida se ejecuta en segundo plano; types vacío usa el orden configurado.
// @Tags         migration
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body  dto.StartRunRequest  false  "tipos de mutación"
// @Success      202   {object}  dto.RunResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/migration/runs [post]
func (h *MigrationHandler) StartRun(c *fiber.Ctx) error {
	var in dto.StartRunRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
		}
	}
	out, err := h.uc.StartRun(c.UserContext(), in)
	if err != nil {
		return writeError(c, err)
	}
	log.Info().Str("operator", GetSubject(c)).Str("run_id", out.ID).Msg("corrida lanzada por operador")
	return c.Status(fiber.StatusAccepted).JSON(out)
}

// CancelRun godoc
// @Summary      Cancelar la corrida activa
// @Tags         migration
// @Security     BearerAuth
// @Success      202
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/migration/runs/current/cancel [post]
func (h *MigrationHandler) CancelRun(c *fiber.Ctx) error {
	if err := h.uc.CancelRun(); err != nil {
		return writeError(c, err)
	}
	log.Info().Str("operator", GetSubject(c)).Msg("cancelación solicitada por operador")
	return c.SendStatus(fiber.StatusAccepted)
}

// CurrentRun godoc
// @Summary      Estado de la corrida activa o de la última
// @Tags         migration
// @Produce      json
// @Security     BearerAuth
// @Success      200   {object}  dto.RunResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/migration/runs/current [get]
func (h *MigrationHandler) CurrentRun(c *fiber.Ctx) error {
	out, err := h.uc.CurrentRun(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// GetRun godoc
// @Summary      Estado de una corrida por id
// @Tags         migration
// @Produce      json
// @Security     BearerAuth
// @Param        id   path  string  true  "id de la corrida"
// @Success      200   {object}  dto.RunResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/migration/runs/{id} [get]
func (h *MigrationHandler) GetRun(c *fiber.Ctx) error {
	out, err := h.uc.GetRun(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// ListOutcomes godoc
// @Summary      Resultados de importación por mutación
// @Tags         migration
// @Produce      json
// @Security     BearerAuth
// @Param        run_id  query  string  false  "id de la corrida"
// @Param        status  query  string  false  "created | skipped_duplicate | skipped_invalid | failed"
// @Param        limit   query  int     false  "máximo 500"
// @Param        offset  query  int     false  "desplazamiento"
// @Success      200   {object}  dto.OutcomeListResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/migration/outcomes [get]
func (h *MigrationHandler) ListOutcomes(c *fiber.Ctx) error {
	var in dto.OutcomeFilterRequest
	if err := c.QueryParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_QUERY", Message: "parámetros inválidos"})
	}
	out, err := h.uc.ListOutcomes(c.UserContext(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// ListEnrichment godoc
// @Summary      Cola de terceros provisionales pendientes de enriquecimiento
// @Tags         migration
// @Produce      json
// @Security     BearerAuth
// @Param        limit   query  int  false  "máximo 500"
// @Param        offset  query  int  false  "desplazamiento"
// @Success      200   {object}  dto.EnrichmentListResponse
// @Router       /api/migration/enrichment [get]
func (h *MigrationHandler) ListEnrichment(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_QUERY", Message: "parámetros inválidos"})
	}
	out, err := h.uc.ListEnrichment(c.UserContext(), page)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// InvalidateAccounts godoc
// @Summary      Vaciar la caché de mapeo de cuentas de la corrida activa
// @Tags         migration
// @Security     BearerAuth
// @Success      204
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/migration/accounts/invalidate [post]
func (h *MigrationHandler) InvalidateAccounts(c *fiber.Ctx) error {
	if err := h.uc.InvalidateAccounts(); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// writeError traduce errores de dominio a respuestas HTTP.
func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "RUN_IN_PROGRESS", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("error interno")
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}
