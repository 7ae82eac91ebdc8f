package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/ledger-migration-api/internal/application/auth"
	"github.com/jhoicas/ledger-migration-api/internal/application/migration"
	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AuthUC      *auth.AuthUseCase
	MigrationUC *migration.MigrationUseCase
	JWTSecret   string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Auth (público)
	authHandler := NewAuthHandler(deps.AuthUC)
	api.Post("/auth/login", authHandler.Login)

	// Migración (protegido): consulta para admin y viewer, operación solo admin
	mig := api.Group("/migration", AuthMiddleware(deps.JWTSecret))
	h := NewMigrationHandler(deps.MigrationUC)
	read := RequireRole(entity.RoleAdmin, entity.RoleViewer)
	write := RequireRole(entity.RoleAdmin)

	mig.Get("/runs/current", read, h.CurrentRun)
	mig.Get("/runs/:id", read, h.GetRun)
	mig.Get("/outcomes", read, h.ListOutcomes)
	mig.Get("/enrichment", read, h.ListEnrichment)

	mig.Post("/runs", write, h.StartRun)
	mig.Post("/runs/current/cancel", write, h.CancelRun)
	mig.Post("/accounts/invalidate", write, h.InvalidateAccounts)
}
