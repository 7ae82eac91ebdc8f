package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/ledger-migration-api/internal/application/auth"
	"github.com/jhoicas/ledger-migration-api/internal/application/migration"
	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/jhoicas/ledger-migration-api/internal/domain/ledger"
	"github.com/jhoicas/ledger-migration-api/internal/infrastructure/eboekhouden"
	"github.com/jhoicas/ledger-migration-api/internal/infrastructure/lock"
	"github.com/jhoicas/ledger-migration-api/internal/infrastructure/postgres"
	"github.com/jhoicas/ledger-migration-api/internal/infrastructure/scheduler"
	httpRouter "github.com/jhoicas/ledger-migration-api/internal/interfaces/http"
	"github.com/jhoicas/ledger-migration-api/pkg/config"
	"github.com/jhoicas/ledger-migration-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("esquema de base de datos")
	}

	accountRepo := postgres.NewAccountMappingRepository(pool)
	partyRepo := postgres.NewPartyRepository(pool)
	queueRepo := postgres.NewEnrichmentRepository(pool)
	outcomeRepo := postgres.NewOutcomeRepository(pool)
	runRepo := postgres.NewRunRepository(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool)
	books := postgres.NewDocumentStore(postgres.NewTxRunner(pool))

	client := eboekhouden.NewClient(eboekhouden.Config{
		BaseURL:        cfg.Ledger.BaseURL,
		AccessToken:    cfg.Ledger.AccessToken,
		Source:         cfg.Ledger.Source,
		PageSize:       cfg.Ledger.PageSize,
		MaxRetries:     cfg.Ledger.MaxRetries,
		RequestTimeout: cfg.Ledger.RequestTimeout,
		RatePerSecond:  cfg.Ledger.RatePerSecond,
	})

	deps := migration.Deps{
		Client:   client,
		Books:    books,
		Docs:     invoiceRepo,
		Accounts: accountRepo,
		Parties:  partyRepo,
		Invoices: invoiceRepo,
		Outcomes: outcomeRepo,
		Queue:    queueRepo,
		Runs:     runRepo,
	}

	// Candado distribuido solo si hay Redis; sin él basta el candado en proceso.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = lock.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("conexión a Redis")
		}
		deps.Lock = lock.NewRedisRunLock(rdb, "", cfg.Migration.LockTTL)
	}

	patterns := cfg.Migration.CollectorPatterns
	if len(patterns) == 0 {
		patterns = ledger.DefaultCollectorPatterns
	}
	types := make([]entity.MutationType, 0, len(cfg.Migration.Types))
	for _, t := range cfg.Migration.Types {
		types = append(types, entity.MutationType(t))
	}

	coord := migration.NewCoordinator(deps, migration.Options{
		Types:       types,
		Concurrency: cfg.Migration.Concurrency,
		DryRun:      cfg.Migration.DryRun,
		DateFrom:    cfg.Migration.DateFrom,
		DateTo:      cfg.Migration.DateTo,
		Build: migration.BuildSettings{
			Collectors:          ledger.NewCollectorMatcher(patterns),
			IntermediaryAccount: cfg.Migration.IntermediaryAccount,
			ReceivableAccount:   cfg.Migration.ReceivableAccount,
			PayableAccount:      cfg.Migration.PayableAccount,
		},
		Reconcile: migration.ReconcileSettings{
			AmountTolerance: cfg.Migration.AmountTolerance,
			DateWindow:      cfg.Migration.DateWindow,
		},
	})
	migrationUC := migration.NewMigrationUseCase(coord, runRepo, outcomeRepo, queueRepo)

	operators := []entity.Operator{{
		Username:     cfg.Operator.Username,
		PasswordHash: cfg.Operator.PasswordHash,
		Role:         entity.RoleAdmin,
	}}
	if cfg.Operator.ViewerUsername != "" {
		operators = append(operators, entity.Operator{
			Username:     cfg.Operator.ViewerUsername,
			PasswordHash: cfg.Operator.ViewerHash,
			Role:         entity.RoleViewer,
		})
	}
	authUC := auth.NewAuthUseCase(operators, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	sched := scheduler.New(coord, log.Component("scheduler"))
	if err := sched.Schedule(cfg.Migration.Schedule); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.Migration.Schedule).Msg("programación de corridas")
	}
	sched.Start()

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Ledger Migration API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:      authUC,
		MigrationUC: migrationUC,
		JWTSecret:   cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sched.Stop()
	if coord.Cancel() {
		log.Info().Msg("cancelando corrida activa")
	}
	coord.Wait()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	if rdb != nil {
		_ = rdb.Close()
	}

	log.Info().Msg("aplicación detenida")
}
