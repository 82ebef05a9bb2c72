package routes

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/navid-f/TutorAppBack/internal/config"
	"github.com/navid-f/TutorAppBack/internal/handlers"
	"github.com/navid-f/TutorAppBack/internal/middleware"
	"github.com/navid-f/TutorAppBack/internal/repository"
	"github.com/navid-f/TutorAppBack/internal/services"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool, logger *slog.Logger) {
	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	creditRepo := repository.NewCreditRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	creditService := services.NewCreditService(db, creditRepo)
	bookingService := services.NewBookingService(db, sessionRepo, userRepo, profileRepo, settingsRepo)
	trialService := services.NewTrialService(profileRepo, logger)
	sweeperService := services.NewSweeperService(sessionRepo, profileRepo, settingsRepo, logger)

	authHandler := handlers.NewAuthHandler(db, userRepo, cfg.JWTSecret)
	bookingHandler := handlers.NewBookingHandler(bookingService)
	creditHandler := handlers.NewCreditHandler(creditService)
	trialHandler := handlers.NewTrialHandler(trialService)
	adminHandler := handlers.NewAdminHandler(sweeperService, trialService, settingsRepo)

	if cfg.EnableMetrics {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}
	if cfg.DocsEnabled() {
		registerDocs(app)
	}

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	sessions := authProtected.Group("/sessions")
	sessions.Post("/book", bookingHandler.BookSession)
	sessions.Get("", bookingHandler.ListSessions)
	sessions.Get("/:id", bookingHandler.GetSession)
	sessions.Post("/:id/cancel", bookingHandler.CancelSession)
	sessions.Post("/:id/reschedule", bookingHandler.RescheduleSession)
	sessions.Post("/:id/join", bookingHandler.JoinSession)

	credits := authProtected.Group("/credits")
	credits.Get("/balance", creditHandler.GetBalance)
	credits.Get("/history", creditHandler.GetHistory)

	trial := authProtected.Group("/trial")
	trial.Get("/status", trialHandler.Status)

	admin := authProtected.Group("/admin")
	admin.Post("/credits/adjust", creditHandler.AdminAdjust)
	admin.Post("/students/:id/convert", adminHandler.ConvertStudent)
	admin.Post("/sweeps/class-statuses", adminHandler.UpdateClassStatuses)
	admin.Post("/sweeps/trial-conversions", adminHandler.ProcessTrialConversions)
	admin.Get("/settings", adminHandler.GetSettings)
	admin.Put("/settings", adminHandler.UpdateSettings)
}
