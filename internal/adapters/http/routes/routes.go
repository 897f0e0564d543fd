package routes

import (
	"circlefund/internal/adapters/http/handlers"
	"circlefund/internal/adapters/http/middleware"
	"circlefund/internal/adapters/persistence/repositories"
	"circlefund/internal/config"
	"circlefund/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"gorm.io/gorm"
)

// Setup configures all routes for the application
func Setup(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	refreshTokenRepo := repositories.NewRefreshTokenRepository(db)
	creditRepo := repositories.NewCreditRepository(db)
	circleRepo := repositories.NewCircleRepository(db)
	proposalRepo := repositories.NewProposalRepository(db)
	reserveRepo := repositories.NewReserveRepository(db)
	transactionRepo := repositories.NewTransactionRepository(db)

	// Initialize services
	authService := services.NewAuthService(userRepo, refreshTokenRepo, cfg)
	creditService := services.NewCreditService(creditRepo)
	reserveService := services.NewReserveService(reserveRepo)
	factoryService := services.NewFactoryService(db, circleRepo, transactionRepo, creditService, reserveService)
	circleService := services.NewCircleService(db, circleRepo, transactionRepo, creditService, reserveService)
	payoutService := services.NewPayoutService(db, circleRepo, proposalRepo, transactionRepo, creditService, reserveService)
	dashboardService := services.NewDashboardService(circleRepo, creditRepo, reserveService)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(authService, cfg)
	creditHandler := handlers.NewCreditHandler(creditService)
	circleHandler := handlers.NewCircleHandler(factoryService, circleService)
	payoutHandler := handlers.NewPayoutHandler(payoutService)
	reserveHandler := handlers.NewReserveHandler(reserveService, factoryService)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API v1 group
	apiV1 := app.Group("/api/v1")
	setupAPIV1Routes(apiV1, authHandler, creditHandler, circleHandler,
		payoutHandler, reserveHandler, dashboardHandler, cfg)
}

// setupAPIV1Routes configures API v1 routes
func setupAPIV1Routes(
	router fiber.Router,
	authHandler *handlers.AuthHandler,
	creditHandler *handlers.CreditHandler,
	circleHandler *handlers.CircleHandler,
	payoutHandler *handlers.PayoutHandler,
	reserveHandler *handlers.ReserveHandler,
	dashboardHandler *handlers.DashboardHandler,
	cfg *config.Config,
) {
	// ============================================================
	// Auth routes (public, stricter rate limit)
	// ============================================================
	auth := router.Group("/auth")
	auth.Post("/register", middleware.AuthRateLimiter(), authHandler.Register)
	auth.Post("/login", middleware.AuthRateLimiter(), authHandler.Login)
	auth.Post("/refresh", authHandler.RefreshToken)
	auth.Post("/logout", authHandler.Logout)
	auth.Post("/logout-all", middleware.AuthMiddleware(cfg), authHandler.LogoutAll)

	// ============================================================
	// Credit ledger routes
	// ============================================================
	credit := router.Group("/credit", middleware.AuthMiddleware(cfg))
	credit.Get("/me", creditHandler.GetMyProfile)
	credit.Get("/:memb_no/score", creditHandler.GetScore)

	// ============================================================
	// Circle routes
	// ============================================================
	circles := router.Group("/circles", middleware.AuthMiddleware(cfg))
	circles.Post("/", circleHandler.Create)
	circles.Get("/", circleHandler.List)
	circles.Get("/mine", circleHandler.ListMine)
	circles.Get("/created", circleHandler.ListCreated)
	circles.Get("/:code", circleHandler.Get)
	circles.Post("/:code/join", circleHandler.Join)
	circles.Post("/:code/participants/:memb_no/approve", circleHandler.Approve)
	circles.Post("/:code/participants/:memb_no/reject", circleHandler.Reject)
	circles.Post("/:code/contributions", circleHandler.Contribute)
	circles.Post("/:code/participants/:memb_no/late", circleHandler.RecordLate)
	circles.Post("/:code/participants/:memb_no/default", circleHandler.RecordDefault)
	circles.Post("/:code/withdraw", circleHandler.Withdraw)
	circles.Post("/:code/fund", circleHandler.Fund)
	circles.Get("/:code/transactions", circleHandler.Transactions)
	circles.Get("/:code/payments/:month", circleHandler.PaymentStatus)

	// Payout routes (execution has the strictest rate limit)
	circles.Post("/:code/payouts/propose", payoutHandler.Propose)
	circles.Post("/:code/payouts/vote", payoutHandler.Vote)
	circles.Post("/:code/payouts/execute", middleware.StrictRateLimiter(), payoutHandler.Execute)
	circles.Get("/:code/payouts/:month", payoutHandler.GetProposal)

	// ============================================================
	// Reserve pool routes
	// ============================================================
	reserve := router.Group("/reserve", middleware.AuthMiddleware(cfg))
	reserve.Get("/", reserveHandler.Stats)
	reserve.Get("/circles/:code", reserveHandler.Status)
	reserve.Post("/circles/:code/revoke", middleware.AdminOnly(), reserveHandler.Revoke)

	// ============================================================
	// Dashboard routes (admin only)
	// ============================================================
	dashboard := router.Group("/dashboard", middleware.AuthMiddleware(cfg), middleware.AdminOnly())
	dashboard.Get("/", dashboardHandler.Overview)
}
