package app

import (
	"errors"

	"lethex-backend/internal/approvals"
	"lethex-backend/internal/auth"
	"lethex-backend/internal/commissions"
	"lethex-backend/internal/config"
	"lethex-backend/internal/constants"
	"lethex-backend/internal/database"
	"lethex-backend/internal/health"
	"lethex-backend/internal/holders"
	"lethex-backend/internal/holdings"
	"lethex-backend/internal/ledger"
	"lethex-backend/internal/middleware"
	"lethex-backend/internal/pkg/keylock"
	"lethex-backend/internal/prices"
	"lethex-backend/internal/tokens"
	"lethex-backend/internal/transactions"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server is the assembled application. Poller is not started here; the
// long-running binary starts it, serverless entry points do not.
type Server struct {
	App    *fiber.App
	DB     *gorm.DB
	Redis  *redis.Client
	Poller *prices.Poller
}

// Open connects the database and Redis named by cfg. The schema is migrated
// on every start.
func Open(cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, errors.New("database url is not configured")
	}
	if cfg.RedisURL == "" {
		return nil, nil, errors.New("REDIS_URL is not configured")
	}
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, nil, err
	}
	rdb, err := middleware.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return db, rdb, nil
}

// CreateApp opens the stores and builds the Fiber app with every route.
func CreateApp(cfg *config.Config) (*Server, error) {
	db, rdb, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	return New(cfg, db, rdb)
}

// New builds the Fiber app on already-open stores.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*Server, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.FrontendOrigins,
		AllowedSuffix:  cfg.FrontendURLEndsWith,
		AllowLocalhost: !cfg.IsProduction(),
		DevPassword:    cfg.DevPassword,
	}))
	app.Use(middleware.Session(rdb))
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	sessionCfg := middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.IsProduction(),
	}

	// stores and services
	locks := keylock.New()
	led := &ledger.Ledger{DB: db, Locks: locks}
	sessions := &auth.SessionStore{RDB: rdb}
	priceCache := &prices.Cache{RDB: rdb, TTL: cfg.PriceCacheTTL}
	holderSvc := &holders.Service{DB: db, Sessions: sessions}
	tokenSvc := &tokens.Service{DB: db}
	txSvc := &transactions.Service{DB: db, FeeRate: cfg.SwapFeeRate}
	commissionSvc := &commissions.Service{DB: db}
	holdingsSvc, err := holdings.NewService(db, led, priceCache, cfg.ActiveAssetsCacheTTL)
	if err != nil {
		return nil, err
	}
	engine := &approvals.Engine{DB: db, Ledger: led, Commissions: commissionSvc, Views: holdingsSvc}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// health (no auth)
	healthHandlers := &health.Handlers{Rdb: rdb, DB: sqlDB, HealthAdminKey: cfg.HealthAdminKey}
	app.Get("/", healthHandlers.JSON)
	app.Get("/reset", healthHandlers.Reset)
	app.Get("/health/json", healthHandlers.JSON)
	app.Get("/health/errors", healthHandlers.Errors)

	// auth (no auth middleware)
	authHandlers := &auth.Handlers{
		Auth:     &auth.GormAuthenticator{DB: db, Holders: holderSvc},
		Sessions: sessions,
		Config:   sessionCfg,
	}
	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/admin/login", authHandlers.AdminLogin)
	authGroup.Post("/holder/login", authHandlers.HolderLogin)
	authGroup.Get("/me", authHandlers.Me)
	authGroup.Delete("/logout", authHandlers.Logout)

	tokenHandlers := &tokens.Handlers{Service: tokenSvc}
	holderHandlers := &holders.Handlers{Service: holderSvc}
	txHandlers := &transactions.Handlers{Service: txSvc}
	approvalHandlers := &approvals.Handlers{Engine: engine}
	holdingsHandlers := &holdings.Handlers{Service: holdingsSvc}
	commissionHandlers := &commissions.Handlers{Service: commissionSvc}

	app.Get("/api/v1/tokens", middleware.RequireAuth(), tokenHandlers.List)

	// holder routes
	holderGroup := app.Group("/api/v1/holder", middleware.RequireRole(constants.Holder))
	holderGroup.Get("/portfolio", middleware.AuthorizePermission(constants.ViewPortfolio), holdingsHandlers.MyPortfolio)
	holderGroup.Get("/transactions", middleware.AuthorizePermission(constants.ViewPortfolio), txHandlers.ListMine)
	holderGroup.Post("/transactions", middleware.AuthorizePermission(constants.RequestTransactions), txHandlers.Create)

	// admin routes
	admin := app.Group("/api/v1/admin", middleware.RequireRole(constants.Admin))

	admin.Post("/tokens", middleware.AuthorizePermission(constants.ManageTokens), tokenHandlers.Create)
	admin.Patch("/tokens/:symbol", middleware.AuthorizePermission(constants.ManageTokens), tokenHandlers.Update)
	admin.Delete("/tokens/:symbol", middleware.AuthorizePermission(constants.ManageTokens), tokenHandlers.Delete)

	admin.Get("/holders", middleware.AuthorizePermission(constants.ManageHolders), holderHandlers.List)
	admin.Post("/holders", middleware.AuthorizePermission(constants.ManageHolders), holderHandlers.Create)
	admin.Get("/holders/:id", middleware.AuthorizePermission(constants.ManageHolders), holderHandlers.Get)
	admin.Patch("/holders/:id", middleware.AuthorizePermission(constants.ManageHolders), holderHandlers.Update)
	admin.Delete("/holders/:id", middleware.AuthorizePermission(constants.ManageHolders), holderHandlers.Delete)
	admin.Post("/holders/:id/rotate-code", middleware.AuthorizePermission(constants.ManageHolders), holderHandlers.RotateAccessCode)
	admin.Get("/holders/:id/portfolio", middleware.AuthorizePermission(constants.ViewReports), holdingsHandlers.HolderPortfolio)
	admin.Put("/holders/:id/balances", middleware.AuthorizePermission(constants.AssignBalances), holdingsHandlers.AssignBalance)

	admin.Get("/assets/active", middleware.AuthorizePermission(constants.ViewReports), holdingsHandlers.ActiveAssets)

	admin.Get("/transactions/pending", middleware.AuthorizePermission(constants.ApproveTransactions), txHandlers.ListPending)
	admin.Get("/transactions/history", middleware.AuthorizePermission(constants.ViewReports), txHandlers.ListHistory)
	admin.Get("/transactions/:id", middleware.AuthorizePermission(constants.ViewReports), txHandlers.Get)
	admin.Post("/transactions/:id/approve", middleware.AuthorizePermission(constants.ApproveTransactions), approvalHandlers.Approve)
	admin.Post("/transactions/:id/reject", middleware.AuthorizePermission(constants.ApproveTransactions), approvalHandlers.Reject)

	admin.Get("/commissions", middleware.AuthorizePermission(constants.ViewReports), commissionHandlers.List)
	admin.Get("/commissions/summary", middleware.AuthorizePermission(constants.ViewReports), commissionHandlers.GetSummary)
	admin.Post("/commissions/reconcile", middleware.AuthorizePermission(constants.ViewReports), commissionHandlers.Reconcile)

	poller := &prices.Poller{
		DB:       db,
		Source:   prices.NewCoinGecko(cfg.PriceFeedURL),
		Cache:    priceCache,
		Interval: cfg.PricePollInterval,
	}
	return &Server{App: app, DB: db, Redis: rdb, Poller: poller}, nil
}
