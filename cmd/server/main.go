package main // Entry point package

import (
	"log" // Logging library

	"github.com/joho/godotenv"    // .env loader for local development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/bravethingsbooks/platform-api/internal/config"
	"github.com/bravethingsbooks/platform-api/internal/database"
	"github.com/bravethingsbooks/platform-api/internal/handler"
	"github.com/bravethingsbooks/platform-api/internal/limiter"
	"github.com/bravethingsbooks/platform-api/internal/middleware"
	"github.com/bravethingsbooks/platform-api/internal/queue"
	"github.com/bravethingsbooks/platform-api/internal/repository"
	"github.com/bravethingsbooks/platform-api/internal/router"
)

func main() {
	_ = godotenv.Load() // best-effort; real deployments set env directly

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis backs the lockout store, rate limiting and the summary cache.
	// A nil client degrades: lockouts fall back to process-local memory,
	// rate limiting and caching turn off.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; lockouts are process-local, rate limiting and caching disabled")
	}

	var lockoutStore limiter.Store
	if rdb != nil {
		lockoutStore = limiter.NewRedisStore(rdb)
	} else {
		lockoutStore = limiter.NewMemoryStore()
	}
	lockout := limiter.New(lockoutStore, config.LoadLockoutConfig())

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	purchases := repository.NewPurchaseRepo(db)
	bookTokens := repository.NewBookTokenRepo(db)
	settings := repository.NewSettingsRepo(db)
	progress := repository.NewProgressRepo(db)
	bookmarks := repository.NewBookmarkRepo(db)
	sessions := repository.NewSessionRepo(db)
	analyticsRepo := repository.NewAnalyticsRepo(db)

	authH := handler.NewAuthHandler(cfg, users, tokens, lockout)
	bookAccessH := handler.NewBookAccessHandler(cfg, users, purchases, bookTokens, settings, bookmarks, progress, sessions)
	progressH := handler.NewProgressHandler(cfg, progress, bookmarks)
	analyticsH := handler.NewAnalyticsHandler(cfg, analyticsRepo, sessions)
	adminH := handler.NewAdminSettingsHandler(cfg, settings)

	e := echo.New()
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	cacheMW := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterBookAccess(e, bookAccessH, progressH, analyticsH, cfg.JWTSecret, cacheMW)
	router.RegisterAdmin(e, adminH, cfg.JWTSecret)

	// Telemetry consumer runs for the life of the process, reconnecting on
	// broker failures.
	go func() {
		if err := queue.StartTelemetryConsumer(); err != nil {
			log.Printf("telemetry consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
