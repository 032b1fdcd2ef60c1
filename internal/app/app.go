package app

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/pdfpilot/pdfpilot-backend/internal/chat"
	"github.com/pdfpilot/pdfpilot-backend/internal/clients/blobstore"
	"github.com/pdfpilot/pdfpilot-backend/internal/clients/openai"
	"github.com/pdfpilot/pdfpilot-backend/internal/clients/redis"
	"github.com/pdfpilot/pdfpilot-backend/internal/db"
	"github.com/pdfpilot/pdfpilot-backend/internal/handlers"
	"github.com/pdfpilot/pdfpilot-backend/internal/ingestion/extractor"
	"github.com/pdfpilot/pdfpilot-backend/internal/ingestion/pipeline"
	"github.com/pdfpilot/pdfpilot-backend/internal/logger"
	"github.com/pdfpilot/pdfpilot-backend/internal/middleware"
	"github.com/pdfpilot/pdfpilot-backend/internal/repos"
	"github.com/pdfpilot/pdfpilot-backend/internal/server"
)

type App struct {
	Log     *logger.Logger
	DB      *gorm.DB
	Router  *gin.Engine
	Cfg     Config
	limiter redis.RateLimiter
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)
	if cfg.JWTSecret == "" {
		log.Sync()
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	if cfg.VectorProvider == string(VectorProviderPgvector) {
		if err := pg.MigrateVectorTable(); err != nil {
			log.Sync()
			return nil, fmt.Errorf("pgvector migrate: %w", err)
		}
	}
	theDB := pg.DB()

	// Repos
	log.Info("Wiring repos...")
	userRepo := repos.NewUserRepo(theDB, log)
	fileRepo := repos.NewFileRepo(theDB, log)
	messageRepo := repos.NewMessageRepo(theDB, log)

	// Clients
	log.Info("Wiring clients...")
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init openai client: %w", err)
	}
	fetcher, err := blobstore.NewFetcher(log, blobstore.Config{})
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init blob fetcher: %w", err)
	}
	store, err := resolveVectorStore(log, cfg, theDB)
	if err != nil {
		log.Sync()
		return nil, err
	}

	var limiter redis.RateLimiter
	if cfg.RateLimitEnabled {
		limiter, err = redis.NewRateLimiter(log, cfg.RateLimitMax, cfg.RateLimitWindow)
		if err != nil {
			log.Warn("Rate limiter init failed; continuing without it", "error", err)
			limiter = nil
		}
	}

	// Core
	ingest := pipeline.New(log, fileRepo, fetcher, extractor.ExtractPDFPages, openaiClient, store)
	engine := chat.NewEngine(log, fileRepo, messageRepo, openaiClient, store)

	// HTTP surface
	log.Info("Wiring handlers...")
	router := server.NewRouter(server.RouterConfig{
		AllowOrigins:        cfg.AllowOrigins,
		AuthMiddleware:      middleware.NewAuthMiddleware(log, cfg.JWTSecret),
		RateLimitMiddleware: middleware.NewRateLimitMiddleware(log, limiter),
		AuthHandler:         handlers.NewAuthHandler(log, userRepo),
		FileHandler:         handlers.NewFileHandler(log, fileRepo, messageRepo, ingest),
		MessageHandler:      handlers.NewMessageHandler(log, engine),
	})

	return &App{
		Log:     log,
		DB:      theDB,
		Router:  router,
		Cfg:     cfg,
		limiter: limiter,
	}, nil
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.limiter != nil {
		a.limiter.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
