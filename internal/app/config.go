package app

import (
	"strings"
	"time"

	"github.com/pdfpilot/pdfpilot-backend/internal/logger"
	"github.com/pdfpilot/pdfpilot-backend/internal/utils"
)

type VectorProvider string

const (
	VectorProviderPinecone VectorProvider = "pinecone"
	VectorProviderPgvector VectorProvider = "pgvector"
)

type Config struct {
	Mode         string
	Port         string
	JWTSecret    string
	AllowOrigins []string

	VectorProvider string

	RateLimitEnabled bool
	RateLimitMax     int
	RateLimitWindow  time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Mode:           utils.GetEnv("APP_MODE", "development", log),
		Port:           utils.GetEnv("PORT", "8080", log),
		JWTSecret:      utils.GetEnv("JWT_SECRET", "", log),
		VectorProvider: strings.ToLower(utils.GetEnv("VECTOR_PROVIDER", string(VectorProviderPinecone), log)),
	}

	if raw := utils.GetEnv("CORS_ALLOW_ORIGINS", "", log); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
			}
		}
	}

	cfg.RateLimitEnabled = utils.GetEnv("RATE_LIMIT_ENABLED", "false", log) == "true"
	cfg.RateLimitMax = utils.GetEnvAsInt("RATE_LIMIT_MAX", 20, log)
	windowSecs := utils.GetEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60, log)
	cfg.RateLimitWindow = time.Duration(windowSecs) * time.Second

	return cfg
}
