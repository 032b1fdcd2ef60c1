package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/pdfpilot/pdfpilot-backend/internal/clients/pgvec"
	"github.com/pdfpilot/pdfpilot-backend/internal/clients/pinecone"
	"github.com/pdfpilot/pdfpilot-backend/internal/logger"
)

var (
	newPineconeClient      = pinecone.New
	newPineconeVectorStore = pinecone.NewVectorStore
	newPgvectorStore       = func(log *logger.Logger, db *gorm.DB) (pinecone.VectorStore, error) {
		return pgvec.NewStore(log, db)
	}
)

// resolveVectorStore picks the vector store backend from config. Pinecone
// is the hosted default; pgvector keeps everything in Postgres for
// single-box deployments.
func resolveVectorStore(log *logger.Logger, cfg Config, db *gorm.DB) (pinecone.VectorStore, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.VectorProvider))

	switch provider {
	case string(VectorProviderPgvector):
		log.Info("Selecting vector store provider", "provider", provider)
		vs, err := newPgvectorStore(log, db)
		if err != nil {
			return nil, fmt.Errorf("pgvector store init: %w", err)
		}
		return vs, nil

	case string(VectorProviderPinecone):
		log.Info("Selecting vector store provider", "provider", provider)
		pc, err := newPineconeClient(log, pinecone.Config{
			APIKey:     strings.TrimSpace(os.Getenv("PINECONE_API_KEY")),
			APIVersion: strings.TrimSpace(os.Getenv("PINECONE_API_VERSION")),
			BaseURL:    strings.TrimSpace(os.Getenv("PINECONE_BASE_URL")),
			Timeout:    30 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("pinecone client init: %w", err)
		}
		vs, err := newPineconeVectorStore(log, pc)
		if err != nil {
			return nil, fmt.Errorf("pinecone vector store init: %w", err)
		}
		return vs, nil

	default:
		return nil, fmt.Errorf("unsupported vector provider %q", provider)
	}
}
