package pgvec

import (
	"context"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pdfpilot/pdfpilot-backend/internal/clients/pinecone"
	"github.com/pdfpilot/pdfpilot-backend/internal/logger"
	"github.com/pdfpilot/pdfpilot-backend/internal/types"
)

// Store implements pinecone.VectorStore on a Postgres table with the
// pgvector extension, so local/dev setups run without a hosted index.
// Cosine distance ordering matches the hosted index's metric.
type Store struct {
	log *logger.Logger
	db  *gorm.DB
}

func NewStore(log *logger.Logger, db *gorm.DB) (*Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &Store{log: log.With("service", "PgvectorStore"), db: db}, nil
}

func (s *Store) Upsert(ctx context.Context, namespace string, vectors []pinecone.Vector) error {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return fmt.Errorf("namespace required")
	}
	if len(vectors) == 0 {
		return nil
	}

	rows := make([]*types.FileVector, 0, len(vectors))
	for _, v := range vectors {
		row := &types.FileVector{
			VectorID:  v.ID,
			Namespace: namespace,
			Embedding: pgvector.NewVector(v.Values),
		}
		if text, ok := v.Metadata["text"].(string); ok {
			row.Text = text
		}
		switch page := v.Metadata["page"].(type) {
		case int:
			row.Page = page
		case float64:
			row.Page = int(page)
		}
		rows = append(rows, row)
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "vector_id"}, {Name: "namespace"}},
			DoUpdates: clause.AssignmentColumns([]string{"embedding", "text", "page"}),
		}).
		Create(&rows).Error
}

func (s *Store) Query(ctx context.Context, namespace string, q []float32, topK int) ([]pinecone.Match, error) {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return nil, fmt.Errorf("namespace required")
	}
	if len(q) == 0 {
		return nil, fmt.Errorf("query vector required")
	}
	if topK <= 0 {
		topK = 10
	}

	var rows []struct {
		VectorID string
		Text     string
		Page     int
		Distance float64
	}
	if err := s.db.WithContext(ctx).
		Model(&types.FileVector{}).
		Select("vector_id, text, page, embedding <=> ? AS distance", pgvector.NewVector(q)).
		Where("namespace = ?", namespace).
		Order("distance ASC").
		Limit(topK).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]pinecone.Match, 0, len(rows))
	for _, r := range rows {
		out = append(out, pinecone.Match{
			ID:    r.VectorID,
			Score: 1 - r.Distance,
			Text:  r.Text,
			Page:  r.Page,
		})
	}
	return out, nil
}
