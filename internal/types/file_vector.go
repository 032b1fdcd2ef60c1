package types

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// FileVector is one indexed chunk when the pgvector provider is active.
// VectorID matches the key used with the hosted index
// ("<fileID>-page-<n>") so re-ingestion overwrites rather than duplicates.
type FileVector struct {
	VectorID  string          `gorm:"column:vector_id;primaryKey" json:"vector_id"`
	Namespace string          `gorm:"column:namespace;primaryKey;index" json:"namespace"`
	Embedding pgvector.Vector `gorm:"column:embedding;type:vector(1536)" json:"-"`
	Text      string          `gorm:"column:text;type:text;not null" json:"text"`
	Page      int             `gorm:"column:page" json:"page"`
	CreatedAt time.Time       `gorm:"not null;default:now()" json:"created_at"`
}

func (FileVector) TableName() string { return "file_vector" }
