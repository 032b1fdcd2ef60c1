package types

import (
	"time"

	"github.com/google/uuid"
)

type UploadStatus string

const (
	UploadStatusPending    UploadStatus = "PENDING"
	UploadStatusProcessing UploadStatus = "PROCESSING"
	UploadStatusSuccess    UploadStatus = "SUCCESS"
	UploadStatusFailed     UploadStatus = "FAILED"
)

// File is one uploaded PDF. UploadStatus is owned exclusively by the
// ingestion pipeline and only ever moves
// PENDING -> PROCESSING -> {SUCCESS, FAILED}.
type File struct {
	ID           uuid.UUID    `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       uuid.UUID    `gorm:"type:uuid;not null;index" json:"user_id"`
	User         *User        `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Name         string       `gorm:"column:name;not null" json:"name"`
	StorageKey   string       `gorm:"column:storage_key;uniqueIndex;not null" json:"storage_key"`
	URL          string       `gorm:"column:url;not null" json:"url"`
	UploadStatus UploadStatus `gorm:"column:upload_status;not null;default:'PENDING'" json:"upload_status"`
	PageCount    int          `gorm:"column:page_count" json:"page_count"`
	CreatedAt    time.Time    `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:now()" json:"updated_at"`
}

func (File) TableName() string { return "file" }
