package types

import (
	"time"

	"github.com/google/uuid"
)

// Message is one conversation turn for a file. Rows are immutable once
// created; creation order is the only ordering the answer engine relies on.
type Message struct {
	ID            uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	FileID        uuid.UUID `gorm:"type:uuid;not null;index:idx_message_file_created" json:"file_id"`
	File          *File     `gorm:"constraint:OnDelete:CASCADE;foreignKey:FileID;references:ID" json:"file,omitempty"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	IsUserMessage bool      `gorm:"column:is_user_message;not null" json:"is_user_message"`
	Text          string    `gorm:"column:text;type:text;not null" json:"text"`
	CreatedAt     time.Time `gorm:"not null;default:now();index:idx_message_file_created" json:"created_at"`
}

func (Message) TableName() string { return "message" }
