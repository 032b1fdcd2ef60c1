package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pdfpilot/pdfpilot-backend/internal/logger"
	"github.com/pdfpilot/pdfpilot-backend/internal/types"
)

// MessagePage is one page of a file's conversation, newest first.
// NextCursor is nil when no older messages remain.
type MessagePage struct {
	Messages   []*types.Message
	NextCursor *uuid.UUID
}

type MessageRepo interface {
	Create(ctx context.Context, tx *gorm.DB, msg *types.Message) (*types.Message, error)
	// ListRecentByFile returns up to limit of the newest messages for a
	// file, newest first.
	ListRecentByFile(ctx context.Context, tx *gorm.DB, fileID uuid.UUID, limit int) ([]*types.Message, error)
	// ListByFileCursor pages backwards through a file's conversation.
	// cursor is the id of the last message the caller has already seen.
	ListByFileCursor(ctx context.Context, tx *gorm.DB, fileID uuid.UUID, cursor *uuid.UUID, limit int) (*MessagePage, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: baseLog.With("repo", "MessageRepo")}
}

func (r *messageRepo) Create(ctx context.Context, tx *gorm.DB, msg *types.Message) (*types.Message, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *messageRepo) ListRecentByFile(ctx context.Context, tx *gorm.DB, fileID uuid.UUID, limit int) ([]*types.Message, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		return []*types.Message{}, nil
	}
	var results []*types.Message
	if err := transaction.WithContext(ctx).
		Where("file_id = ?", fileID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *messageRepo) ListByFileCursor(ctx context.Context, tx *gorm.DB, fileID uuid.UUID, cursor *uuid.UUID, limit int) (*MessagePage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(ctx).
		Where("file_id = ?", fileID)

	if cursor != nil {
		var anchor types.Message
		err := transaction.WithContext(ctx).
			Where("id = ? AND file_id = ?", *cursor, fileID).
			First(&anchor).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &MessagePage{Messages: []*types.Message{}}, nil
		}
		if err != nil {
			return nil, err
		}
		q = q.Where("(created_at, id) < (?, ?)", anchor.CreatedAt, anchor.ID)
	}

	// One extra row decides whether another page exists.
	var results []*types.Message
	if err := q.
		Order("created_at DESC, id DESC").
		Limit(limit + 1).
		Find(&results).Error; err != nil {
		return nil, err
	}

	page := &MessagePage{Messages: results}
	if len(results) > limit {
		page.Messages = results[:limit]
		last := page.Messages[len(page.Messages)-1].ID
		page.NextCursor = &last
	}
	return page, nil
}
