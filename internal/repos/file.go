package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pdfpilot/pdfpilot-backend/internal/logger"
	"github.com/pdfpilot/pdfpilot-backend/internal/types"
)

type FileRepo interface {
	Create(ctx context.Context, tx *gorm.DB, file *types.File) (*types.File, error)
	GetByIDAndUser(ctx context.Context, tx *gorm.DB, fileID, userID uuid.UUID) (*types.File, error)
	GetByKeyAndUser(ctx context.Context, tx *gorm.DB, storageKey string, userID uuid.UUID) (*types.File, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.File, error)
	UpdateUploadStatus(ctx context.Context, tx *gorm.DB, fileID uuid.UUID, status types.UploadStatus) error
	SetPageCount(ctx context.Context, tx *gorm.DB, fileID uuid.UUID, pageCount int) error
	FullDeleteByID(ctx context.Context, tx *gorm.DB, fileID uuid.UUID) error
}

type fileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFileRepo(db *gorm.DB, baseLog *logger.Logger) FileRepo {
	return &fileRepo{db: db, log: baseLog.With("repo", "FileRepo")}
}

func (r *fileRepo) Create(ctx context.Context, tx *gorm.DB, file *types.File) (*types.File, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(file).Error; err != nil {
		return nil, err
	}
	return file, nil
}

func (r *fileRepo) GetByIDAndUser(ctx context.Context, tx *gorm.DB, fileID, userID uuid.UUID) (*types.File, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var file types.File
	err := transaction.WithContext(ctx).
		Where("id = ? AND user_id = ?", fileID, userID).
		First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *fileRepo) GetByKeyAndUser(ctx context.Context, tx *gorm.DB, storageKey string, userID uuid.UUID) (*types.File, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var file types.File
	err := transaction.WithContext(ctx).
		Where("storage_key = ? AND user_id = ?", storageKey, userID).
		First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *fileRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.File, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.File
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *fileRepo) UpdateUploadStatus(ctx context.Context, tx *gorm.DB, fileID uuid.UUID, status types.UploadStatus) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.File{}).
		Where("id = ?", fileID).
		Update("upload_status", status).Error
}

func (r *fileRepo) SetPageCount(ctx context.Context, tx *gorm.DB, fileID uuid.UUID, pageCount int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.File{}).
		Where("id = ?", fileID).
		Update("page_count", pageCount).Error
}

func (r *fileRepo) FullDeleteByID(ctx context.Context, tx *gorm.DB, fileID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("id = ?", fileID).
		Delete(&types.File{}).Error
}
