package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pdfpilot/pdfpilot-backend/internal/ingestion/pipeline"
	"github.com/pdfpilot/pdfpilot-backend/internal/logger"
	"github.com/pdfpilot/pdfpilot-backend/internal/repos"
	"github.com/pdfpilot/pdfpilot-backend/internal/requestdata"
	"github.com/pdfpilot/pdfpilot-backend/internal/types"
)

// DefaultMessagePageSize is the page size the UI's infinite scroll
// requests; kept in one place so both sides agree.
const DefaultMessagePageSize = 10

type FileHandler struct {
	log         *logger.Logger
	fileRepo    repos.FileRepo
	messageRepo repos.MessageRepo
	ingestion   pipeline.Pipeline
}

func NewFileHandler(log *logger.Logger, fileRepo repos.FileRepo, messageRepo repos.MessageRepo, ingestion pipeline.Pipeline) *FileHandler {
	return &FileHandler{
		log:         log.With("handler", "FileHandler"),
		fileRepo:    fileRepo,
		messageRepo: messageRepo,
		ingestion:   ingestion,
	}
}

// GET /api/files
func (h *FileHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("unauthorized"))
		return
	}

	files, err := h.fileRepo.ListByUser(c.Request.Context(), nil, rd.UserID)
	if err != nil {
		h.log.Error("Failed to list files", "user_id", rd.UserID, "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("internal error"))
		return
	}
	RespondOK(c, gin.H{"files": files})
}

type uploadCompleteRequest struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// POST /api/files/upload-complete
// Called by the upload service once the blob is durable. Creates the file
// record and launches ingestion out-of-band; the UI polls upload-status.
func (h *FileHandler) UploadComplete(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("unauthorized"))
		return
	}

	var req uploadCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_argument", errors.New("malformed request body"))
		return
	}
	req.Key = strings.TrimSpace(req.Key)
	req.Name = strings.TrimSpace(req.Name)
	req.URL = strings.TrimSpace(req.URL)
	if req.Key == "" || req.Name == "" || req.URL == "" {
		RespondError(c, http.StatusBadRequest, "invalid_argument", errors.New("key, name, and url are required"))
		return
	}

	existing, err := h.fileRepo.GetByKeyAndUser(c.Request.Context(), nil, req.Key, rd.UserID)
	if err != nil {
		h.log.Error("Failed to check for existing file", "storage_key", req.Key, "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("internal error"))
		return
	}
	if existing != nil {
		RespondError(c, http.StatusConflict, "already_exists", errors.New("file already registered"))
		return
	}

	file, err := h.fileRepo.Create(c.Request.Context(), nil, &types.File{
		UserID:       rd.UserID,
		Name:         req.Name,
		StorageKey:   req.Key,
		URL:          req.URL,
		UploadStatus: types.UploadStatusPending,
	})
	if err != nil {
		h.log.Error("Failed to create file record", "storage_key", req.Key, "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("internal error"))
		return
	}

	// Ingestion runs detached from the request; its errors land in the
	// logs and in the file's upload status, not in this response.
	go func(f types.File) {
		if err := h.ingestion.Ingest(context.Background(), &f); err != nil {
			h.log.Warn("Ingestion run failed", "file_id", f.ID, "error", err)
		}
	}(*file)

	c.JSON(http.StatusCreated, gin.H{"file": file})
}

// GET /api/files/:id/upload-status
// PENDING when the record does not exist yet: the upload-complete webhook
// may not have landed, which is not an error from the UI's point of view.
func (h *FileHandler) UploadStatus(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("unauthorized"))
		return
	}

	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_argument", errors.New("invalid file id"))
		return
	}

	file, err := h.fileRepo.GetByIDAndUser(c.Request.Context(), nil, fileID, rd.UserID)
	if err != nil {
		h.log.Error("Failed to load file", "file_id", fileID, "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("internal error"))
		return
	}
	if file == nil {
		RespondOK(c, gin.H{"status": types.UploadStatusPending})
		return
	}
	RespondOK(c, gin.H{"status": file.UploadStatus})
}

// GET /api/files/:id/messages?cursor=&limit=
func (h *FileHandler) ListMessages(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("unauthorized"))
		return
	}

	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_argument", errors.New("invalid file id"))
		return
	}

	file, err := h.fileRepo.GetByIDAndUser(c.Request.Context(), nil, fileID, rd.UserID)
	if err != nil {
		h.log.Error("Failed to load file", "file_id", fileID, "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("internal error"))
		return
	}
	if file == nil {
		RespondError(c, http.StatusNotFound, "not_found", errors.New("not found"))
		return
	}

	limit := DefaultMessagePageSize
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 100 {
			RespondError(c, http.StatusBadRequest, "invalid_argument", errors.New("invalid limit"))
			return
		}
		limit = parsed
	}

	var cursor *uuid.UUID
	if v := c.Query("cursor"); v != "" {
		parsed, err := uuid.Parse(v)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_argument", errors.New("invalid cursor"))
			return
		}
		cursor = &parsed
	}

	page, err := h.messageRepo.ListByFileCursor(c.Request.Context(), nil, fileID, cursor, limit)
	if err != nil {
		h.log.Error("Failed to list messages", "file_id", fileID, "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("internal error"))
		return
	}

	resp := gin.H{"messages": page.Messages}
	if page.NextCursor != nil {
		resp["nextCursor"] = page.NextCursor
	}
	RespondOK(c, resp)
}

// DELETE /api/files/:id
func (h *FileHandler) Delete(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("unauthorized"))
		return
	}

	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_argument", errors.New("invalid file id"))
		return
	}

	file, err := h.fileRepo.GetByIDAndUser(c.Request.Context(), nil, fileID, rd.UserID)
	if err != nil {
		h.log.Error("Failed to load file", "file_id", fileID, "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("internal error"))
		return
	}
	if file == nil {
		RespondError(c, http.StatusNotFound, "not_found", errors.New("not found"))
		return
	}

	if err := h.fileRepo.FullDeleteByID(c.Request.Context(), nil, fileID); err != nil {
		h.log.Error("Failed to delete file", "file_id", fileID, "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("internal error"))
		return
	}
	RespondOK(c, gin.H{"file": file})
}
