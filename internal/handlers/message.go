package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pdfpilot/pdfpilot-backend/internal/chat"
	"github.com/pdfpilot/pdfpilot-backend/internal/logger"
	"github.com/pdfpilot/pdfpilot-backend/internal/requestdata"
)

type MessageHandler struct {
	log    *logger.Logger
	engine chat.Engine
}

func NewMessageHandler(log *logger.Logger, engine chat.Engine) *MessageHandler {
	return &MessageHandler{
		log:    log.With("handler", "MessageHandler"),
		engine: engine,
	}
}

type sendMessageRequest struct {
	FileID  string `json:"fileId"`
	Message string `json:"message"`
}

// POST /api/message
// Streams the assistant's answer as plain text fragments. The response
// body is the raw answer text; the client renders it incrementally.
func (h *MessageHandler) Send(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("unauthorized"))
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_argument", errors.New("malformed request body"))
		return
	}
	fileID, err := uuid.Parse(strings.TrimSpace(req.FileID))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_argument", errors.New("invalid fileId"))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		RespondError(c, http.StatusBadRequest, "invalid_argument", errors.New("message is required"))
		return
	}

	stream, err := h.engine.Answer(c.Request.Context(), rd.UserID, fileID, req.Message)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)
	for {
		fragment, err := stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			// Headers are already out; all we can do is stop the body
			// and leave the client with a truncated stream.
			h.log.Warn("Answer stream failed mid-flight", "file_id", fileID, "error", err)
			c.Abort()
			return
		}
		if _, err := c.Writer.WriteString(fragment); err != nil {
			h.log.Debug("Client disconnected during stream", "file_id", fileID, "error", err)
			c.Abort()
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
