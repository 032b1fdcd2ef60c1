package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pdfpilot/pdfpilot-backend/internal/logger"
	"github.com/pdfpilot/pdfpilot-backend/internal/repos"
	"github.com/pdfpilot/pdfpilot-backend/internal/requestdata"
	"github.com/pdfpilot/pdfpilot-backend/internal/types"
)

type AuthHandler struct {
	log      *logger.Logger
	userRepo repos.UserRepo
}

func NewAuthHandler(log *logger.Logger, userRepo repos.UserRepo) *AuthHandler {
	return &AuthHandler{
		log:      log.With("handler", "AuthHandler"),
		userRepo: userRepo,
	}
}

// POST /api/auth/callback
// Syncs the authenticated identity into the local user table; the auth
// provider remains the source of truth.
func (h *AuthHandler) Callback(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("unauthorized"))
		return
	}

	if err := h.userRepo.Upsert(c.Request.Context(), nil, &types.User{
		ID:    rd.UserID,
		Email: rd.UserEmail,
	}); err != nil {
		h.log.Error("Failed to sync user", "user_id", rd.UserID, "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("internal error"))
		return
	}

	RespondOK(c, gin.H{"success": true})
}
