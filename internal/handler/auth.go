package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/robumart/platform/internal/auth"
	"github.com/robumart/platform/internal/domain"
	"github.com/robumart/platform/internal/service"
)

// AuthHandler handles Telegram login.
type AuthHandler struct {
	users    *service.UserService
	jwtMgr   *auth.JWTManager
	botToken string
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(users *service.UserService, jwtMgr *auth.JWTManager, botToken string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{users: users, jwtMgr: jwtMgr, botToken: botToken, logger: logger}
}

type telegramLoginRequest struct {
	auth.TelegramLogin
	ReferrerID string `json:"referrer_id,omitempty"`
}

type loginResponse struct {
	Token      string       `json:"token"`
	AdminToken string       `json:"admin_token,omitempty"`
	User       *domain.User `json:"user"`
}

// TelegramLogin handles POST /auth/telegram. The widget payload is verified
// against the bot token before any account is touched.
func (h *AuthHandler) TelegramLogin(w http.ResponseWriter, r *http.Request) {
	var req telegramLoginRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	if err := auth.VerifyTelegramLogin(&req.TelegramLogin, h.botToken, time.Now()); err != nil {
		h.logger.Warn("telegram login rejected", "telegram_id", req.ID, "error", err)
		RespondError(w, domain.ErrUnauthorized("telegram login verification failed"))
		return
	}

	var referrerID *uuid.UUID
	if req.ReferrerID != "" {
		if id, err := uuid.Parse(req.ReferrerID); err == nil {
			referrerID = &id
		}
	}

	user, err := h.users.UpsertTelegramUser(r.Context(), service.TelegramProfile{
		TelegramID: req.ID,
		Username:   req.Username,
		FirstName:  req.FirstName,
	}, referrerID)
	if err != nil {
		RespondError(w, err)
		return
	}

	token, err := h.jwtMgr.GenerateToken(auth.RealmUser, user.ID, string(user.Role))
	if err != nil {
		RespondError(w, domain.ErrInternal("generate token", err))
		return
	}

	resp := loginResponse{Token: token, User: user}
	if user.IsAdmin() {
		adminToken, err := h.jwtMgr.GenerateToken(auth.RealmAdmin, user.ID, string(user.Role))
		if err != nil {
			RespondError(w, domain.ErrInternal("generate admin token", err))
			return
		}
		resp.AdminToken = adminToken
	}

	RespondJSON(w, http.StatusOK, resp)
}
