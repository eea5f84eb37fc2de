package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/robumart/platform/internal/auth"
	"github.com/robumart/platform/internal/domain"
	"github.com/robumart/platform/internal/service"
)

// UserHandler handles profile, account linking and referral endpoints.
type UserHandler struct {
	users    *service.UserService
	payments *service.PaymentService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *service.UserService, payments *service.PaymentService) *UserHandler {
	return &UserHandler{users: users, payments: payments}
}

// GetMe handles GET /me.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	user, err := h.users.GetProfile(r.Context(), userID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, user)
}

// LinkExchangeUID handles POST /me/exchange-uid.
func (h *UserHandler) LinkExchangeUID(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var input struct {
		UID string `json:"uid"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	if err := h.users.LinkExchangeUID(r.Context(), userID, input.UID); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "linked"})
}

// Referrals handles GET /referrals.
func (h *UserHandler) Referrals(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	summary, err := h.users.Referrals(r.Context(), userID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, summary)
}

// TransferReferral handles POST /referrals/transfer. It moves referral
// earnings onto the spendable balance.
func (h *UserHandler) TransferReferral(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var input struct {
		Amount int64 `json:"amount"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	if err := h.payments.TransferReferral(r.Context(), userID, input.Amount); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "transferred"})
}

// userIDFromContext extracts and validates the user UUID from auth context.
func userIDFromContext(r *http.Request) (uuid.UUID, error) {
	sub := auth.SubjectFromContext(r.Context())
	if sub == "" {
		return uuid.Nil, domain.ErrUnauthorized("no subject in context")
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, domain.ErrUnauthorized("invalid subject")
	}
	return id, nil
}
