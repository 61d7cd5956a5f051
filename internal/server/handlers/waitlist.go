package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/opposia/waitlist/internal/errors"
	"github.com/opposia/waitlist/internal/observability"
	"github.com/opposia/waitlist/internal/server/middleware"
	"github.com/opposia/waitlist/internal/waitlist"
)

// Public messages
const (
	msgInvalidBody      = "Invalid request body"
	msgInvalidEmail     = "Valid email is required"
	msgRateLimited      = "Too many requests, please try again later"
	msgSignupFailed     = "Failed to process signup"
	msgSignupOK         = "Successfully joined waitlist"
	msgFetchFailed      = "Failed to fetch signups"
	msgUnauthorized     = "Unauthorized"
	msgAdminDisabled    = "Admin access is not configured"
	msgPayloadTooLarge  = "Request entity too large"
	bearerPrefix        = "Bearer "
	authorizationHeader = "Authorization"
)

// WaitlistService is the signup flow the handlers drive.
type WaitlistService interface {
	Signup(ctx context.Context, email, clientKey string) (waitlist.Outcome, error)
	List(ctx context.Context) ([]waitlist.Signup, error)
}

// SignupResponse is the body of a successful POST /waitlist.
type SignupResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ListResponse is the body of a successful GET /waitlist.
type ListResponse struct {
	Success bool              `json:"success"`
	Count   int               `json:"count"`
	Signups []waitlist.Signup `json:"signups"`
}

// WaitlistHandler serves the public signup endpoint and the operator list.
type WaitlistHandler struct {
	service    WaitlistService
	adminToken string
}

// NewWaitlistHandler creates the handler. An empty adminToken disables the
// list endpoint (503).
func NewWaitlistHandler(service WaitlistService, adminToken string) *WaitlistHandler {
	return &WaitlistHandler{service: service, adminToken: adminToken}
}

type signupRequest struct {
	Email any `json:"email"`
}

// Signup handles POST /waitlist.
func (h *WaitlistHandler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req signupRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		if middleware.IsBodyTooLarge(err) {
			respondWithError(w, r, apperrors.WrapPayloadTooLarge(ctx, err, msgPayloadTooLarge))
			return
		}
		respondWithError(w, r, apperrors.WrapInvalidInput(ctx, err, msgInvalidBody))
		return
	}
	// the body must hold exactly one JSON value
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		respondWithError(w, r, apperrors.NewInvalidInputError(msgInvalidBody))
		return
	}

	// a non-string email is treated like a missing one
	email, _ := req.Email.(string)

	_, err := h.service.Signup(ctx, email, middleware.ClientKey(r))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, SignupResponse{Success: true, Message: msgSignupOK})
	case errors.Is(err, waitlist.ErrInvalidEmail):
		respondWithError(w, r, apperrors.NewValidationError(msgInvalidEmail))
	case errors.Is(err, waitlist.ErrRateLimited):
		respondWithError(w, r, apperrors.NewRateLimitedError(msgRateLimited))
	default:
		respondWithError(w, r, apperrors.WrapDatabaseError(ctx, err, msgSignupFailed))
	}
}

// List handles GET /waitlist.
func (h *WaitlistHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.adminToken == "" {
		respondWithError(w, r, apperrors.NewServiceUnavailableError(msgAdminDisabled))
		return
	}

	if !h.authorized(r) {
		logUnauthorized(r)
		respondWithError(w, r, apperrors.NewUnauthorizedError(msgUnauthorized))
		return
	}

	signups, err := h.service.List(r.Context())
	if err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, msgFetchFailed))
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{
		Success: true,
		Count:   len(signups),
		Signups: signups,
	})
}

func (h *WaitlistHandler) authorized(r *http.Request) bool {
	header := r.Header.Get(authorizationHeader)
	if !strings.HasPrefix(header, bearerPrefix) {
		return false
	}
	presented := header[len(bearerPrefix):]
	return subtle.ConstantTimeCompare([]byte(presented), []byte(h.adminToken)) == 1
}

func logUnauthorized(r *http.Request) {
	if observability.ServerLogger == nil {
		return
	}
	observability.ServerLogger.Warn("Unauthorized waitlist access attempt",
		zap.String("client", middleware.ClientKey(r)),
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("user_agent", r.UserAgent()),
		zap.String("request_id", middleware.GetRequestID(r.Context())))
}
