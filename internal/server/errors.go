package server

import (
	"net/http"

	apperrors "github.com/opposia/waitlist/internal/errors"
)

// HandleError central handler for all errors
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}

// rejectOversized answers the 413 for bodies refused by the body limit.
func rejectOversized(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		HandleError(w, r, apperrors.NewPayloadTooLargeError(msgPayloadTooLarge))
		return
	}
	HandleError(w, r, apperrors.WrapPayloadTooLarge(r.Context(), err, msgPayloadTooLarge))
}

const msgPayloadTooLarge = "Request entity too large"
