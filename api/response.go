package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"

	"vote-program/executor"
	"vote-program/ledger"
	"vote-program/models"
	"vote-program/program"
	"vote-program/signing"
	"vote-program/storage"
)

type errorResponse struct {
	Error   string          `json:"error"`
	Receipt *models.Receipt `json:"receipt,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error, receipt *models.Receipt) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error(), Receipt: receipt})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrAccountNotFound), errors.Is(err, ledger.ErrBlockNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrAccountExists), errors.Is(err, executor.ErrDuplicateTransaction):
		return http.StatusConflict
	case errors.Is(err, storage.ErrCapacityExceeded):
		return http.StatusInsufficientStorage
	case errors.Is(err, program.ErrCounterOverflow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, executor.ErrMissingSignature), errors.Is(err, signing.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrInvalidTransaction):
		return http.StatusBadRequest
	case errors.Is(err, executor.ErrQueueClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
