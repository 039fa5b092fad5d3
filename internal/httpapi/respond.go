package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	errorsmod "cosmossdk.io/errors"

	"SlaEscrow/internal/model"
)

type errorBody struct {
	Codespace string `json:"codespace"`
	Code      uint32 `json:"code"`
	Message   string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	codespace, code, _ := errorsmod.ABCIInfo(err, false)
	writeJSON(w, statusOf(err), map[string]errorBody{"error": {
		Codespace: codespace,
		Code:      code,
		Message:   err.Error(),
	}})
}

// statusOf maps escrow errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrAgreementNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrAgreementBusy),
		errors.Is(err, model.ErrConcurrentModification),
		errors.Is(err, model.ErrAgreementAlreadyRegistered),
		errors.Is(err, model.ErrAlreadyVerifiedPeriod):
		return http.StatusConflict
	case errors.Is(err, model.ErrRegistryFull):
		return http.StatusInsufficientStorage
	case errors.Is(err, model.ErrStaleFeed),
		errors.Is(err, model.ErrConfidenceIntervalExceeded),
		errors.Is(err, model.ErrLedgerFailure):
		return http.StatusBadGateway
	case errors.Is(err, model.ErrPeriodNotElapsed),
		errors.Is(err, model.ErrSlaNotStarted),
		errors.Is(err, model.ErrPreviousPeriodNotVerified),
		errors.Is(err, model.ErrUnverifiedPeriods):
		return http.StatusTooEarly
	}
	if codespace, _, _ := errorsmod.ABCIInfo(err, false); codespace == model.Codespace {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Message: msg}})
}
