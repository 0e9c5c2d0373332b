package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/MarceloPazPezo/Plantilla-PERN/internal/auth"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/obs"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/validation"
)

const (
	statusSuccess     = "Success"
	statusClientError = "Client error"
	statusServerError = "Server error"
)

type successBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type clientErrorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type serverErrorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// fieldDetail mirrors the {dataInfo, message} pair the web client renders
// next to the offending form field.
type fieldDetail struct {
	DataInfo string `json:"dataInfo"`
	Message  string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondSuccess(w http.ResponseWriter, code int, message string, data any) {
	writeJSON(w, code, successBody{Status: statusSuccess, Message: message, Data: data})
}

func respondClientError(w http.ResponseWriter, code int, message string, details any) {
	writeJSON(w, code, clientErrorBody{Status: statusClientError, Message: message, Details: details})
}

func respondServerError(w http.ResponseWriter, r *http.Request, err error) {
	obs.From(r.Context()).Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, serverErrorBody{
		Status:  statusServerError,
		Message: "Error interno del servidor",
	})
}

// handleServiceError maps service and validation errors onto the response
// envelope. message is the client-facing summary for the failed operation.
func handleServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		respondClientError(w, http.StatusBadRequest, "Error de validación", verr.Fields)
		return
	}

	var details any
	var ferr *auth.FieldError
	if errors.As(err, &ferr) {
		if ferr.Field != "" {
			details = fieldDetail{DataInfo: ferr.Field, Message: ferr.Message}
		} else {
			details = ferr.Message
		}
	}

	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		respondClientError(w, http.StatusBadRequest, message, details)
	case errors.Is(err, auth.ErrBadCredentials), errors.Is(err, auth.ErrInactive):
		respondClientError(w, http.StatusUnauthorized, message, details)
	case errors.Is(err, auth.ErrTooManyAttempts):
		respondClientError(w, http.StatusTooManyRequests, message, details)
	case errors.Is(err, auth.ErrProtectedUser):
		respondClientError(w, http.StatusForbidden, message, details)
	case errors.Is(err, auth.ErrNotFound):
		respondClientError(w, http.StatusNotFound, message, details)
	case errors.Is(err, auth.ErrConflict):
		respondClientError(w, http.StatusConflict, message, details)
	default:
		respondServerError(w, r, err)
	}
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondClientError(w, http.StatusMethodNotAllowed, "Método no permitido", r.Method+" "+r.URL.Path)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	respondClientError(w, http.StatusNotFound, "Ruta no encontrada", r.URL.Path)
}
