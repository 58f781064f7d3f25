package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rom8726/resflow"
)

type ErrorResponse struct {
	Message string `json:"message"`
}

func WriteErrorResponse(writer http.ResponseWriter, err error, statusCode int) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(statusCode)

	resp := ErrorResponse{Message: err.Error()}
	_ = json.NewEncoder(writer).Encode(resp)
}

// StatusCode maps engine errors to HTTP statuses.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, resflow.ErrEntityNotFound):
		return http.StatusNotFound
	case errors.Is(err, resflow.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, resflow.ErrLocked):
		return http.StatusConflict
	case errors.Is(err, resflow.ErrReadOnly), errors.Is(err, resflow.ErrOverrideRequired):
		return http.StatusForbidden
	case errors.Is(err, resflow.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, resflow.ErrInvalidStatus),
		errors.Is(err, resflow.ErrInvalidOptions),
		errors.Is(err, resflow.ErrNotOwned),
		errors.Is(err, resflow.ErrParameterNotFound),
		errors.Is(err, resflow.ErrUnknownWorkflowType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func WriteError(writer http.ResponseWriter, err error) {
	WriteErrorResponse(writer, err, StatusCode(err))
}

func WriteJSON(writer http.ResponseWriter, statusCode int, value any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(statusCode)
	_ = json.NewEncoder(writer).Encode(value)
}
