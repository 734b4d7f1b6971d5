package utils

import (
	"encoding/json"
	"net/http"

	"github.com/cisseniang564/ProvTech-sub001/internal/pkg/errors"
)

// ErrorBody is the wire shape of an error response. Clients decode it
// into their APIError, so the fields must stay flat.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes an error JSON response from AppError
func WriteError(w http.ResponseWriter, err *errors.AppError) error {
	status := err.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return WriteJSON(w, status, ErrorBody{
		Code:    err.Code,
		Message: err.Message,
		Details: err.Details,
	})
}

// WriteErrorMessage writes a simple error message
func WriteErrorMessage(w http.ResponseWriter, status int, code, message string) error {
	return WriteJSON(w, status, ErrorBody{
		Code:    code,
		Message: message,
	})
}
