// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// NotFound handles 404 responses.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeErrorJSON(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}

// MethodNotAllowed handles 405 responses.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeErrorJSON(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// errorBody is the envelope for all error responses.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeErrorJSON writes a JSON error response.
func writeErrorJSON(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]errorBody{
		"error": {Code: code, Message: message},
	})
}

// writeValidationError writes a 400 with a field-specific message.
func writeValidationError(w http.ResponseWriter, field, reason string) {
	writeErrorJSON(w, http.StatusBadRequest, "VALIDATION_ERROR", fmt.Sprintf("%s: %s", field, reason))
}
