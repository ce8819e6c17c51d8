package main

import (
	"encoding/json"
	"net/http"
)

// APIResponse centralizes JSON response writing for the HTTP surface.
type APIResponse struct {
	w http.ResponseWriter
}

// Respond creates a response helper.
func Respond(w http.ResponseWriter) *APIResponse {
	return &APIResponse{w: w}
}

// JSON encodes data as JSON (200 OK).
func (a *APIResponse) JSON(data interface{}) error {
	a.w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(a.w).Encode(data)
}

// Error sets the status code and encodes an error response.
func (a *APIResponse) Error(statusCode int, data interface{}) error {
	a.w.Header().Set("Content-Type", "application/json")
	a.w.WriteHeader(statusCode)
	return json.NewEncoder(a.w).Encode(data)
}
