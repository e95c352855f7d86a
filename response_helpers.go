package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Mimir-AIP/OntoGraph-Go/utils"
)

// apiEnvelope is the uniform response shape of the HTTP API: successful
// responses carry data, failures carry an error message.
type apiEnvelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// maxListLimit caps the limit query parameter on listing endpoints.
const maxListLimit = 1000

// writeJSONResponse encodes an arbitrary payload with the given status.
func writeJSONResponse(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		utils.GetLogger().Warn("failed to encode response",
			utils.Component("http"), utils.Error(err))
	}
}

// writeSuccessResponse wraps data in the success envelope.
func writeSuccessResponse(w http.ResponseWriter, data any) {
	writeJSONResponse(w, http.StatusOK, apiEnvelope{Success: true, Data: data})
}

// writeErrorResponse wraps a failure message in the error envelope. An empty
// message falls back to the standard status text.
func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	if message == "" {
		message = http.StatusText(statusCode)
	}
	writeJSONResponse(w, statusCode, apiEnvelope{Error: message})
}

func writeBadRequestResponse(w http.ResponseWriter, message string) {
	writeErrorResponse(w, http.StatusBadRequest, message)
}

func writeInternalServerErrorResponse(w http.ResponseWriter, message string) {
	writeErrorResponse(w, http.StatusInternalServerError, message)
}

// parseLimit reads the limit query parameter, falling back to the default
// for missing or invalid values and capping runaway requests.
func parseLimit(r *http.Request, defaultLimit int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
