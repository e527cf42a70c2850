package api

import (
	"encoding/json"
	"net/http"

	"github.com/gatehouse/gatehouse/pkg/log"
	"github.com/gatehouse/gatehouse/pkg/types"
)

// errorResponse is the JSON error envelope every non-2xx response carries
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP status codes
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case types.IsNotFound(err):
		status = http.StatusNotFound
	case types.IsConflict(err):
		status = http.StatusConflict
	case types.IsValidation(err):
		status = http.StatusBadRequest
	case types.IsUnavailable(err):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		log.WithComponent("api").Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, &types.ValidationError{Field: "body", Reason: err.Error()})
		return false
	}
	return true
}
