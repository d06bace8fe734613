package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/assetly/assetly/internal/model"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// writeError maps a domain error to an HTTP status. Unclassified errors and
// consistency violations are logged and reported as a generic 500 so that
// internals never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	switch model.KindOf(err) {
	case model.KindNotFound:
		jsonError(w, http.StatusNotFound, err.Error())
	case model.KindUnauthorized:
		jsonError(w, http.StatusForbidden, err.Error())
	case model.KindDuplicate:
		jsonError(w, http.StatusConflict, err.Error())
	case model.KindInvalid, model.KindConflict, model.KindInsufficientStock:
		jsonError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("internal error", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}
