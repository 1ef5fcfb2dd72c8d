package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/meridian-hq/ABMX/logger"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warnw("response encoding failed", logger.FieldError, err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// readJSON reads and decodes a JSON request body, answering 400 on a
// body that does not parse.
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return err
	}
	return nil
}

// requireMethod checks the request method, answering 405 otherwise.
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

// pathSuffix extracts the path segment after a prefix, empty when the
// request stops at the prefix itself.
func pathSuffix(urlPath, prefix string) string {
	return strings.Trim(strings.TrimPrefix(urlPath, prefix), "/")
}
