package middleware

import (
	"encoding/json"
	"net/http"
)

// writeError sends a JSON {"error": msg} body with the given status.
func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
