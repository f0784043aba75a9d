package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/classeye/classeye/internal/attendance"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// dateParam returns the validated "date" query parameter, defaulting
// to today when absent.
func dateParam(r *http.Request, now func() time.Time) (string, error) {
	date := r.URL.Query().Get("date")
	if date == "" {
		return now().Format(attendance.DateFormat), nil
	}
	if _, err := time.Parse(attendance.DateFormat, date); err != nil {
		return "", err
	}
	return date, nil
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
