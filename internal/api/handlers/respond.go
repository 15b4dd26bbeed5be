package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/taskboard/backend/internal/api/middleware"
	"github.com/taskboard/backend/internal/storage"
)

// maxBodyBytes limits JSON request bodies.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
		return false
	}
	return true
}

// writeStoreError maps a repository error to a response.
func writeStoreError(w http.ResponseWriter, err error, action string) {
	if errors.Is(err, storage.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Not found")
		return
	}
	log.Printf("Failed to %s: %v", action, err)
	middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to "+action)
}
