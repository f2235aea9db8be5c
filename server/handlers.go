package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"cuebase/config"
	"cuebase/core/ingest"
	"cuebase/core/library"
	"cuebase/logger"

	"github.com/gorilla/mux"
)

// APIHandler handles all API requests.
type APIHandler struct {
	library *library.Service
	ingest  *ingest.Service
	cfg     *config.Config
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(lib *library.Service, ing *ingest.Service, cfg *config.Config) *APIHandler {
	return &APIHandler{library: lib, ingest: ing, cfg: cfg}
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to encode response", logger.ErrorField(err))
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// pathID extracts an int64 route variable.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
