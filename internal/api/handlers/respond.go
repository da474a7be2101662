package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/zatekoja/furniturefinder/pkg/errors"
)

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps application errors onto HTTP statuses
func respondWithAppError(w http.ResponseWriter, err error) {
	switch {
	case apperrors.IsValidation(err):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case apperrors.IsNotFound(err):
		respondWithError(w, http.StatusNotFound, err.Error())
	case apperrors.IsRemoteQuery(err):
		respondWithError(w, http.StatusBadGateway, "catalog query failed")
	case apperrors.IsPersistence(err):
		log.Warn().Err(err).Msg("session storage unavailable")
		respondWithError(w, http.StatusServiceUnavailable, "session storage unavailable")
	default:
		log.Error().Err(err).Msg("request failed")
		respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}
