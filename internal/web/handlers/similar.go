package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/blackshadow-software/face-auth/internal/extract"
)

const defaultSimilarLimit = 5

// Similar handles POST /api/v1/similar. Returns the nearest enrolled samples
// for an uploaded face, ranked by exact distance. Useful for spotting
// duplicate enrollments under different user ids.
func (s *Service) Similar(w http.ResponseWriter, r *http.Request) {
	if s.Index == nil {
		respondError(w, http.StatusNotImplemented, "similarity index not enabled")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	files := r.MultipartForm.File["image"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "no image uploaded")
		return
	}

	limit := defaultSimilarLimit
	if raw := r.FormValue("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	probe, err := s.encodeUpload(r.Context(), files[0])
	if err != nil {
		if errors.Is(err, extract.ErrNoFace) {
			respondError(w, http.StatusUnprocessableEntity, "no face found in image")
			return
		}
		respondError(w, http.StatusBadGateway, "face extraction failed: "+err.Error())
		return
	}

	matches, err := s.Index.Search(probe.Encoding, limit)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"count":   len(matches),
		"matches": matches,
	})
}
