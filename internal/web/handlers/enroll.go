package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/blackshadow-software/face-auth/internal/extract"
	"github.com/blackshadow-software/face-auth/internal/identity"
)

// enrollResponse reports the outcome of an enrollment or sample append.
type enrollResponse struct {
	UserID      string `json:"user_id"`
	SampleCount int    `json:"sample_count"`
	Accepted    int    `json:"accepted"`
	Dropped     int    `json:"dropped"`
}

// collectSamples extracts a candidate sample from each uploaded image.
// Images without a detectable face are skipped and counted as dropped.
func (s *Service) collectSamples(w http.ResponseWriter, r *http.Request) ([]identity.Sample, int, bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return nil, 0, false
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "no images uploaded")
		return nil, 0, false
	}

	var candidates []identity.Sample
	dropped := 0
	for _, fh := range files {
		sample, err := s.encodeUpload(r.Context(), fh)
		if err != nil {
			if errors.Is(err, extract.ErrNoFace) {
				log.Printf("no face in %s, skipping", sanitizeForLog(fh.Filename))
				dropped++
				continue
			}
			respondError(w, http.StatusBadGateway, "face extraction failed: "+err.Error())
			return nil, 0, false
		}
		candidates = append(candidates, sample)
	}

	return candidates, dropped, true
}

// Enroll handles POST /api/v1/identities/{userID}/enroll.
// Accepts multipart images, extracts one face per image, and registers the
// identity. The overwrite query parameter replaces an existing enrollment.
func (s *Service) Enroll(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	overwrite := r.URL.Query().Get("overwrite") == "true"

	candidates, skipped, ok := s.collectSamples(w, r)
	if !ok {
		return
	}

	rec, dropped, err := s.Enroller.Enroll(r.Context(), s.Registry, userID, candidates, overwrite)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrDuplicateIdentity):
			respondError(w, http.StatusConflict, "identity already enrolled")
		case errors.Is(err, identity.ErrInsufficientSamples):
			respondError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, identity.ErrEmptyUserID):
			respondError(w, http.StatusBadRequest, "user id is required")
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if s.Index != nil {
		s.Index.Rebuild(s.Registry.Snapshot())
	}

	respondJSON(w, http.StatusCreated, enrollResponse{
		UserID:      rec.UserID,
		SampleCount: rec.SampleCount,
		Accepted:    rec.SampleCount,
		Dropped:     dropped + skipped,
	})
}

// AppendSamples handles POST /api/v1/identities/{userID}/samples.
// Adds samples to an existing enrollment without touching its counters.
func (s *Service) AppendSamples(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	candidates, skipped, ok := s.collectSamples(w, r)
	if !ok {
		return
	}

	accepted, dropped, total, err := s.Enroller.Append(r.Context(), s.Registry, userID, candidates)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrUnknownIdentity):
			respondError(w, http.StatusNotFound, "identity not enrolled")
		case errors.Is(err, identity.ErrInsufficientSamples):
			respondError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if s.Index != nil {
		s.Index.Rebuild(s.Registry.Snapshot())
	}

	respondJSON(w, http.StatusOK, enrollResponse{
		UserID:      userID,
		SampleCount: total,
		Accepted:    accepted,
		Dropped:     dropped + skipped,
	})
}
