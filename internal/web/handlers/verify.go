package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/blackshadow-software/face-auth/internal/extract"
	"github.com/blackshadow-software/face-auth/internal/identity"
)

// verifyResponse is the JSON rendering of a match result. Score and distance
// fields are pointers: with no identities enrolled there is no closest
// candidate, and the sentinel infinities backing that state are not
// JSON-encodable, so the fields are omitted instead.
type verifyResponse struct {
	Authenticated bool                      `json:"authenticated"`
	UserID        string                    `json:"user_id,omitempty"`
	Score         *float64                  `json:"score,omitempty"`
	MinDistance   *float64                  `json:"min_distance,omitempty"`
	MeanDistance  *float64                  `json:"mean_distance,omitempty"`
	Confidence    float64                   `json:"confidence"`
	Threshold     float64                   `json:"threshold"`
	ElapsedMS     float64                   `json:"elapsed_ms"`
	Candidates    []identity.CandidateScore `json:"candidates,omitempty"`
}

// Verify handles POST /api/v1/verify. Accepts a single multipart image,
// scores it against every enrolled identity, and reports the decision.
// A probe that matches nobody is a 200 with authenticated=false.
func (s *Service) Verify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	files := r.MultipartForm.File["image"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "no image uploaded")
		return
	}

	tolerance := -1.0
	if raw := r.FormValue("tolerance"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "invalid tolerance")
			return
		}
		tolerance = parsed
	}

	verbose := r.URL.Query().Get("verbose") == "true"

	probe, err := s.encodeUpload(r.Context(), files[0])
	if err != nil {
		if errors.Is(err, extract.ErrNoFace) {
			respondError(w, http.StatusUnprocessableEntity, "no face found in image")
			return
		}
		respondError(w, http.StatusBadGateway, "face extraction failed: "+err.Error())
		return
	}

	result, err := s.Matcher.Authenticate(r.Context(), s.Registry, probe.Encoding, tolerance)
	if err != nil {
		var dimErr *identity.DimensionError
		if errors.As(err, &dimErr) {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if result.Accepted {
		if err := s.Registry.RecordSuccessfulMatch(r.Context(), result.MatchedUserID, time.Now()); err != nil {
			log.Printf("failed to record match for %s: %v", sanitizeForLog(result.MatchedUserID), err)
		}
	}

	resp := verifyResponse{
		Authenticated: result.Accepted,
		Confidence:    result.Confidence,
		Threshold:     result.Threshold,
		ElapsedMS:     float64(result.Elapsed.Microseconds()) / 1000,
	}
	if len(result.Candidates) > 0 {
		resp.Score = &result.Score
		resp.MinDistance = &result.MinDistance
		resp.MeanDistance = &result.MeanDistance
	}
	if result.Accepted {
		resp.UserID = result.MatchedUserID
	}
	if verbose {
		resp.Candidates = result.Candidates
	}

	respondJSON(w, http.StatusOK, resp)
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
