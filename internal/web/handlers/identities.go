package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/blackshadow-software/face-auth/internal/identity"
)

// ListIdentities handles GET /api/v1/identities.
func (s *Service) ListIdentities(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"count":      s.Registry.Count(),
		"identities": s.Registry.List(),
	})
}

// GetIdentity handles GET /api/v1/identities/{userID}. The lookup falls back
// to diacritics-insensitive matching when no exact record exists.
func (s *Service) GetIdentity(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	resolved, ok := s.Registry.Resolve(userID)
	if !ok {
		respondError(w, http.StatusNotFound, "identity not enrolled")
		return
	}

	rec, ok := s.Registry.Get(resolved)
	if !ok {
		respondError(w, http.StatusNotFound, "identity not enrolled")
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// ExportIdentity handles GET /api/v1/identities/{userID}/export. The response
// body is the portable transfer document, suitable for importing elsewhere.
func (s *Service) ExportIdentity(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	exp, err := s.Registry.Export(userID)
	if err != nil {
		if errors.Is(err, identity.ErrUnknownIdentity) {
			respondError(w, http.StatusNotFound, "identity not enrolled")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+headerFilename(userID)+`_export.json"`)
	respondJSON(w, http.StatusOK, exp)
}

// ImportIdentity handles POST /api/v1/identities/import. The body is a
// transfer document produced by export. The overwrite query parameter
// replaces an existing identity rather than rejecting the import.
func (s *Service) ImportIdentity(w http.ResponseWriter, r *http.Request) {
	var exp identity.ExportRecord
	if err := json.NewDecoder(r.Body).Decode(&exp); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	overwrite := r.URL.Query().Get("overwrite") == "true"

	rec, err := s.Registry.Import(r.Context(), &exp, overwrite)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrDuplicateIdentity):
			respondError(w, http.StatusConflict, "identity already enrolled")
		default:
			respondError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	if s.Index != nil {
		s.Index.Rebuild(s.Registry.Snapshot())
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"user_id":      rec.UserID,
		"sample_count": rec.SampleCount,
	})
}

// DeleteIdentity handles DELETE /api/v1/identities/{userID}.
func (s *Service) DeleteIdentity(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if err := s.Registry.Remove(r.Context(), userID); err != nil {
		if errors.Is(err, identity.ErrUnknownIdentity) {
			respondError(w, http.StatusNotFound, "identity not enrolled")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.Index != nil {
		s.Index.Rebuild(s.Registry.Snapshot())
	}

	respondJSON(w, http.StatusOK, map[string]string{"deleted": userID})
}
