// Package handlers implements the HTTP API of the face authentication
// service: enrollment, verification, and identity administration.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/blackshadow-software/face-auth/internal/extract"
	"github.com/blackshadow-software/face-auth/internal/identity"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// maxUploadBytes caps multipart uploads. Face images are small after client
// side resizing, 32 MB leaves plenty of headroom for originals.
const maxUploadBytes = 32 << 20

// Service bundles the collaborators the handlers act on.
type Service struct {
	Registry  *identity.Registry
	Enroller  *identity.Enroller
	Matcher   *identity.Matcher
	Index     *identity.SampleIndex // nil disables the similar endpoint
	Extractor extract.Extractor
}

// NewService wires the handler dependencies.
func NewService(reg *identity.Registry, enroller *identity.Enroller, matcher *identity.Matcher, index *identity.SampleIndex, extractor extract.Extractor) *Service {
	return &Service{
		Registry:  reg,
		Enroller:  enroller,
		Matcher:   matcher,
		Index:     index,
		Extractor: extractor,
	}
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// headerFilename makes a user id safe for a quoted Content-Disposition
// filename: control characters are dropped and quoting metacharacters
// replaced, so the id cannot break out of the quoted string.
func headerFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
		case r == '"' || r == '\\':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// respondJSON sends a JSON response. The payload is marshalled before the
// status line goes out, so an unencodable value yields a proper 500 instead
// of a 200 with an empty body.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	if data == nil {
		w.WriteHeader(status)
		return
	}
	body, err := json.Marshal(data)
	if err != nil {
		log.Printf("encoding response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"internal server error"}`)
		return
	}
	w.WriteHeader(status)
	w.Write(body)
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// encodeUpload reads one uploaded image and turns its first detected face
// into a candidate sample. Extraction failures surface as errors, extract.ErrNoFace
// included, so callers decide whether to skip or fail.
func (s *Service) encodeUpload(ctx context.Context, fh *multipart.FileHeader) (identity.Sample, error) {
	file, err := fh.Open()
	if err != nil {
		return identity.Sample{}, fmt.Errorf("opening upload %q: %w", fh.Filename, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return identity.Sample{}, fmt.Errorf("reading upload %q: %w", fh.Filename, err)
	}

	prepared, err := extract.PrepareImage(data, extract.DefaultMaxImageSize)
	if err != nil {
		return identity.Sample{}, fmt.Errorf("preparing upload %q: %w", fh.Filename, err)
	}

	faces, err := s.Extractor.ExtractFaces(ctx, prepared)
	if err != nil {
		return identity.Sample{}, err
	}

	return identity.Sample{
		Encoding:  faces[0].Encoding,
		ImagePath: fh.Filename,
		SampleID:  uuid.NewString(),
	}, nil
}
