package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/blackshadow-software/face-auth/internal/extract"
	"github.com/blackshadow-software/face-auth/internal/identity"
)

const testDim = 3

// stubExtractor replays queued extraction results, one per call.
type stubExtractor struct {
	queue []stubResult
	calls int
}

type stubResult struct {
	faces []extract.Face
	err   error
}

func (s *stubExtractor) ExtractFaces(_ context.Context, _ []byte) ([]extract.Face, error) {
	if s.calls >= len(s.queue) {
		return nil, extract.ErrNoFace
	}
	res := s.queue[s.calls]
	s.calls++
	if res.err != nil {
		return nil, res.err
	}
	return res.faces, nil
}

func enc(vals ...float64) stubResult {
	return stubResult{faces: []extract.Face{{Encoding: vals, DetScore: 0.99}}}
}

func noFace() stubResult {
	return stubResult{err: extract.ErrNoFace}
}

// newTestService builds a service around an in-memory registry with 3-dim
// encodings and the given extraction script.
func newTestService(results ...stubResult) *Service {
	reg := identity.NewRegistry(testDim)
	return NewService(
		reg,
		identity.NewEnroller(testDim, identity.EnrollPolicy{}),
		identity.NewMatcher(),
		identity.NewSampleIndex(),
		&stubExtractor{queue: results},
	)
}

// testRouter mounts the production routes for the service.
func testRouter(s *Service) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/api/v1/verify", s.Verify)
	r.Post("/api/v1/similar", s.Similar)
	r.Get("/api/v1/identities", s.ListIdentities)
	r.Post("/api/v1/identities/import", s.ImportIdentity)
	r.Get("/api/v1/identities/{userID}", s.GetIdentity)
	r.Delete("/api/v1/identities/{userID}", s.DeleteIdentity)
	r.Get("/api/v1/identities/{userID}/export", s.ExportIdentity)
	r.Post("/api/v1/identities/{userID}/enroll", s.Enroll)
	r.Post("/api/v1/identities/{userID}/samples", s.AppendSamples)
	return r
}

// testJPEG returns a small valid JPEG so image preparation succeeds.
func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.RGBA{R: uint8(16 * x), G: uint8(16 * y), B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

// multipartUpload builds a multipart request with n copies of a test image
// under the given field name plus any extra form values.
func multipartUpload(t *testing.T, method, url, field string, n int, values map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	data := testJPEG(t)
	for i := 0; i < n; i++ {
		part, err := writer.CreateFormFile(field, "face.jpg")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("failed to write form file: %v", err)
		}
	}
	for k, v := range values {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("failed to write form field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
