package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractFaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/encode/face" {
			t.Errorf("expected /encode/face, got %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("failed to parse multipart form: %v", err)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file part: %v", err)
		}
		_ = file.Close()

		resp := faceResponse{
			FacesCount: 2,
			Faces: []Face{
				{FaceIndex: 0, Encoding: []float64{0.1, 0.2, 0.3}, BBox: []float64{10, 20, 110, 140}, DetScore: 0.99},
				{FaceIndex: 1, Encoding: []float64{0.4, 0.5, 0.6}, BBox: []float64{200, 30, 280, 120}, DetScore: 0.87},
			},
			Model: "face_recognition",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	faces, err := client.ExtractFaces(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46})
	if err != nil {
		t.Fatalf("ExtractFaces failed: %v", err)
	}

	if len(faces) != 2 {
		t.Fatalf("expected 2 faces, got %d", len(faces))
	}
	if faces[0].Encoding[1] != 0.2 {
		t.Errorf("expected encoding value 0.2, got %f", faces[0].Encoding[1])
	}
	if faces[1].DetScore != 0.87 {
		t.Errorf("expected det score 0.87, got %f", faces[1].DetScore)
	}
}

func TestExtractFacesNoFace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(faceResponse{FacesCount: 0, Faces: []Face{}})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.ExtractFaces(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46})
	if !errors.Is(err, ErrNoFace) {
		t.Fatalf("expected ErrNoFace, got %v", err)
	}
}

func TestExtractFacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.ExtractFaces(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46})
	if err == nil {
		t.Fatal("expected error on server failure")
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{
			name:     "jpeg",
			data:     []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46},
			expected: "image/jpeg",
		},
		{
			name:     "png",
			data:     []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
			expected: "image/png",
		},
		{
			name:     "gif",
			data:     []byte{0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x00, 0x00},
			expected: "image/gif",
		},
		{
			name:     "too short",
			data:     []byte{0xFF, 0xD8},
			expected: "application/octet-stream",
		},
		{
			name:     "unknown",
			data:     []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07},
			expected: "application/octet-stream",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectMIMEType(tt.data); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}
