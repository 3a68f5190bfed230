package handlers

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRespondJSON_UnencodableValue(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusOK, map[string]float64{"score": math.Inf(1)})

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, "internal server error")
}

func TestHeaderFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "alice", "alice"},
		{"quote replaced", `ali"ce`, "ali_ce"},
		{"backslash replaced", `ali\ce`, "ali_ce"},
		{"control characters dropped", "ali\r\nce\x7f", "alice"},
		{"unicode kept", "Jan Novák", "Jan Novák"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := headerFilename(tc.in); got != tc.want {
				t.Errorf("headerFilename(%q) = %q; want %q", tc.in, got, tc.want)
			}
		})
	}
}
