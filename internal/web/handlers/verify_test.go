package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVerify_Match(t *testing.T) {
	service := newTestService(enc(0.1, 0.2, 0.3), enc(0.1, 0.2, 0.3))
	router := testRouter(service)

	req := multipartUpload(t, "POST", "/api/v1/identities/alice/enroll", "images", 1, nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	assertStatusCode(t, recorder, http.StatusCreated)

	req = multipartUpload(t, "POST", "/api/v1/verify", "image", 1, nil)
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp verifyResponse
	parseJSONResponse(t, recorder, &resp)

	if !resp.Authenticated {
		t.Fatal("expected probe identical to enrollment to authenticate")
	}
	if resp.UserID != "alice" {
		t.Errorf("expected matched user alice, got %s", resp.UserID)
	}
	if resp.Score == nil || *resp.Score != 0 {
		t.Errorf("expected score 0 for identical encoding, got %v", resp.Score)
	}
	if resp.Confidence != 1 {
		t.Errorf("expected confidence 1 for identical encoding, got %f", resp.Confidence)
	}

	rec, _ := service.Registry.Get("alice")
	if rec.AuthenticationCount != 1 {
		t.Errorf("expected authentication count 1, got %d", rec.AuthenticationCount)
	}
	if rec.LastAuthentication == nil {
		t.Error("expected last authentication timestamp to be set")
	}
}

func TestVerify_Reject(t *testing.T) {
	service := newTestService(enc(0, 0, 0), enc(10, 10, 10))
	router := testRouter(service)

	req := multipartUpload(t, "POST", "/api/v1/identities/alice/enroll", "images", 1, nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	assertStatusCode(t, recorder, http.StatusCreated)

	req = multipartUpload(t, "POST", "/api/v1/verify", "image", 1, nil)
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp verifyResponse
	parseJSONResponse(t, recorder, &resp)

	if resp.Authenticated {
		t.Error("expected distant probe to be rejected")
	}
	if resp.UserID != "" {
		t.Errorf("expected no matched user on rejection, got %s", resp.UserID)
	}

	rec, _ := service.Registry.Get("alice")
	if rec.AuthenticationCount != 0 {
		t.Errorf("expected authentication count to stay 0, got %d", rec.AuthenticationCount)
	}
}

func TestVerify_EmptyRegistry(t *testing.T) {
	service := newTestService(enc(0.1, 0.2, 0.3))
	router := testRouter(service)

	req := multipartUpload(t, "POST", "/api/v1/verify", "image", 1, nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp verifyResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Authenticated {
		t.Error("expected no authentication against an empty registry")
	}
	// no candidate exists, so the score fields must be absent rather than
	// carry the internal infinity sentinels
	if resp.Score != nil || resp.MinDistance != nil || resp.MeanDistance != nil {
		t.Errorf("expected score fields omitted, got score=%v min=%v mean=%v",
			resp.Score, resp.MinDistance, resp.MeanDistance)
	}
	if resp.Confidence != 0 {
		t.Errorf("expected confidence 0, got %f", resp.Confidence)
	}
	if resp.Threshold == 0 {
		t.Error("expected the effective threshold to be reported")
	}
}

func TestVerify_NoFace(t *testing.T) {
	service := newTestService(noFace())
	router := testRouter(service)

	req := multipartUpload(t, "POST", "/api/v1/verify", "image", 1, nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assertStatusCode(t, recorder, http.StatusUnprocessableEntity)
	assertJSONError(t, recorder, "no face found in image")
}

func TestVerify_WrongDimension(t *testing.T) {
	service := newTestService(enc(0.1, 0.2))
	router := testRouter(service)

	req := multipartUpload(t, "POST", "/api/v1/verify", "image", 1, nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assertStatusCode(t, recorder, http.StatusUnprocessableEntity)
}

func TestVerify_InvalidTolerance(t *testing.T) {
	service := newTestService(enc(0.1, 0.2, 0.3))
	router := testRouter(service)

	req := multipartUpload(t, "POST", "/api/v1/verify", "image", 1, map[string]string{"tolerance": "abc"})
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "invalid tolerance")
}

func TestVerify_VerboseIncludesCandidates(t *testing.T) {
	service := newTestService(enc(0.1, 0.2, 0.3), enc(0.5, 0.5, 0.5), enc(0.1, 0.2, 0.3))
	router := testRouter(service)

	req := multipartUpload(t, "POST", "/api/v1/identities/alice/enroll", "images", 1, nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	req = multipartUpload(t, "POST", "/api/v1/identities/bob/enroll", "images", 1, nil)
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	req = multipartUpload(t, "POST", "/api/v1/verify?verbose=true", "image", 1, nil)
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp verifyResponse
	parseJSONResponse(t, recorder, &resp)

	if len(resp.Candidates) != 2 {
		t.Fatalf("expected 2 candidates in verbose mode, got %d", len(resp.Candidates))
	}
	if resp.Candidates[0].UserID != "alice" {
		t.Errorf("expected best candidate alice, got %s", resp.Candidates[0].UserID)
	}
}

func TestVerify_NoImage(t *testing.T) {
	service := newTestService()
	router := testRouter(service)

	req := multipartUpload(t, "POST", "/api/v1/verify", "image", 0, map[string]string{"noop": "1"})
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "no image uploaded")
}
