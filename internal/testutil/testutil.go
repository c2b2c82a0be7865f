// Package testutil provides shared HTTP test helpers.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertContentType checks the media type of a response, ignoring
// parameters such as charset.
func AssertContentType(t testing.TB, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	got := rec.Header().Get("Content-Type")
	if mt, _, _ := strings.Cut(got, ";"); strings.TrimSpace(mt) != want {
		t.Errorf("Content-Type = %q, want %q", got, want)
	}
}

// DecodeJSON unmarshals the recorded body into v.
func DecodeJSON(t testing.TB, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

// AssertJSONError checks a {"error": msg} response with the given status.
func AssertJSONError(t testing.TB, rec *httptest.ResponseRecorder, status int, msg string) {
	t.Helper()
	AssertStatusCode(t, rec.Code, status)
	var body map[string]string
	DecodeJSON(t, rec, &body)
	if body["error"] != msg {
		t.Errorf("error = %q, want %q", body["error"], msg)
	}
}

// Serve runs one request against h and returns the recorder.
func Serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}
