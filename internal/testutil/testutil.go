// Package testutil provides shared test helpers and profile fixtures.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/banshee-data/seamprofile/internal/monitoring"
	"github.com/banshee-data/seamprofile/internal/seam"
)

// QuietLogs discards service log output for the rest of the test.
func QuietLogs(t testing.TB) {
	t.Helper()
	orig := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = orig })
}

// FilledDocument returns an enabled profile document named
// "profile-<id>" whose every register holds fill.
func FilledDocument(id, fill int32) seam.Document {
	doc := seam.DefaultDocument(id)
	doc.Enabled = true
	doc.Meta.Name = fmt.Sprintf("profile-%d", id)
	for i := range doc.V0.Values {
		doc.V0.Values[i] = fill
	}
	return doc
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// Serve runs one request through h and returns the recorded response. An
// empty body sends no body.
func Serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// DecodeJSON decodes the recorded body into v or fails the test.
func DecodeJSON(t testing.TB, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}
