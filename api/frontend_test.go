package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRegisterFrontendServesIndexFallback(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>board</html>"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644); err != nil {
		t.Fatalf("write asset: %v", err)
	}

	e := newTestServer(t, newMemStore(), nil, nil)
	if !RegisterFrontend(e, dir) {
		t.Fatal("expected frontend to register")
	}

	if rec := doRequest(e, http.MethodGet, "/app.js", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "console.log") {
		t.Fatalf("asset not served: %d %s", rec.Code, rec.Body.String())
	}
	if rec := doRequest(e, http.MethodGet, "/board/42", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "board") {
		t.Fatalf("expected index fallback, got %d %s", rec.Code, rec.Body.String())
	}
	if rec := doRequest(e, http.MethodGet, "/api/tasks", ""); rec.Code != http.StatusOK || !strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "[") {
		t.Fatalf("api shadowed by frontend: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterFrontendMissingDir(t *testing.T) {
	e := newTestServer(t, newMemStore(), nil, nil)
	if RegisterFrontend(e, filepath.Join(t.TempDir(), "absent")) {
		t.Fatal("expected missing dir to be skipped")
	}
	if RegisterFrontend(e, "") {
		t.Fatal("expected empty dir to be skipped")
	}
}
