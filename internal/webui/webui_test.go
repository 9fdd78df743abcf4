package webui

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"padsynth/internal/events"
	"padsynth/internal/mapping"
)

func TestRenderIndexEmbedsInitialState(t *testing.T) {
	cfg := mapping.Default()
	state := &events.State{Keys: map[string]bool{"MX1": true}}

	var buf bytes.Buffer
	if err := RenderIndex(&buf, &InitialData{State: state, Config: cfg}, false); err != nil {
		t.Fatalf("RenderIndex: %v", err)
	}
	page := buf.String()
	if !strings.Contains(page, `"MX1":true`) {
		t.Fatalf("initial state missing from page:\n%s", page)
	}
	if !strings.Contains(page, `data-auth="0"`) {
		t.Fatal("expected auth flag to be off")
	}
}

func TestRenderIndexWithoutData(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderIndex(&buf, nil, true); err != nil {
		t.Fatalf("RenderIndex: %v", err)
	}
	page := buf.String()
	if !strings.Contains(page, `<script id="initial-state" type="application/json">{}</script>`) {
		t.Fatalf("expected empty initial state:\n%s", page)
	}
	if !strings.Contains(page, `data-auth="1"`) {
		t.Fatal("expected auth flag to be on")
	}
}

func TestStaticHandler(t *testing.T) {
	h := StaticHandler()
	for _, path := range []string{"/static/app.js", "/static/style.css"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s = %d", path, w.Code)
		}
		if w.Body.Len() == 0 {
			t.Fatalf("GET %s returned empty body", path)
		}
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/missing.js", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing asset = %d, want 404", w.Code)
	}
}
