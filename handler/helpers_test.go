package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/sphllzulu/QuickPactv2/config"
	"github.com/sphllzulu/QuickPactv2/middleware"
	"github.com/sphllzulu/QuickPactv2/model"
	"github.com/sphllzulu/QuickPactv2/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubGenerator struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	prompts []string
}

func (g *stubGenerator) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)

	var reply string
	var err error
	if len(g.replies) > 0 {
		reply, g.replies = g.replies[0], g.replies[1:]
	}
	if len(g.errs) > 0 {
		err, g.errs = g.errs[0], g.errs[1:]
	}
	return reply, err
}

type stubExporter struct {
	html string
	mode service.ExportMode
	err  error
}

func (e *stubExporter) Export(ctx context.Context, html string, mode service.ExportMode) ([]byte, error) {
	e.html, e.mode = html, mode
	if e.err != nil {
		return nil, e.err
	}
	return []byte("%PDF-1.4 stub"), nil
}

type stubArchiver struct {
	sessionID string
	filename  string
	err       error
}

func (a *stubArchiver) Archive(ctx context.Context, sessionID, filename string, data []byte) (string, error) {
	a.sessionID, a.filename = sessionID, filename
	if a.err != nil {
		return "", a.err
	}
	return "https://archive.example.com/" + filename, nil
}

var errStubArchive = errors.New("bucket unavailable")

type testServer struct {
	router   *gin.Engine
	store    *service.SessionStore
	cfg      *config.SessionConfig
	gen      *stubGenerator
	exporter *stubExporter
}

func newTestServer(t *testing.T, archive service.Archiver) *testServer {
	t.Helper()

	cfg := &config.SessionConfig{Secret: "handler-test-secret", TTLMinutes: 60, MaxSessions: 10}
	store := service.NewSessionStore(cfg)
	gen := &stubGenerator{}
	exporter := &stubExporter{}
	renderer := service.NewRenderer(config.ThemeConfig{
		Primary: "#172808", Secondary: "#2E7D32", Background: "#F5F9F6", Paper: "#FFFFFF",
		Text: "#000000", FontFamily: "serif", FontSizePx: 14, LineHeight: 1.6, PagePaddingPx: 40,
	}, config.RenderConfig{}, 800)

	sessions := NewSessionHandler(cfg, store)
	contracts := NewContractHandler(gen, renderer, exporter, archive)

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	api := router.Group("/api")
	api.GET("/contract-types", contracts.ContractTypes)
	api.POST("/sessions", sessions.Create)

	scoped := api.Group("/session")
	scoped.Use(middleware.SessionAuth(cfg, store))
	scoped.GET("", sessions.Get)
	scoped.DELETE("", sessions.Delete)
	scoped.POST("/generate", contracts.Generate)
	scoped.PATCH("/fields", contracts.UpdateFields)
	scoped.POST("/regenerate", contracts.Regenerate)
	scoped.POST("/back", contracts.Back)
	scoped.DELETE("/error", contracts.DismissError)
	scoped.GET("/document", contracts.Document)
	scoped.GET("/export", contracts.Export)

	return &testServer{router: router, store: store, cfg: cfg, gen: gen, exporter: exporter}
}

// newSession creates a session through the API and returns its token
func (s *testServer) newSession(t *testing.T) string {
	t.Helper()
	w := s.do(t, "POST", "/api/sessions", "", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 creating session, got %d: %s", w.Code, w.Body.String())
	}
	var resp CreateSessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	return resp.Token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) model.SessionView {
	t.Helper()
	var view model.SessionView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("Failed to parse session view: %v (%s)", err, w.Body.String())
	}
	return view
}
