package command

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yndnr/crmdesk-go/internal/config"
)

// mockServer creates a test HTTP server with custom handlers.
type mockServer struct {
	*httptest.Server
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
}

// newMockServer creates a new mock server closed at test end.
func newMockServer(t *testing.T) *mockServer {
	t.Helper()
	m := &mockServer{
		handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		handler, ok := m.handlers[r.Method+" "+r.URL.Path]
		m.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

// handle registers a handler for "METHOD /path".
func (m *mockServer) handle(pattern string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[pattern] = handler
}

// jsonResponse writes a JSON response.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// errorResponse writes an error response.
func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]any{
		"success": false,
		"message": message,
	})
}

// mintToken signs a token expiring at exp.
func mintToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "CUST1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

// acceptLogin makes the server grant a session for CUST1 and returns the
// token it hands out.
func acceptLogin(t *testing.T, m *mockServer) string {
	t.Helper()
	tok := mintToken(t, time.Now().Add(time.Hour))
	m.handle("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "pw" {
			errorResponse(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]any{
			"success": true,
			"token":   tok,
			"user":    map[string]any{"cust_id": "CUST1", "cust_uniq_id": "IND1"},
		})
	})
	return tok
}

// testConfig returns a config using in-memory storage and the mock backend.
func testConfig(server *mockServer) *config.Config {
	cfg := config.Default()
	cfg.Log.Output = io.Discard
	cfg.Storage.Engine = "memory"
	cfg.Storage.Dir = ""
	cfg.Backend.BaseURL = server.URL
	cfg.Backend.Timeout = 2 * time.Second
	cfg.Backend.LoginRate = 0
	cfg.Session.RestoreTimeout = time.Second
	return cfg
}

// newTestRuntime opens a runtime over in-memory storage.
func newTestRuntime(t *testing.T, cfg *config.Config) *Runtime {
	t.Helper()
	rt, err := OpenRuntime(context.Background(), cfg)
	if err != nil {
		t.Fatalf("OpenRuntime() error = %v", err)
	}
	t.Cleanup(func() { rt.Close() })
	return rt
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// runApp runs one command line against rt and returns its output.
func runApp(t *testing.T, rt *Runtime, stdin string, args ...string) (string, error) {
	t.Helper()
	out := &syncBuffer{}

	app := App()
	app.Reader = strings.NewReader(stdin)
	app.Writer = out
	app.ErrWriter = out
	SetRuntime(app, rt)

	err := app.RunContext(context.Background(), append([]string{"crmdesk"}, args...))
	return out.String(), err
}
