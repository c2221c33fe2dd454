package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/iho/badbank/internal/infrastructure/logger"
)

func TestLoggingMiddleware_LogsRequestWithID(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(logger.Config{Format: "json", Level: "info"}, &buf)

	var sawLogger bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info().Msg("inside")
		sawLogger = true
		w.WriteHeader(http.StatusCreated)
	})

	handler := chimw.RequestID(NewLoggingMiddleware(log).Wrap(next))
	req := httptest.NewRequest(http.MethodPost, "/api/users/deposit", nil)
	req.Header.Set(chimw.RequestIDHeader, "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !sawLogger {
		t.Fatalf("handler not called")
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if entry["request_id"] != "req-42" || entry["status"] != float64(http.StatusCreated) || entry["path"] != "/api/users/deposit" {
		t.Fatalf("unexpected access log entry %v", entry)
	}
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(logger.Config{Format: "json", Level: "info"}, &buf)

	handler := NewLoggingMiddleware(log).Wrap(Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/users/balance", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Fatalf("expected panic to be logged, got %s", buf.String())
	}
}
