package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/animetracker/internal/auth"
)

type recordedRequest struct {
	method string
	route  string
	status int
}

type mockHTTPRecorder struct {
	requests []recordedRequest
}

func (m *mockHTTPRecorder) RecordHTTPRequest(method, route string, statusCode int, _ time.Duration) {
	m.requests = append(m.requests, recordedRequest{method, route, statusCode})
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func decodeLogEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
	}
	return entry
}

// TestLoggingMiddleware_LogsRequestFields はリクエストログに必要なフィールドが含まれることを検証する。
func TestLoggingMiddleware_LogsRequestFields(t *testing.T) {
	var buf bytes.Buffer
	handler := NewLoggingMiddleware(newTestLogger(&buf), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/anime/list", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := decodeLogEntry(t, &buf)
	if entry["msg"] != "http_request" {
		t.Errorf("msg = %q, want http_request", entry["msg"])
	}
	if entry["method"] != "GET" {
		t.Errorf("method = %q, want %q", entry["method"], "GET")
	}
	if entry["path"] != "/anime/list" {
		t.Errorf("path = %q, want %q", entry["path"], "/anime/list")
	}
	if status, ok := entry["status"].(float64); !ok || status != 200 {
		t.Errorf("status = %v, want 200", entry["status"])
	}
	if d, ok := entry["duration_ms"].(float64); !ok || d < 0 {
		t.Errorf("duration_ms = %v, want >= 0", entry["duration_ms"])
	}
	if _, ok := entry["user_id"]; ok {
		t.Errorf("user_id should be absent for unauthenticated request, got %v", entry["user_id"])
	}
}

// TestLoggingMiddleware_IncludesUserIDFromInnerSession は内側のセッションミドルウェアが
// 認証したユーザーIDがアクセスログに出力されることを検証する。
func TestLoggingMiddleware_IncludesUserIDFromInnerSession(t *testing.T) {
	var buf bytes.Buffer
	verifier := &mockVerifier{
		verifyFn: func(context.Context, string) (*auth.Claims, error) {
			return &auth.Claims{UserID: "user-123"}, nil
		},
	}

	inner := NewSessionMiddleware(verifier, TransportCookie)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler := NewLoggingMiddleware(newTestLogger(&buf), nil)(inner)

	req := httptest.NewRequest(http.MethodGet, "/anime/list", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tok"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := decodeLogEntry(t, &buf)
	if entry["user_id"] != "user-123" {
		t.Errorf("user_id = %q, want %q", entry["user_id"], "user-123")
	}
}

// TestLoggingMiddleware_LevelByStatus はステータスコードに応じてログレベルが変わることを検証する。
func TestLoggingMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		statusCode int
		wantLevel  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusCreated, "INFO"},
		{http.StatusBadRequest, "WARN"},
		{http.StatusNotFound, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
		{http.StatusGatewayTimeout, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.statusCode), func(t *testing.T) {
			var buf bytes.Buffer
			handler := NewLoggingMiddleware(newTestLogger(&buf), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

			entry := decodeLogEntry(t, &buf)
			if status := int(entry["status"].(float64)); status != tt.statusCode {
				t.Errorf("status = %d, want %d", status, tt.statusCode)
			}
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", entry["level"], tt.wantLevel)
			}
		})
	}
}

// TestLoggingMiddleware_BodyWriteCapture はWriteHeaderなしの書き込みで200が記録されることを検証する。
func TestLoggingMiddleware_BodyWriteCapture(t *testing.T) {
	var buf bytes.Buffer
	handler := NewLoggingMiddleware(newTestLogger(&buf), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

	entry := decodeLogEntry(t, &buf)
	if status := int(entry["status"].(float64)); status != 200 {
		t.Errorf("status = %d, want 200", status)
	}
}

// TestLoggingMiddleware_RecordsRoutePattern はメトリクスにパスではなくルートパターンが渡ることを検証する。
func TestLoggingMiddleware_RecordsRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	rec := &mockHTTPRecorder{}

	r := chi.NewRouter()
	r.Use(NewLoggingMiddleware(newTestLogger(&buf), rec))
	r.Delete("/anime/delete/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/anime/delete/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	want := []recordedRequest{
		{http.MethodDelete, "/anime/delete/{id}", http.StatusOK},
		{http.MethodGet, "unmatched", http.StatusNotFound},
	}
	if len(rec.requests) != len(want) {
		t.Fatalf("requests = %+v, want %+v", rec.requests, want)
	}
	for i := range want {
		if rec.requests[i] != want[i] {
			t.Errorf("requests[%d] = %+v, want %+v", i, rec.requests[i], want[i])
		}
	}
}
