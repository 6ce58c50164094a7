package app

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hitoshi/animetracker/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:              "test-jwt-secret",
		SupabaseURL:            "http://127.0.0.1:1",
		SupabaseAnonKey:        "anon-key",
		SupabaseServiceRoleKey: "service-role-key",
		ServerPort:             "0",
		SessionTTL:             time.Hour,
		SessionTransport:       config.TransportCookie,
		RequestTimeout:         time.Second,
		ProviderTimeout:        time.Second,
		CookieSameSite:         http.SameSiteLaxMode,
		CORSAllowedOrigins:     []string{"http://localhost:5173"},
	}
}

func TestNewServer_TimeoutsAndAddr(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	server := newServer(testConfig(), db)

	if server.Addr != ":0" {
		t.Errorf("Addr = %q, want %q", server.Addr, ":0")
	}
	if server.ReadTimeout != 65*time.Second || server.WriteTimeout != 65*time.Second {
		t.Errorf("read/write timeouts = %v/%v, want 65s", server.ReadTimeout, server.WriteTimeout)
	}
	if server.IdleTimeout != 60*time.Second {
		t.Errorf("IdleTimeout = %v, want 60s", server.IdleTimeout)
	}
}

func TestNewServer_WiresHealthAndMetrics(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	mock.ExpectPing()

	handler := newServer(testConfig(), db).Handler

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d, want %d", w.Code, http.StatusOK)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("health should ping the database: %v", err)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	for _, name := range []string{`animetracker_http_requests_total{method="GET",route="/health",status_code="200"} 1`, "go_goroutines"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output should contain %q", name)
		}
	}
}

func TestNewServer_BearerTransportHasNoCSRFRoute(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	cfg := testConfig()
	cfg.SessionTransport = config.TransportBearer
	handler := newServer(cfg, db).Handler

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/csrf-token", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	server := &http.Server{
		Addr: addr,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, server) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + addr)
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not start: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
