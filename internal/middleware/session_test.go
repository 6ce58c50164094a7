package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/animetracker/internal/auth"
	"github.com/hitoshi/animetracker/internal/model"
)

// --- モック定義 ---

type mockVerifier struct {
	verifyFn func(ctx context.Context, token string) (*auth.Claims, error)
}

func (m *mockVerifier) VerifySession(ctx context.Context, token string) (*auth.Claims, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, token)
	}
	return nil, model.NewInvalidTokenError(nil)
}

func tokenVerifier(valid, userID string) *mockVerifier {
	return &mockVerifier{
		verifyFn: func(_ context.Context, token string) (*auth.Claims, error) {
			if token == valid {
				return &auth.Claims{UserID: userID, Email: "a@b.com"}, nil
			}
			return nil, model.NewInvalidTokenError(errors.New("signature is invalid"))
		},
	}
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	return body
}

// --- テスト ---

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name      string
		transport SessionTransport
		header    string
		cookie    string
		want      string
	}{
		{"cookie", TransportCookie, "", "from-cookie", "from-cookie"},
		{"cookie ignores bearer header", TransportCookie, "Bearer abc", "", ""},
		{"bearer", TransportBearer, "Bearer abc", "", "abc"},
		{"bearer case-insensitive", TransportBearer, "bearer abc", "", "abc"},
		{"bearer ignores cookie", TransportBearer, "", "from-cookie", ""},
		{"bearer non-bearer scheme", TransportBearer, "Basic xyz", "", ""},
		{"bearer empty", TransportBearer, "Bearer ", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tt.cookie})
			}
			if got := TokenFromRequest(req, tt.transport); got != tt.want {
				t.Errorf("TokenFromRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSessionTransport_Valid(t *testing.T) {
	for _, tr := range []SessionTransport{TransportCookie, TransportBearer} {
		if !tr.Valid() {
			t.Errorf("%q should be valid", tr)
		}
	}
	if SessionTransport("header").Valid() {
		t.Error("unknown transport should be invalid")
	}
}

func TestSessionMiddleware_ValidCookie_InjectsUserID(t *testing.T) {
	mw := NewSessionMiddleware(tokenVerifier("good", "user-123"), TransportCookie)

	var capturedUserID, capturedToken string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		capturedUserID = userID
		capturedToken, _ = TokenFromContext(r.Context())
		if claims, ok := ClaimsFromContext(r.Context()); !ok || claims.Email != "a@b.com" {
			t.Errorf("claims = %+v, want email a@b.com", claims)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "good"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if capturedUserID != "user-123" {
		t.Errorf("userID = %q, want %q", capturedUserID, "user-123")
	}
	if capturedToken != "good" {
		t.Errorf("token = %q, want %q", capturedToken, "good")
	}
}

func TestSessionMiddleware_ValidBearer_InjectsUserID(t *testing.T) {
	mw := NewSessionMiddleware(tokenVerifier("good", "user-9"), TransportBearer)

	var capturedUserID string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedUserID, _ = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/anime/list", nil)
	req.Header.Set("Authorization", "Bearer good")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if capturedUserID != "user-9" {
		t.Errorf("userID = %q, want %q", capturedUserID, "user-9")
	}
}

func TestSessionMiddleware_NoToken_ReturnsUnauthenticated(t *testing.T) {
	mw := NewSessionMiddleware(tokenVerifier("good", "user-1"), TransportCookie)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/anime/list", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if body := decodeErrorBody(t, w); body.Code != "UNAUTHENTICATED" {
		t.Errorf("code = %q, want UNAUTHENTICATED", body.Code)
	}
}

func TestSessionMiddleware_InvalidToken_ReturnsInvalidToken(t *testing.T) {
	mw := NewSessionMiddleware(tokenVerifier("good", "user-1"), TransportCookie)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/anime/list", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tampered"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	body := decodeErrorBody(t, w)
	if body.Code != "INVALID_TOKEN" {
		t.Errorf("code = %q, want INVALID_TOKEN", body.Code)
	}
	if body.Error != "Invalid or expired token" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestSessionMiddleware_VerifierPlainError_ReturnsInvalidToken(t *testing.T) {
	mw := NewSessionMiddleware(&mockVerifier{
		verifyFn: func(context.Context, string) (*auth.Claims, error) {
			return nil, errors.New("unexpected")
		},
	}, TransportBearer)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer x")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if body := decodeErrorBody(t, w); body.Code != "INVALID_TOKEN" {
		t.Errorf("code = %q, want INVALID_TOKEN", body.Code)
	}
}

func TestOptionalSessionMiddleware(t *testing.T) {
	mw := NewOptionalSessionMiddleware(tokenVerifier("good", "user-1"), TransportCookie)

	tests := []struct {
		name   string
		cookie string
		want   string
	}{
		{"valid token", "good", "user-1"},
		{"invalid token", "bad", ""},
		{"no token", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			var got string
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				got, _ = UserIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tt.cookie})
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if !called {
				t.Fatal("handler should always be called")
			}
			if got != tt.want {
				t.Errorf("userID = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserIDFromContext_Missing(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for empty context")
	}
	ctx := ContextWithUserID(context.Background(), "user-5")
	if id, err := UserIDFromContext(ctx); err != nil || id != "user-5" {
		t.Errorf("UserIDFromContext() = %q, %v", id, err)
	}
}
