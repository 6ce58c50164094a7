package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/animetracker/internal/model"
)

const (
	// csrfCookieName はCSRFトークンを保持するCookieの名前。
	// フロントエンドからJavaScriptで読み取れるよう、HttpOnlyではない。
	csrfCookieName = "csrf_token"

	// csrfHeaderName はリクエストヘッダーからCSRFトークンを読み取る際のヘッダー名。
	csrfHeaderName = "X-CSRF-Token"

	csrfCookieMaxAge = 86400 // 24時間
)

// CSRFConfig はCSRFミドルウェアの設定。
type CSRFConfig struct {
	CookieSecure   bool
	CookieDomain   string
	CookieSameSite http.SameSite
}

func (c CSRFConfig) sameSite() http.SameSite {
	if c.CookieSameSite == 0 {
		return http.SameSiteLaxMode
	}
	return c.CookieSameSite
}

// NewCSRFMiddleware はダブルサブミット方式のCSRF検証ミドルウェアを返す。
// 安全なメソッド（GET, HEAD, OPTIONS）はトークン検証をスキップし、CSRFトークンCookieを設定する。
// cookie方式のセッションでのみ使用する。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				ensureCSRFCookie(w, r, config)
				next.ServeHTTP(w, r)
				return
			}

			reason := ""
			cookieToken, err := r.Cookie(csrfCookieName)
			headerToken := r.Header.Get(csrfHeaderName)
			switch {
			case err != nil || cookieToken.Value == "":
				reason = "missing cookie token"
			case headerToken == "":
				reason = "missing header token"
			case subtle.ConstantTimeCompare([]byte(cookieToken.Value), []byte(headerToken)) != 1:
				reason = "token mismatch"
			}
			if reason != "" {
				slog.Warn("CSRF validation failed: "+reason,
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteAppError(w, model.NewCSRFError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewCSRFTokenHandler はCSRFトークン取得エンドポイントのハンドラーを返す。
// GET /auth/csrf-token
// 既存のCSRFトークンCookieがある場合はそれを返し、なければ新規生成する。
func NewCSRFTokenHandler(config CSRFConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string

		cookie, err := r.Cookie(csrfCookieName)
		if err == nil && cookie.Value != "" {
			token = cookie.Value
		} else {
			token, err = generateCSRFToken()
			if err != nil {
				slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
				WriteInternalServerError(w)
				return
			}
			setCSRFCookie(w, token, config)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"token": token,
		})
	})
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// ensureCSRFCookie はCSRFトークンCookieが未設定の場合に設定する。
func ensureCSRFCookie(w http.ResponseWriter, r *http.Request, config CSRFConfig) {
	if _, err := r.Cookie(csrfCookieName); err == nil {
		return
	}

	token, err := generateCSRFToken()
	if err != nil {
		slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
		return
	}
	setCSRFCookie(w, token, config)
}

func setCSRFCookie(w http.ResponseWriter, token string, config CSRFConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   csrfCookieMaxAge,
		HttpOnly: false, // フロントエンドから読み取り可能
		Secure:   config.CookieSecure,
		SameSite: config.sameSite(),
	})
}

// generateCSRFToken は暗号的に安全なCSRFトークンを生成する。
func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
