// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/animetracker/internal/auth"
	"github.com/hitoshi/animetracker/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "auth_token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")
	claimsContextKey = contextKey("claims")
	tokenContextKey  = contextKey("token")
)

// SessionVerifier はセッショントークンの検証に必要なインターフェース。
// auth.Serviceが実装する。
type SessionVerifier interface {
	VerifySession(ctx context.Context, token string) (*auth.Claims, error)
}

// SessionTransport はセッショントークンの受け渡し方式を表す。
type SessionTransport string

const (
	// TransportCookie はHTTP Only Cookieでトークンを受け渡す。
	TransportCookie SessionTransport = "cookie"
	// TransportBearer はAuthorization: Bearer ヘッダーでトークンを受け渡す。
	TransportBearer SessionTransport = "bearer"
)

// Valid は定義済みの方式かどうかを返す。
func (t SessionTransport) Valid() bool {
	return t == TransportCookie || t == TransportBearer
}

// TokenFromRequest は受け渡し方式に従ってリクエストからセッショントークンを取り出す。
// cookie方式ではCookieのみ、bearer方式ではAuthorizationヘッダーのみを参照する。
func TokenFromRequest(r *http.Request, transport SessionTransport) string {
	if transport == TransportBearer {
		token, _ := bearerToken(r)
		return token
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// NewSessionMiddleware はセッショントークンを検証し、
// 認証済みユーザーIDをリクエストコンテキストに注入するミドルウェアを返す。
// トークンがない場合は401 UNAUTHENTICATED、無効な場合は401 INVALID_TOKENを返す。
func NewSessionMiddleware(verifier SessionVerifier, transport SessionTransport) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r, transport)
			if token == "" {
				WriteAppError(w, model.NewUnauthenticatedError())
				return
			}

			claims, err := verifier.VerifySession(r.Context(), token)
			if err != nil {
				var appErr *model.AppError
				if !errors.As(err, &appErr) {
					appErr = model.NewInvalidTokenError(err)
				}
				WriteAppError(w, appErr)
				return
			}

			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), token, claims)))
		})
	}
}

// NewOptionalSessionMiddleware は有効なトークンがあればユーザーIDを注入し、
// なければそのまま次のハンドラーに渡すミドルウェアを返す。
func NewOptionalSessionMiddleware(verifier SessionVerifier, transport SessionTransport) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r, transport)
			if token != "" {
				if claims, err := verifier.VerifySession(r.Context(), token); err == nil {
					r = r.WithContext(withSession(r.Context(), token, claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func withSession(ctx context.Context, token string, claims *auth.Claims) context.Context {
	setLoggedUserID(ctx, claims.UserID)
	ctx = context.WithValue(ctx, tokenContextKey, token)
	ctx = context.WithValue(ctx, claimsContextKey, claims)
	return ContextWithUserID(ctx, claims.UserID)
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// ClaimsFromContext は検証済みのトークンクレームを返す。
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*auth.Claims)
	return claims, ok
}

// TokenFromContext は検証済みのセッショントークン文字列を返す。
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey).(string)
	return token, ok && token != ""
}
