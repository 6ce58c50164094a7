package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/animetracker/internal/auth"
	"github.com/hitoshi/animetracker/internal/metrics"
	"github.com/hitoshi/animetracker/internal/middleware"
	"github.com/hitoshi/animetracker/internal/model"
	"github.com/hitoshi/animetracker/internal/user"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in model.RegisterInput) (*model.User, error)
	Login(ctx context.Context, in model.LoginInput) (*auth.LoginResult, error)
	RefreshSession(ctx context.Context, token string) (string, *auth.Claims, error)
	Logout(ctx context.Context, token string) error
}

// ProfileServiceInterface はプロフィール取得のサービスインターフェース。
type ProfileServiceInterface interface {
	GetProfile(ctx context.Context, userID string) (*user.Profile, error)
}

// AuthEventRecorder は認証イベントの結果を記録するインターフェース。
type AuthEventRecorder interface {
	RecordAuthEvent(event, outcome string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	Transport      middleware.SessionTransport
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite
}

// AuthHandler は登録・ログイン・セッション管理のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	profiles ProfileServiceInterface
	recorder AuthEventRecorder
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。recorderはnilでよい。
func NewAuthHandler(service AuthServiceInterface, profiles ProfileServiceInterface, recorder AuthEventRecorder, config AuthHandlerConfig) *AuthHandler {
	if config.Transport == "" {
		config.Transport = middleware.TransportCookie
	}
	return &AuthHandler{
		service:  service,
		profiles: profiles,
		recorder: recorder,
		config:   config,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

type registerResponse struct {
	Message string       `json:"message"`
	User    userResponse `json:"user"`
}

// sessionResponse はログイン・トークン更新のレスポンス。
// tokenとexpires_atはbearer方式の場合のみ含める。
type sessionResponse struct {
	Message   string        `json:"message"`
	User      *userResponse `json:"user,omitempty"`
	Token     string        `json:"token,omitempty"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
}

// Register はユーザー登録を処理する。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	u, err := h.service.Register(r.Context(), model.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
	})
	h.record("register", err)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		Message: "User registered successfully",
		User:    userResponse{ID: u.ID, Email: u.Email, Username: u.Username},
	})
}

// Login はログインを処理し、セッショントークンを発行する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.service.Login(r.Context(), model.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	h.record("login", err)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := sessionResponse{
		Message: "Login successful",
		User:    &userResponse{ID: result.User.ID, Email: result.User.Email},
	}
	h.deliverToken(w, &resp, result.Token, result.ExpiresAt)
	writeJSON(w, http.StatusOK, resp)
}

// Profile は認証済みユーザーのプロフィールを返す。
// GET /auth/profile
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	profile, err := h.profiles.GetProfile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Logout はセッションを終了する。
// POST /auth/logout
// トークンの有無や有効性にかかわらず常に200を返し、cookie方式ではCookieを削除する。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromRequest(r, h.config.Transport)
	err := h.service.Logout(r.Context(), token)
	h.record("logout", err)
	if err != nil {
		slog.Error("failed to logout", slog.String("error", err.Error()))
	}

	if h.config.Transport == middleware.TransportCookie {
		h.setSessionCookie(w, "", -1)
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

// Refresh は有効なセッショントークンを再発行する。
// POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.TokenFromContext(r.Context())
	if !ok {
		token = middleware.TokenFromRequest(r, h.config.Transport)
	}

	newToken, claims, err := h.service.RefreshSession(r.Context(), token)
	h.record("refresh", err)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := sessionResponse{Message: "Token refreshed"}
	h.deliverToken(w, &resp, newToken, claims.Expiry())
	writeJSON(w, http.StatusOK, resp)
}

// deliverToken は受け渡し方式に従ってトークンをCookieまたはレスポンスボディに載せる。
func (h *AuthHandler) deliverToken(w http.ResponseWriter, resp *sessionResponse, token string, expiresAt time.Time) {
	if h.config.Transport == middleware.TransportBearer {
		resp.Token = token
		resp.ExpiresAt = &expiresAt
		return
	}
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = int(auth.DefaultSessionTTL.Seconds())
	}
	h.setSessionCookie(w, token, maxAge)
}

// setSessionCookie はセッションCookie（HTTP Only）を設定する。maxAgeが負の場合は削除する。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	sameSite := h.config.CookieSameSite
	if sameSite == 0 {
		sameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: sameSite,
	})
}

func (h *AuthHandler) record(event string, err error) {
	if h.recorder != nil {
		h.recorder.RecordAuthEvent(event, metrics.Outcome(err))
	}
}
