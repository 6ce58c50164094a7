package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/animetracker/internal/middleware"
	"github.com/hitoshi/animetracker/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionVerifier    middleware.SessionVerifier
	CORSAllowedOrigins []string
	CSRFConfig         middleware.CSRFConfig
	RequestTimeout     time.Duration
	Logger             *slog.Logger
	HTTPRecorder       middleware.HTTPRecorder
	MetricsHandler     http.Handler

	// 認証
	AuthService    AuthServiceInterface
	ProfileService ProfileServiceInterface
	AuthRecorder   AuthEventRecorder
	AuthConfig     AuthHandlerConfig

	// ウォッチリスト
	AnimeService AnimeServiceInterface

	// ヘルスチェック
	DB Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Logging → Recovery → SecurityHeaders → CORS → Timeout → (Session → CSRF)
//
// CSRF検証はcookie方式の場合のみ、認証が必要な状態変更ルートに適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	transport := deps.AuthConfig.Transport
	if transport == "" {
		transport = middleware.TransportCookie
	}
	deps.AuthConfig.Transport = transport

	r := chi.NewRouter()
	r.Use(middleware.NewLoggingMiddleware(logger, deps.HTTPRecorder))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))
	r.Use(middleware.NewTimeoutMiddleware(deps.RequestTimeout))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteAppError(w, model.NewNotFoundError("Route"))
	})

	authHandler := NewAuthHandler(deps.AuthService, deps.ProfileService, deps.AuthRecorder, deps.AuthConfig)
	animeHandler := NewAnimeHandler(deps.AnimeService)
	healthHandler := NewHealthHandler(deps.DB)

	requireSession := middleware.NewSessionMiddleware(deps.SessionVerifier, transport)
	protect := func(r chi.Router) {
		r.Use(requireSession)
		if transport == middleware.TransportCookie {
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		}
	}

	// --- 認証不要のルート ---
	r.Get("/", healthHandler.Root)
	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		if transport == middleware.TransportCookie {
			r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)
		}
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.With(middleware.NewOptionalSessionMiddleware(deps.SessionVerifier, transport)).Post("/logout", authHandler.Logout)

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			protect(r)
			r.Get("/profile", authHandler.Profile)
			r.Post("/refresh", authHandler.Refresh)
		})
	})

	r.Route("/anime", func(r chi.Router) {
		protect(r)
		r.Post("/add", animeHandler.AddAnime)
		r.Delete("/delete/{id}", animeHandler.DeleteAnime)
		r.Get("/list", animeHandler.ListAnime)
		r.Patch("/update/{id}", animeHandler.UpdateAnime)
		r.Patch("/status/{id}", animeHandler.UpdateAnimeStatus)
	})

	return r
}
