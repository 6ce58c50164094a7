// Package app はサブコマンドに応じた依存関係の組み立てとプロセスのライフサイクルを管理する。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/animetracker/internal/anime"
	"github.com/hitoshi/animetracker/internal/auth"
	"github.com/hitoshi/animetracker/internal/config"
	"github.com/hitoshi/animetracker/internal/database"
	"github.com/hitoshi/animetracker/internal/handler"
	"github.com/hitoshi/animetracker/internal/logger"
	"github.com/hitoshi/animetracker/internal/metrics"
	"github.com/hitoshi/animetracker/internal/middleware"
	"github.com/hitoshi/animetracker/internal/repository"
	"github.com/hitoshi/animetracker/internal/security"
	"github.com/hitoshi/animetracker/internal/user"
	"github.com/hitoshi/animetracker/internal/worker/cleanup"
)

const (
	shutdownTimeout = 30 * time.Second
	dbPingTimeout   = 5 * time.Second

	serverReadTimeout  = 65 * time.Second
	serverWriteTimeout = 65 * time.Second
	serverIdleTimeout  = 60 * time.Second
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// .envで指定されたLOG_LEVELを反映する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "3001"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("session_transport", cfg.SessionTransport),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.OpenWithPool(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, dbPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// newRegistry はアプリケーションとランタイムのメトリクスを登録したレジストリを返す。
func newRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// newAuthService はIDプロバイダーとリポジトリを組み立てて認証サービスを生成する。
func newAuthService(cfg *config.Config, db *sql.DB) *auth.Service {
	provider := auth.NewGoTrueProvider(auth.GoTrueConfig{
		BaseURL:        cfg.SupabaseURL,
		AnonKey:        cfg.SupabaseAnonKey,
		ServiceRoleKey: cfg.SupabaseServiceRoleKey,
		Timeout:        cfg.ProviderTimeout,
	})

	var revocations repository.RevocationRepository
	if cfg.SessionRevocationEnabled {
		revocations = repository.NewPostgresRevocationRepo(db)
	}

	return auth.NewService(
		provider,
		repository.NewPostgresUserRepo(db),
		revocations,
		auth.NewTokenManager(cfg.JWTSecret, cfg.SessionTTL),
		auth.ServiceConfig{
			ReplaceExisting:   cfg.RegistrationReplaceExisting,
			RevocationEnabled: cfg.SessionRevocationEnabled,
		},
	)
}

// newServer は全依存関係をワイヤリングしたHTTPサーバーを生成する。
func newServer(cfg *config.Config, db *sql.DB) *http.Server {
	reg, collector := newRegistry()
	authService := newAuthService(cfg, db)
	transport := middleware.SessionTransport(cfg.SessionTransport)

	animeService := anime.NewService(
		repository.NewPostgresAnimeRepo(db),
		repository.NewPostgresUserAnimeRepo(db),
		security.NewImageURLPolicy(),
		collector,
	)

	router := handler.NewRouter(&handler.RouterDeps{
		SessionVerifier:    authService,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure:   cfg.CookieSecure,
			CookieDomain:   cfg.CookieDomain,
			CookieSameSite: cfg.CookieSameSite,
		},
		RequestTimeout: cfg.RequestTimeout,
		Logger:         slog.Default(),
		HTTPRecorder:   collector,
		MetricsHandler: metrics.Handler(reg),

		AuthService:    authService,
		ProfileService: user.NewService(repository.NewPostgresUserRepo(db)),
		AuthRecorder:   collector,
		AuthConfig: handler.AuthHandlerConfig{
			Transport:      transport,
			CookieDomain:   cfg.CookieDomain,
			CookieSecure:   cfg.CookieSecure,
			CookieSameSite: cfg.CookieSameSite,
		},

		AnimeService: animeService,
		DB:           db,
	})

	return &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}
}

// runServe はAPIサーバーモードで起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	server := newServer(cfg, db)
	return serve(ctx, server)
}

// serve はサーバーを起動し、ctxのキャンセルでシャットダウンする。
func serve(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 失効リストのクリーンアップジョブをctxがキャンセルされるまで実行する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	_, collector := newRegistry()
	job := cleanup.NewCleanupJob(repository.NewPostgresRevocationRepo(db), collector, slog.Default())

	slog.Info("worker starting", slog.Duration("cleanup_interval", cfg.CleanupInterval))
	job.Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
