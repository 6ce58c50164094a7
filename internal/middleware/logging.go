package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// HTTPRecorder はHTTPリクエストのメトリクスを記録するインターフェース。
type HTTPRecorder interface {
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
}

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// requestLog は内側のミドルウェアがアクセスログへ情報を渡すための入れ物。
type requestLog struct {
	mu     sync.Mutex
	userID string
}

var requestLogContextKey = contextKey("request_log")

// setLoggedUserID はアクセスログに出力するユーザーIDを記録する。
// ロギングミドルウェアの外側では何もしない。
func setLoggedUserID(ctx context.Context, userID string) {
	rl, ok := ctx.Value(requestLogContextKey).(*requestLog)
	if !ok {
		return
	}
	rl.mu.Lock()
	rl.userID = userID
	rl.mu.Unlock()
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、user_id（認証済みの場合）を含む。
// recorderが指定された場合はchiのルートパターン単位でメトリクスも記録する。
func NewLoggingMiddleware(logger *slog.Logger, recorder HTTPRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			rl := &requestLog{}
			r = r.WithContext(context.WithValue(r.Context(), requestLogContextKey, rl))

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			durationMs := float64(duration.Nanoseconds()) / float64(time.Millisecond)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", durationMs),
			}

			rl.mu.Lock()
			userID := rl.userID
			rl.mu.Unlock()
			if userID == "" {
				userID, _ = UserIDFromContext(r.Context())
			}
			if userID != "" {
				attrs = append(attrs, slog.String("user_id", userID))
			}

			// slogのログレベルをステータスコードに応じて変更
			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.LogAttrs(r.Context(), level, "http_request", attrs...)

			if recorder != nil {
				recorder.RecordHTTPRequest(r.Method, routePattern(r), rec.statusCode, duration)
			}
		})
	}
}

// routePattern はメトリクスのラベルに使うルートパターンを返す。
// パスパラメータごとにラベルが増えないよう、生のパスは使わない。
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
