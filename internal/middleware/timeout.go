package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hitoshi/animetracker/internal/model"
)

// DefaultRequestTimeout はリクエスト処理の既定のタイムアウト。
const DefaultRequestTimeout = 60 * time.Second

// timeoutWriter はハンドラーの出力をバッファし、タイムアウト後の書き込みを破棄する。
type timeoutWriter struct {
	w    http.ResponseWriter
	h    http.Header
	buf  bytes.Buffer
	code int

	mu          sync.Mutex
	timedOut    bool
	wroteHeader bool
}

func (tw *timeoutWriter) Header() http.Header { return tw.h }

func (tw *timeoutWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if !tw.wroteHeader {
		tw.writeHeaderLocked(http.StatusOK)
	}
	return tw.buf.Write(p)
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut || tw.wroteHeader {
		return
	}
	tw.writeHeaderLocked(code)
}

func (tw *timeoutWriter) writeHeaderLocked(code int) {
	tw.wroteHeader = true
	tw.code = code
}

// NewTimeoutMiddleware はリクエストにデッドラインを設定し、
// 応答前にデッドラインを過ぎた場合は504 TIMEOUTを返すミドルウェアを返す。
// ハンドラー内のpanicは呼び出し元のgoroutineで再送出する。
func NewTimeoutMiddleware(timeout time.Duration) func(next http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			tw := &timeoutWriter{w: w, h: make(http.Header)}
			done := make(chan struct{})
			panicChan := make(chan any, 1)

			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicChan <- p
					}
				}()
				next.ServeHTTP(tw, r.WithContext(ctx))
				close(done)
			}()

			select {
			case p := <-panicChan:
				panic(p)
			case <-done:
				tw.mu.Lock()
				defer tw.mu.Unlock()
				dst := w.Header()
				for k, vv := range tw.h {
					dst[k] = vv
				}
				if !tw.wroteHeader {
					tw.code = http.StatusOK
				}
				w.WriteHeader(tw.code)
				w.Write(tw.buf.Bytes())
			case <-ctx.Done():
				tw.mu.Lock()
				defer tw.mu.Unlock()
				tw.timedOut = true
				if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
					// クライアント切断。応答先がないため何も書かない
					return
				}
				slog.Warn("request timed out",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Duration("timeout", timeout),
				)
				WriteAppError(w, model.NewTimeoutError())
			}
		})
	}
}
