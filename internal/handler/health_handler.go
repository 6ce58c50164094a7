package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const healthPingTimeout = 2 * time.Second

// Pinger はDB接続確認のインターフェース。*sql.DBが実装する。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler は稼働確認のHTTPハンドラー。
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler はHealthHandlerを生成する。dbがnilの場合はDB確認を省略する。
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Root はAPIの稼働メッセージを返す。
// GET /
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Message: "Anime Tracker API is running"})
}

// Health はDB疎通を含めた稼働状態を返す。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "error", Message: "Database unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Message: "Anime Tracker API is running"})
}
