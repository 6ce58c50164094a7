// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/animetracker/internal/middleware"
	"github.com/hitoshi/animetracker/internal/model"
)

// messageResponse は処理結果のメッセージのみを返すレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをvにデコードする。
// 不正なJSONの場合はINVALID_JSONエラーを返す。
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return model.NewInvalidJSONError(err)
	}
	return nil
}

// requireUserID はセッションミドルウェアが注入したユーザーIDを取り出す。
// 取り出せない場合は401を書き込みfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAppError(w, model.NewUnauthenticatedError())
		return "", false
	}
	return userID, true
}

// handleServiceError はサービス層から返されたエラーをレスポンスに変換する。
// デッドライン超過が原因のサーバーエラーは504として返す。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *model.AppError
	isAppErr := errors.As(err, &appErr)

	if (!isAppErr || appErr.Status >= http.StatusInternalServerError) && errors.Is(err, context.DeadlineExceeded) {
		slog.Warn("request deadline exceeded",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		middleware.WriteAppError(w, model.NewTimeoutError())
		return
	}

	if !isAppErr {
		slog.Error("internal server error",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	if appErr.Status >= http.StatusInternalServerError {
		slog.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("code", appErr.Code),
			slog.String("error", err.Error()),
		)
	}
	middleware.WriteAppError(w, appErr)
}
