package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/animetracker/internal/model"
)

// FieldErrorBody は検証エラーの1フィールド分。
type FieldErrorBody struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Error      string           `json:"error"`
	Code       string           `json:"code"`
	Fields     []FieldErrorBody `json:"fields,omitempty"`
	RetryAfter int              `json:"retry_after,omitempty"`
}

// WriteAppError はAppErrorを統一エラーフォーマットで書き込む。
// RetryAfterが設定されている場合はRetry-Afterヘッダーも付与する。
func WriteAppError(w http.ResponseWriter, appErr *model.AppError) {
	status := appErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	body := ErrorResponseBody{
		Error:      appErr.Message,
		Code:       appErr.Code,
		RetryAfter: appErr.RetryAfter,
	}
	for _, f := range appErr.Fields {
		body.Fields = append(body.Fields, FieldErrorBody{Field: f.Field, Message: f.Message})
	}

	if appErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(appErr.RetryAfter))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// WriteError は任意のエラーをレスポンスに変換する。
// AppError以外は内部エラーとしてログに記録し、詳細はクライアントに返さない。
func WriteError(w http.ResponseWriter, err error) {
	var appErr *model.AppError
	if errors.As(err, &appErr) {
		WriteAppError(w, appErr)
		return
	}
	slog.Error("unhandled error", slog.String("error", err.Error()))
	WriteInternalServerError(w)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteAppError(w, model.NewInternalError(nil))
}
