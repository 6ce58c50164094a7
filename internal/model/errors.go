// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"net/http"
	"strings"
)

// FieldError は入力フィールド単位の検証エラーを表す。
type FieldError struct {
	Field   string
	Message string
}

// AppError は統一エラーフォーマットを表す。
// Statusはそのままレスポンスのステータスコードとして使われる。
// Errは原因エラーでクライアントには返さない（ログ出力用）。
type AppError struct {
	Code       string       // エラーコード
	Message    string       // クライアント向けメッセージ
	Status     int          // HTTPステータス
	RetryAfter int          // 再試行までの秒数（0なら未指定）
	Fields     []FieldError // 検証エラーの詳細
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is はエラーコードが一致すれば同一とみなす。
// errors.Is(err, model.ErrNotFound) のように定義済みの値と比較できる。
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeInvalidJSON        = "INVALID_JSON"
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeDuplicateLink      = "DUPLICATE_LINK"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeProviderError      = "PROVIDER_ERROR"
	ErrCodeStoreError         = "STORE_ERROR"
	ErrCodeTimeout            = "TIMEOUT"
	ErrCodeCSRFFailed         = "CSRF_FAILED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// RegistrationRetryAfterSeconds はIDプロバイダーのレート制限時に返す再試行秒数。
const RegistrationRetryAfterSeconds = 60

// errors.Is で比較するための定義済みエラー。
var (
	ErrValidationFailed   = &AppError{Code: ErrCodeValidationFailed, Status: http.StatusBadRequest}
	ErrInvalidJSON        = &AppError{Code: ErrCodeInvalidJSON, Status: http.StatusBadRequest}
	ErrUnauthenticated    = &AppError{Code: ErrCodeUnauthenticated, Status: http.StatusUnauthorized}
	ErrInvalidToken       = &AppError{Code: ErrCodeInvalidToken, Status: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: ErrCodeInvalidCredentials, Status: http.StatusUnauthorized}
	ErrRateLimited        = &AppError{Code: ErrCodeRateLimited, Status: http.StatusTooManyRequests}
	ErrDuplicateLink      = &AppError{Code: ErrCodeDuplicateLink, Status: http.StatusBadRequest}
	ErrNotFound           = &AppError{Code: ErrCodeNotFound, Status: http.StatusNotFound}
	ErrProvider           = &AppError{Code: ErrCodeProviderError, Status: http.StatusBadRequest}
	ErrStore              = &AppError{Code: ErrCodeStoreError, Status: http.StatusInternalServerError}
	ErrTimeout            = &AppError{Code: ErrCodeTimeout, Status: http.StatusGatewayTimeout}
	ErrCSRFFailed         = &AppError{Code: ErrCodeCSRFFailed, Status: http.StatusForbidden}
	ErrInternal           = &AppError{Code: ErrCodeInternal, Status: http.StatusInternalServerError}
)

// NewValidationError は入力検証エラーを生成する。
// messageが空の場合はフィールドエラーから組み立てる。
func NewValidationError(message string, fields ...FieldError) *AppError {
	if message == "" {
		parts := make([]string, 0, len(fields))
		for _, f := range fields {
			parts = append(parts, f.Field+": "+f.Message)
		}
		message = "Validation failed"
		if len(parts) > 0 {
			message += ": " + strings.Join(parts, "; ")
		}
	}
	return &AppError{
		Code:    ErrCodeValidationFailed,
		Message: message,
		Status:  http.StatusBadRequest,
		Fields:  fields,
	}
}

// NewInvalidJSONError はリクエストボディのJSONが不正な場合のエラーを生成する。
func NewInvalidJSONError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidJSON,
		Message: "Invalid JSON payload",
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

// NewUnauthenticatedError はセッショントークンが提示されていない場合のエラーを生成する。
func NewUnauthenticatedError() *AppError {
	return &AppError{
		Code:    ErrCodeUnauthenticated,
		Message: "Authentication required",
		Status:  http.StatusUnauthorized,
	}
}

// NewInvalidTokenError はセッショントークンが無効な場合のエラーを生成する。
func NewInvalidTokenError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidToken,
		Message: "Invalid or expired token",
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
func NewInvalidCredentialsError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidCredentials,
		Message: "Invalid credentials",
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

// NewRateLimitedError はIDプロバイダーのレート制限エラーを生成する。
func NewRateLimitedError(retryAfter int) *AppError {
	return &AppError{
		Code:       ErrCodeRateLimited,
		Message:    "Please wait 1 minute before trying to register again",
		Status:     http.StatusTooManyRequests,
		RetryAfter: retryAfter,
	}
}

// NewDuplicateLinkError は同じアニメを重複して追加しようとした場合のエラーを生成する。
func NewDuplicateLinkError() *AppError {
	return &AppError{
		Code:    ErrCodeDuplicateLink,
		Message: "Anime is already in your list",
		Status:  http.StatusBadRequest,
	}
}

// NewNotFoundError はリソース未検出エラーを生成する。
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
	}
}

// NewProviderError はIDプロバイダーが返したエラーをそのまま伝えるエラーを生成する。
func NewProviderError(message string, err error) *AppError {
	if message == "" {
		message = "Identity provider request failed"
	}
	return &AppError{
		Code:    ErrCodeProviderError,
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

// NewStoreError はデータストアの失敗を汎用メッセージで包む。
// 内部の詳細はErrに保持し、クライアントには返さない。
func NewStoreError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeStoreError,
		Message: "A database error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// NewTimeoutError はリクエストタイムアウトエラーを生成する。
func NewTimeoutError() *AppError {
	return &AppError{
		Code:    ErrCodeTimeout,
		Message: "Request timeout",
		Status:  http.StatusGatewayTimeout,
	}
}

// NewCSRFError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFError() *AppError {
	return &AppError{
		Code:    ErrCodeCSRFFailed,
		Message: "CSRF token validation failed",
		Status:  http.StatusForbidden,
	}
}

// NewInternalError は予期しない内部エラーを生成する。
func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: "Internal server error",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}
