package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/animetracker/internal/model"
)

// TestWriteAppError_WritesEnvelope は統一エラーフォーマットでレスポンスが書き込まれることを検証する。
func TestWriteAppError_WritesEnvelope(t *testing.T) {
	w := httptest.NewRecorder()

	WriteAppError(w, model.NewNotFoundError("Anime"))

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var raw map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if raw["error"] != "Anime not found" {
		t.Errorf("error = %v, want %q", raw["error"], "Anime not found")
	}
	if raw["code"] != "NOT_FOUND" {
		t.Errorf("code = %v, want NOT_FOUND", raw["code"])
	}
	for _, absent := range []string{"fields", "retry_after"} {
		if _, ok := raw[absent]; ok {
			t.Errorf("unexpected field %q in envelope", absent)
		}
	}
}

func TestWriteAppError_IncludesFieldErrors(t *testing.T) {
	w := httptest.NewRecorder()

	WriteAppError(w, model.NewValidationError("",
		model.FieldError{Field: "name", Message: "is required"},
		model.FieldError{Field: "vote_average", Message: "must be between 0 and 10"},
	))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != "VALIDATION_FAILED" {
		t.Errorf("code = %q, want VALIDATION_FAILED", body.Code)
	}
	if len(body.Fields) != 2 || body.Fields[0].Field != "name" || body.Fields[1].Field != "vote_average" {
		t.Errorf("fields = %+v", body.Fields)
	}
}

func TestWriteAppError_RateLimitedSetsRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()

	WriteAppError(w, model.NewRateLimitedError(60))

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if got := w.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.RetryAfter != 60 {
		t.Errorf("retry_after = %d, want 60", body.RetryAfter)
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		status   int
	}{
		{"wrapped app error", fmt.Errorf("outer: %w", model.NewDuplicateLinkError()), "DUPLICATE_LINK", http.StatusBadRequest},
		{"plain error", errors.New("boom"), "INTERNAL_ERROR", http.StatusInternalServerError},
		{"timeout", model.NewTimeoutError(), "TIMEOUT", http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

// TestWriteInternalServerError は内部エラーの詳細がクライアントに漏れないことを検証する。
func TestWriteInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want %q", body.Code, "INTERNAL_ERROR")
	}
	if body.Error != "Internal server error" {
		t.Errorf("error = %q, want %q", body.Error, "Internal server error")
	}
}
