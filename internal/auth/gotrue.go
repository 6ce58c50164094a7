package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// defaultProviderTimeout はIDプロバイダーへのHTTPリクエストのタイムアウト。
const defaultProviderTimeout = 60 * time.Second

// maxListPages はメールアドレス検索時にたどる管理APIのページ数の上限。
const maxListPages = 50

const listPerPage = 200

// IdentityUser はIDプロバイダー上のアカウントを表す。
type IdentityUser struct {
	ID    string
	Email string
}

// CreateUserParams はIDプロバイダーへのアカウント作成パラメータ。
type CreateUserParams struct {
	Email    string
	Password string
	Username string
	Role     string
}

// IdentityProvider は外部IDプロバイダーのインターフェース。
type IdentityProvider interface {
	// CreateUser はメール確認済みのアカウントを作成する。
	CreateUser(ctx context.Context, params CreateUserParams) (*IdentityUser, error)
	// DeleteUser はアカウントを削除する。
	DeleteUser(ctx context.Context, id string) error
	// FindUserByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
	FindUserByEmail(ctx context.Context, email string) (*IdentityUser, error)
	// SignInWithPassword はメールアドレスとパスワードで認証する。
	SignInWithPassword(ctx context.Context, email, password string) (*IdentityUser, error)
}

// ProviderError はIDプロバイダーが返したエラーレスポンスを表す。
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error はerrorインターフェースを実装する。
func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity provider error (status %d, %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("identity provider error (status %d): %s", e.StatusCode, e.Message)
}

// GoTrueConfig はGoTrue（Supabase Auth）クライアントの設定。
type GoTrueConfig struct {
	BaseURL        string // 例: https://xyz.supabase.co
	AnonKey        string
	ServiceRoleKey string
	Timeout        time.Duration

	// テスト用にオーバーライド可能
	HTTPClient *http.Client
}

// GoTrueProvider はGoTrue REST APIを使ったIdentityProviderの実装。
type GoTrueProvider struct {
	authURL        string
	anonKey        string
	serviceRoleKey string
	client         *http.Client
	maxPages       int
}

// NewGoTrueProvider はGoTrueProviderを生成する。
func NewGoTrueProvider(config GoTrueConfig) *GoTrueProvider {
	client := config.HTTPClient
	if client == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = defaultProviderTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &GoTrueProvider{
		authURL:        strings.TrimRight(config.BaseURL, "/") + "/auth/v1",
		anonKey:        config.AnonKey,
		serviceRoleKey: config.ServiceRoleKey,
		client:         client,
		maxPages:       maxListPages,
	}
}

// CreateUser は管理APIでメール確認済みのアカウントを作成する。
func (p *GoTrueProvider) CreateUser(ctx context.Context, params CreateUserParams) (*IdentityUser, error) {
	role := params.Role
	if role == "" {
		role = "user"
	}
	body := map[string]interface{}{
		"email":         params.Email,
		"password":      params.Password,
		"email_confirm": true,
		"user_metadata": map[string]string{
			"username": params.Username,
			"role":     role,
		},
	}

	respBody, err := p.do(ctx, http.MethodPost, p.authURL+"/admin/users", body, p.serviceRoleKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider user: %w", err)
	}

	user := parseIdentityUser(gjson.ParseBytes(respBody))
	if user.ID == "" {
		return nil, errors.New("empty id in create user response")
	}
	return user, nil
}

// DeleteUser は管理APIでアカウントを削除する。
func (p *GoTrueProvider) DeleteUser(ctx context.Context, id string) error {
	if _, err := p.do(ctx, http.MethodDelete, p.authURL+"/admin/users/"+url.PathEscape(id), nil, p.serviceRoleKey); err != nil {
		return fmt.Errorf("failed to delete provider user: %w", err)
	}
	return nil
}

// FindUserByEmail は管理APIのユーザー一覧をページングしながらメールアドレスで検索する。
// メールアドレスの比較は大文字小文字を区別しない。
// ページ数の上限に達した場合は見つからなかったものとして扱い、警告を記録する。
func (p *GoTrueProvider) FindUserByEmail(ctx context.Context, email string) (*IdentityUser, error) {
	for page := 1; page <= p.maxPages; page++ {
		u := fmt.Sprintf("%s/admin/users?page=%d&per_page=%d", p.authURL, page, listPerPage)
		respBody, err := p.do(ctx, http.MethodGet, u, nil, p.serviceRoleKey)
		if err != nil {
			return nil, fmt.Errorf("failed to list provider users: %w", err)
		}

		users := gjson.GetBytes(respBody, "users").Array()
		for _, result := range users {
			if strings.EqualFold(result.Get("email").String(), email) {
				return parseIdentityUser(result), nil
			}
		}
		if len(users) < listPerPage {
			return nil, nil
		}
	}
	slog.Warn("provider user lookup stopped at page limit",
		slog.Int("max_pages", p.maxPages),
		slog.Int("per_page", listPerPage),
	)
	return nil, nil
}

// SignInWithPassword はパスワードグラントで認証し、認証されたアカウントを返す。
func (p *GoTrueProvider) SignInWithPassword(ctx context.Context, email, password string) (*IdentityUser, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}

	respBody, err := p.do(ctx, http.MethodPost, p.authURL+"/token?grant_type=password", body, p.anonKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign in: %w", err)
	}

	user := parseIdentityUser(gjson.GetBytes(respBody, "user"))
	if user.ID == "" {
		return nil, errors.New("empty user in token response")
	}
	return user, nil
}

// do はAPIキーを付与してリクエストを送信し、2xx以外はProviderErrorを返す。
func (p *GoTrueProvider) do(ctx context.Context, method, endpoint string, body interface{}, key string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", key)
	req.Header.Set("Authorization", "Bearer "+key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseProviderError(respBody, resp.StatusCode)
	}
	return respBody, nil
}

func parseIdentityUser(result gjson.Result) *IdentityUser {
	return &IdentityUser{
		ID:    result.Get("id").String(),
		Email: result.Get("email").String(),
	}
}

// parseProviderError はGoTrueのエラーレスポンスを解析する。
// GoTrueはエンドポイントによってmsg/message/error_descriptionのいずれかにメッセージを入れる。
func parseProviderError(body []byte, statusCode int) *ProviderError {
	if !gjson.ValidBytes(body) {
		return &ProviderError{
			StatusCode: statusCode,
			Code:       "unknown",
			Message:    strings.TrimSpace(string(body)),
		}
	}

	parsed := gjson.ParseBytes(body)
	msg := ""
	for _, key := range []string{"msg", "message", "error_description", "error"} {
		if v := parsed.Get(key); v.Type == gjson.String && v.String() != "" {
			msg = v.String()
			break
		}
	}
	code := parsed.Get("error_code").String()
	if code == "" {
		code = parsed.Get("code").String()
	}

	return &ProviderError{
		StatusCode: statusCode,
		Code:       code,
		Message:    msg,
	}
}

// compile-time interface check
var _ IdentityProvider = (*GoTrueProvider)(nil)
