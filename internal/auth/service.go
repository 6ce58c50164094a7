// Package auth はユーザー登録・ログインとセッショントークンの管理を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/animetracker/internal/model"
	"github.com/hitoshi/animetracker/internal/repository"
	"github.com/hitoshi/animetracker/internal/validation"
)

// rollbackTimeout は登録失敗時にIDプロバイダーのアカウントを削除する処理のタイムアウト。
// リクエストのコンテキストがキャンセル済みでも削除を試みるため独立した期限を持つ。
const rollbackTimeout = 10 * time.Second

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	// ReplaceExisting がtrueの場合、登録前に同じメールアドレスの既存アカウントとプロフィールを削除する。
	ReplaceExisting bool
	// RevocationEnabled がtrueの場合、ログアウトしたトークンを失効リストに登録し検証時に拒否する。
	RevocationEnabled bool
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      model.User
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	provider    IdentityProvider
	userRepo    repository.UserRepository
	revocations repository.RevocationRepository
	tokens      *TokenManager
	config      ServiceConfig
}

// NewService はServiceを生成する。
// revocationsはconfig.RevocationEnabledがfalseの場合nilでよい。
func NewService(
	provider IdentityProvider,
	userRepo repository.UserRepository,
	revocations repository.RevocationRepository,
	tokens *TokenManager,
	config ServiceConfig,
) *Service {
	return &Service{
		provider:    provider,
		userRepo:    userRepo,
		revocations: revocations,
		tokens:      tokens,
		config:      config,
	}
}

// SessionTTL はセッショントークンの有効期間を返す。
func (s *Service) SessionTTL() time.Duration {
	return s.tokens.TTL()
}

// Register はIDプロバイダーにアカウントを作成し、プロフィール行をミラーする。
// プロフィールの作成に失敗した場合はIDプロバイダーのアカウントを削除して元のエラーを返す。
// トークンは発行しない。
func (s *Service) Register(ctx context.Context, in model.RegisterInput) (*model.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if err := validation.ValidateRegister(in); err != nil {
		return nil, err
	}

	if s.config.ReplaceExisting {
		if err := s.removeExisting(ctx, in.Email); err != nil {
			return nil, err
		}
	}

	created, err := s.provider.CreateUser(ctx, CreateUserParams{
		Email:    in.Email,
		Password: in.Password,
		Username: in.Username,
		Role:     string(model.RoleUser),
	})
	if err != nil {
		return nil, translateProviderError(err)
	}

	email := created.Email
	if email == "" {
		email = in.Email
	}
	user := &model.User{
		ID:       created.ID,
		Email:    email,
		Username: in.Username,
		Role:     model.RoleUser,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		s.rollbackProviderUser(ctx, created.ID)
		return nil, model.NewStoreError(fmt.Errorf("failed to create profile: %w", err))
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
	return user, nil
}

// removeExisting は同じメールアドレスのIDプロバイダーアカウントとプロフィールを削除する。
func (s *Service) removeExisting(ctx context.Context, email string) error {
	existing, err := s.provider.FindUserByEmail(ctx, email)
	if err != nil {
		return translateProviderError(err)
	}
	if existing != nil {
		if err := s.provider.DeleteUser(ctx, existing.ID); err != nil {
			return translateProviderError(err)
		}
		slog.Info("replaced existing provider user", slog.String("user_id", existing.ID))
	}

	if err := s.userRepo.DeleteByEmail(ctx, email); err != nil {
		return model.NewStoreError(fmt.Errorf("failed to delete existing profile: %w", err))
	}
	return nil
}

// rollbackProviderUser は登録途中で作成したIDプロバイダーのアカウントを削除する。
// 削除に失敗した場合はログに記録するのみで、呼び出し元には元のエラーを返させる。
func (s *Service) rollbackProviderUser(ctx context.Context, id string) {
	rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	if err := s.provider.DeleteUser(rbCtx, id); err != nil {
		slog.Error("failed to roll back provider user",
			slog.String("user_id", id),
			slog.String("error", err.Error()),
		)
		return
	}
	slog.Warn("rolled back provider user after profile insert failure", slog.String("user_id", id))
}

// Login はメールアドレスとパスワードで認証し、セッショントークンを発行する。
// 認証失敗の理由（パスワード誤り、未登録、プロバイダー障害）はクライアントに区別させない。
func (s *Service) Login(ctx context.Context, in model.LoginInput) (*LoginResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validation.ValidateLogin(in); err != nil {
		return nil, err
	}

	identity, err := s.provider.SignInWithPassword(ctx, in.Email, in.Password)
	if err != nil {
		if isProviderOutage(err) {
			slog.Error("identity provider sign-in failed", slog.String("error", err.Error()))
		}
		return nil, model.NewInvalidCredentialsError(err)
	}

	email := identity.Email
	if email == "" {
		email = in.Email
	}
	token, claims, err := s.tokens.Issue(identity.ID, email)
	if err != nil {
		return nil, model.NewInternalError(err)
	}

	return &LoginResult{
		Token:     token,
		ExpiresAt: claims.Expiry(),
		User:      model.User{ID: identity.ID, Email: email},
	}, nil
}

// VerifySession はセッショントークンを検証してクレームを返す。
func (s *Service) VerifySession(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, model.NewUnauthenticatedError()
	}

	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, model.NewInvalidTokenError(err)
	}

	if s.revocationActive() {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, model.NewStoreError(err)
		}
		if revoked {
			return nil, model.NewInvalidTokenError(errors.New("token has been revoked"))
		}
	}
	return claims, nil
}

// RefreshSession は有効なトークンから同じクレームの新しいトークンを発行する。
// 失効リストが有効な場合、元のトークンは失効させる。
func (s *Service) RefreshSession(ctx context.Context, token string) (string, *Claims, error) {
	claims, err := s.VerifySession(ctx, token)
	if err != nil {
		return "", nil, err
	}

	newToken, newClaims, err := s.tokens.Reissue(claims)
	if err != nil {
		return "", nil, model.NewInternalError(err)
	}

	if s.revocationActive() {
		if err := s.revoke(ctx, claims); err != nil {
			return "", nil, err
		}
	}
	return newToken, newClaims, nil
}

// Logout はトークンを失効させる。失効リストが無効な場合は何もしない。
// トークンが空または既に無効な場合もエラーにしない。
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" || !s.revocationActive() {
		return nil
	}

	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil
	}
	if err := s.revoke(ctx, claims); err != nil {
		return err
	}

	slog.Info("user logged out", slog.String("user_id", claims.UserID))
	return nil
}

func (s *Service) revoke(ctx context.Context, claims *Claims) error {
	err := s.revocations.Revoke(ctx, &model.RevokedToken{
		JTI:       claims.ID,
		UserID:    claims.UserID,
		ExpiresAt: claims.Expiry(),
	})
	if err != nil {
		return model.NewStoreError(err)
	}
	return nil
}

func (s *Service) revocationActive() bool {
	return s.config.RevocationEnabled && s.revocations != nil
}

// translateProviderError はIDプロバイダーのエラーをエラー分類に変換する。
// 429は再試行秒数付きのRateLimited、それ以外はプロバイダーのメッセージをそのまま返す。
// タイムアウトは504にするためそのまま伝播させる。
func translateProviderError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("identity provider request timed out: %w", err)
	}

	var pErr *ProviderError
	if errors.As(err, &pErr) {
		if pErr.StatusCode == http.StatusTooManyRequests {
			return model.NewRateLimitedError(model.RegistrationRetryAfterSeconds)
		}
		return model.NewProviderError(pErr.Message, err)
	}

	slog.Error("identity provider request failed", slog.String("error", err.Error()))
	return model.NewProviderError("", err)
}

// isProviderOutage はエラーが認証失敗ではなくプロバイダー側の障害によるものかを返す。
func isProviderOutage(err error) bool {
	var pErr *ProviderError
	if errors.As(err, &pErr) {
		return pErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}
