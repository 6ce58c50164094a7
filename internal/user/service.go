// Package user はユーザープロフィールのドメインロジックを提供する。
package user

import (
	"context"
	"log/slog"

	"github.com/hitoshi/animetracker/internal/model"
)

// ProfileFinder はプロフィール取得に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type ProfileFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// Profile は認証済みユーザー自身のプロフィール。
type Profile struct {
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Role     model.Role `json:"role"`
}

// Service はユーザープロフィールのサービス層。
type Service struct {
	userRepo ProfileFinder
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo ProfileFinder) *Service {
	return &Service{userRepo: userRepo}
}

// GetProfile はユーザーIDに対応するプロフィールを返す。
// トークンは有効だがプロフィール行が存在しない場合はNotFoundを返す。
func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, model.NewStoreError(err)
	}
	if user == nil {
		slog.Warn("profile missing for authenticated user",
			slog.String("user_id", userID),
		)
		return nil, model.NewNotFoundError("User")
	}

	role := user.Role
	if role == "" {
		role = model.RoleUser
	}
	return &Profile{
		Username: user.Username,
		Email:    user.Email,
		Role:     role,
	}, nil
}
