// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/animetracker/internal/model"
)

// ErrDuplicate は一意制約違反（既に同じキーの行が存在する）を表す。
var ErrDuplicate = errors.New("duplicate key")

// UserRepository はユーザープロフィールの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はプロフィール行を作成する。emailが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// DeleteByEmail は指定メールアドレスのプロフィールを削除する。該当なしでもエラーにしない。
	// 関連するuser_animeはCASCADE削除される。
	DeleteByEmail(ctx context.Context, email string) error
}

// AnimeRepository は共有カタログ（anime_list）の永続化インターフェース。
type AnimeRepository interface {
	// FindByID は指定IDのエントリを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Anime, error)

	// FindByName は名前の完全一致でエントリを検索する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.Anime, error)

	// Create はエントリを作成し、採番されたIDとタイムスタンプをanimeに設定する。
	// 同名のエントリが既に存在する場合はErrDuplicateを返す。
	Create(ctx context.Context, anime *model.Anime) error

	// Update はエントリを部分更新する。nilフィールドは変更しない。
	// エントリが存在しない場合はnilを返し、名前が重複する場合はErrDuplicateを返す。
	Update(ctx context.Context, id string, in model.UpdateAnimeInput) (*model.Anime, error)
}

// UserAnimeRepository はユーザーとカタログエントリの紐付けの永続化インターフェース。
type UserAnimeRepository interface {
	// Create は紐付けを作成する。既に紐付けがある場合はErrDuplicateを返す。
	Create(ctx context.Context, link *model.UserAnime) error

	// Find は紐付けを取得する。見つからない場合はnilを返す。
	Find(ctx context.Context, userID, animeID string) (*model.UserAnime, error)

	// UpdateStatus は紐付けのステータスを更新し、更新した行数を返す。
	UpdateStatus(ctx context.Context, userID, animeID string, status model.WatchStatus) (int64, error)

	// Delete は紐付けを削除し、削除した行数を返す。カタログエントリは削除しない。
	Delete(ctx context.Context, userID, animeID string) (int64, error)

	// ListByUserID はユーザーのウォッチリストをカタログとINNER JOINして取得する。
	// 紐付けの作成順で返す。
	ListByUserID(ctx context.Context, userID string) ([]model.AnimeItem, error)
}

// RevocationRepository は失効済みセッショントークンの永続化インターフェース。
type RevocationRepository interface {
	// Revoke はトークンIDを失効リストに登録する。登録済みの場合は何もしない。
	Revoke(ctx context.Context, token *model.RevokedToken) error

	// IsRevoked はトークンIDが失効リストに含まれるかを返す。
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// DeleteExpired はbefore以前に期限切れとなった行を削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
