package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/animetracker/internal/model"
)

// PostgresRevocationRepo はPostgreSQLを使用したトークン失効リストのリポジトリ。
type PostgresRevocationRepo struct {
	db *sql.DB
}

// NewPostgresRevocationRepo はPostgresRevocationRepoを生成する。
func NewPostgresRevocationRepo(db *sql.DB) *PostgresRevocationRepo {
	return &PostgresRevocationRepo{db: db}
}

// Revoke はトークンIDを失効リストに登録する。
func (r *PostgresRevocationRepo) Revoke(ctx context.Context, token *model.RevokedToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO revoked_tokens (jti, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (jti) DO NOTHING`,
		token.JTI, token.UserID, token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked はトークンIDが失効リストに含まれるかを返す。
func (r *PostgresRevocationRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1)`,
		jti,
	).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("failed to check revoked token: %w", err)
	}
	return revoked, nil
}

// DeleteExpired は期限切れの失効レコードを削除する。
// 期限切れのトークンは署名検証の段階で拒否されるため、失効リストに残す必要はない。
func (r *PostgresRevocationRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired revoked tokens: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ RevocationRepository = (*PostgresRevocationRepo)(nil)
