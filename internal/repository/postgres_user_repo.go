package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/animetracker/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, email, username, role, created_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	user := &model.User{}
	var role string
	if err := row.Scan(&user.ID, &user.Email, &user.Username, &role, &user.CreatedAt); err != nil {
		return nil, err
	}
	user.Role = model.Role(role)
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// Create はプロフィール行を作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, username, role, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Email, user.Username, string(user.Role), user.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("failed to insert user: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// DeleteByEmail は指定メールアドレスのプロフィールを削除する。
func (r *PostgresUserRepo) DeleteByEmail(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE email = $1`,
		email,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
