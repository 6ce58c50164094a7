package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/animetracker/internal/model"
)

// PostgresUserAnimeRepo はPostgreSQLを使用した紐付けリポジトリ。
type PostgresUserAnimeRepo struct {
	db *sql.DB
}

// NewPostgresUserAnimeRepo はPostgresUserAnimeRepoを生成する。
func NewPostgresUserAnimeRepo(db *sql.DB) *PostgresUserAnimeRepo {
	return &PostgresUserAnimeRepo{db: db}
}

// Create は紐付けを作成する。主キー(user_id, anime_id)の重複はErrDuplicateになる。
func (r *PostgresUserAnimeRepo) Create(ctx context.Context, link *model.UserAnime) error {
	now := time.Now().UTC()
	if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	link.UpdatedAt = link.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_anime (user_id, anime_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		link.UserID, link.AnimeID, string(link.Status), link.CreatedAt, link.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("failed to insert user anime: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert user anime: %w", err)
	}
	return nil
}

// Find は紐付けを取得する。見つからない場合はnilを返す。
func (r *PostgresUserAnimeRepo) Find(ctx context.Context, userID, animeID string) (*model.UserAnime, error) {
	link := &model.UserAnime{}
	var status string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, anime_id, status, created_at, updated_at
		 FROM user_anime WHERE user_id = $1 AND anime_id = $2`,
		userID, animeID,
	).Scan(&link.UserID, &link.AnimeID, &status, &link.CreatedAt, &link.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user anime: %w", err)
	}
	link.Status = model.WatchStatus(status)
	return link, nil
}

// UpdateStatus は紐付けのステータスを更新し、更新した行数を返す。
func (r *PostgresUserAnimeRepo) UpdateStatus(ctx context.Context, userID, animeID string, status model.WatchStatus) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE user_anime SET status = $3, updated_at = now()
		 WHERE user_id = $1 AND anime_id = $2`,
		userID, animeID, string(status),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update user anime status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// Delete は紐付けを削除し、削除した行数を返す。
func (r *PostgresUserAnimeRepo) Delete(ctx context.Context, userID, animeID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM user_anime WHERE user_id = $1 AND anime_id = $2`,
		userID, animeID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user anime: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// ListByUserID はユーザーのウォッチリストを取得する。
// 紐付けのないエントリは含まれない（INNER JOIN）。
func (r *PostgresUserAnimeRepo) ListByUserID(ctx context.Context, userID string) ([]model.AnimeItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.name, a.image_url, a.vote_average, a.genres, a.mal_id, ua.status
		 FROM user_anime ua
		 INNER JOIN anime_list a ON a.id = ua.anime_id
		 WHERE ua.user_id = $1
		 ORDER BY ua.created_at ASC, a.name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list user anime: %w", err)
	}
	defer rows.Close()

	items := []model.AnimeItem{}
	for rows.Next() {
		var (
			item      model.AnimeItem
			vote      sql.NullFloat64
			malID     sql.NullInt64
			genresRaw []byte
			status    string
		)
		if err := rows.Scan(&item.ID, &item.Name, &item.ImageURL, &vote, &genresRaw, &malID, &status); err != nil {
			return nil, fmt.Errorf("failed to scan user anime: %w", err)
		}
		if vote.Valid {
			v := vote.Float64
			item.VoteAverage = &v
		}
		if malID.Valid {
			id := int(malID.Int64)
			item.MalID = &id
		}
		genres, err := decodeGenres(genresRaw)
		if err != nil {
			return nil, err
		}
		item.Genres = model.JoinGenreNames(genres)
		item.Status = model.WatchStatus(status)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user anime: %w", err)
	}
	return items, nil
}

// compile-time interface check
var _ UserAnimeRepository = (*PostgresUserAnimeRepo)(nil)
