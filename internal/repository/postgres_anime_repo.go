package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hitoshi/animetracker/internal/model"
)

// PostgresAnimeRepo はPostgreSQLを使用したカタログリポジトリ。
type PostgresAnimeRepo struct {
	db *sql.DB
}

// NewPostgresAnimeRepo はPostgresAnimeRepoを生成する。
func NewPostgresAnimeRepo(db *sql.DB) *PostgresAnimeRepo {
	return &PostgresAnimeRepo{db: db}
}

const animeColumns = `id, name, image_url, vote_average, genres, mal_id, created_at, updated_at`

func scanAnime(row interface{ Scan(...any) error }) (*model.Anime, error) {
	anime := &model.Anime{}
	var (
		vote      sql.NullFloat64
		malID     sql.NullInt64
		genresRaw []byte
	)
	err := row.Scan(
		&anime.ID, &anime.Name, &anime.ImageURL,
		&vote, &genresRaw, &malID,
		&anime.CreatedAt, &anime.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if vote.Valid {
		v := vote.Float64
		anime.VoteAverage = &v
	}
	if malID.Valid {
		id := int(malID.Int64)
		anime.MalID = &id
	}
	genres, err := decodeGenres(genresRaw)
	if err != nil {
		return nil, err
	}
	anime.Genres = genres
	return anime, nil
}

// decodeGenres はjsonbカラムの値をジャンル一覧に変換する。NULLや空は空スライスになる。
func decodeGenres(raw []byte) ([]model.Genre, error) {
	genres := []model.Genre{}
	if len(raw) == 0 {
		return genres, nil
	}
	if err := json.Unmarshal(raw, &genres); err != nil {
		return nil, fmt.Errorf("failed to decode genres: %w", err)
	}
	return genres, nil
}

func encodeGenres(genres []model.Genre) ([]byte, error) {
	if genres == nil {
		genres = []model.Genre{}
	}
	b, err := json.Marshal(genres)
	if err != nil {
		return nil, fmt.Errorf("failed to encode genres: %w", err)
	}
	return b, nil
}

// FindByID は指定IDのエントリを取得する。見つからない場合はnilを返す。
func (r *PostgresAnimeRepo) FindByID(ctx context.Context, id string) (*model.Anime, error) {
	anime, err := scanAnime(r.db.QueryRowContext(ctx,
		`SELECT `+animeColumns+` FROM anime_list WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find anime by ID: %w", err)
	}
	return anime, nil
}

// FindByName は名前の完全一致でエントリを検索する。見つからない場合はnilを返す。
func (r *PostgresAnimeRepo) FindByName(ctx context.Context, name string) (*model.Anime, error) {
	anime, err := scanAnime(r.db.QueryRowContext(ctx,
		`SELECT `+animeColumns+` FROM anime_list WHERE name = $1`,
		name,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find anime by name: %w", err)
	}
	return anime, nil
}

// Create はエントリを作成する。
// 同時に同名のエントリが作成された場合はON CONFLICTで挿入されず、ErrDuplicateを返す。
func (r *PostgresAnimeRepo) Create(ctx context.Context, anime *model.Anime) error {
	genres, err := encodeGenres(anime.Genres)
	if err != nil {
		return err
	}

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO anime_list (name, image_url, vote_average, genres, mal_id)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (name) DO NOTHING
		 RETURNING id, created_at, updated_at`,
		anime.Name, anime.ImageURL, anime.VoteAverage, genres, anime.MalID,
	).Scan(&anime.ID, &anime.CreatedAt, &anime.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to insert anime: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert anime: %w", err)
	}
	if anime.Genres == nil {
		anime.Genres = []model.Genre{}
	}
	return nil
}

// Update はエントリを部分更新する。nilフィールドはCOALESCEで既存値を維持する。
// vote_averageはClearVoteAverage指定時のみNULLに戻す。
func (r *PostgresAnimeRepo) Update(ctx context.Context, id string, in model.UpdateAnimeInput) (*model.Anime, error) {
	var genres any
	if in.Genres != nil {
		b, err := encodeGenres(*in.Genres)
		if err != nil {
			return nil, err
		}
		genres = b
	}

	anime, err := scanAnime(r.db.QueryRowContext(ctx,
		`UPDATE anime_list SET
		    name = COALESCE($2, name),
		    image_url = COALESCE($3, image_url),
		    vote_average = CASE WHEN $7 THEN NULL ELSE COALESCE($4, vote_average) END,
		    genres = COALESCE($5::jsonb, genres),
		    mal_id = COALESCE($6, mal_id),
		    updated_at = now()
		 WHERE id = $1
		 RETURNING `+animeColumns,
		id, in.Name, in.ImageURL, in.VoteAverage, genres, in.MalID, in.ClearVoteAverage,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("failed to update anime: %w", ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update anime: %w", err)
	}
	return anime, nil
}

// compile-time interface check
var _ AnimeRepository = (*PostgresAnimeRepo)(nil)
