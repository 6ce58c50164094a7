// Package anime はウォッチリスト（共有カタログとユーザーごとの紐付け）のドメインロジックを提供する。
package anime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hitoshi/animetracker/internal/metrics"
	"github.com/hitoshi/animetracker/internal/model"
	"github.com/hitoshi/animetracker/internal/repository"
	"github.com/hitoshi/animetracker/internal/security"
	"github.com/hitoshi/animetracker/internal/validation"
)

// OperationRecorder はウォッチリスト操作の結果を記録するインターフェース。
type OperationRecorder interface {
	RecordAnimeOperation(operation, outcome string)
}

// Service はウォッチリストのサービス層。
type Service struct {
	animeRepo   repository.AnimeRepository
	linkRepo    repository.UserAnimeRepository
	imagePolicy security.ImageURLPolicy
	recorder    OperationRecorder
}

// NewService はServiceの新しいインスタンスを生成する。recorderはnilでよい。
func NewService(
	animeRepo repository.AnimeRepository,
	linkRepo repository.UserAnimeRepository,
	imagePolicy security.ImageURLPolicy,
	recorder OperationRecorder,
) *Service {
	return &Service{
		animeRepo:   animeRepo,
		linkRepo:    linkRepo,
		imagePolicy: imagePolicy,
		recorder:    recorder,
	}
}

func (s *Service) record(operation string, err error) {
	if s.recorder != nil {
		s.recorder.RecordAnimeOperation(operation, metrics.Outcome(err))
	}
}

// AddAnime はカタログエントリを名前で検索（なければ作成）し、ユーザーとの紐付けを作成する。
// ステータス未指定の場合はcompletedとする。
// 紐付け作成前に失敗した場合、作成済みのカタログエントリは残るが次回以降に再利用される。
func (s *Service) AddAnime(ctx context.Context, in model.CreateAnimeInput, userID string) (result *model.Anime, err error) {
	defer func() { s.record("add", err) }()

	if in.Status == "" {
		in.Status = model.DefaultWatchStatus
	}
	in = normalizeCreateInput(in)
	if err := validation.ValidateCreateAnime(in); err != nil {
		return nil, err
	}
	if err := s.checkImageURL(in.ImageURL); err != nil {
		return nil, err
	}

	anime, err := s.findOrCreate(ctx, in)
	if err != nil {
		return nil, err
	}

	err = s.linkRepo.Create(ctx, &model.UserAnime{
		UserID:  userID,
		AnimeID: anime.ID,
		Status:  in.Status,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, model.NewDuplicateLinkError()
	}
	if err != nil {
		return nil, model.NewStoreError(fmt.Errorf("failed to link anime: %w", err))
	}

	slog.Info("anime added",
		slog.String("user_id", userID),
		slog.String("anime_id", anime.ID),
		slog.String("status", string(in.Status)),
	)
	return anime, nil
}

// findOrCreate は同名のカタログエントリを返し、なければ作成する。
// 同時作成で一意制約に負けた場合は相手が作成したエントリを再取得する。
func (s *Service) findOrCreate(ctx context.Context, in model.CreateAnimeInput) (*model.Anime, error) {
	existing, err := s.animeRepo.FindByName(ctx, in.Name)
	if err != nil {
		return nil, model.NewStoreError(err)
	}
	if existing != nil {
		return existing, nil
	}

	anime := &model.Anime{
		Name:        in.Name,
		ImageURL:    in.ImageURL,
		VoteAverage: in.VoteAverage,
		Genres:      in.Genres,
		MalID:       in.MalID,
	}
	err = s.animeRepo.Create(ctx, anime)
	if err == nil {
		return anime, nil
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		return nil, model.NewStoreError(err)
	}

	existing, err = s.animeRepo.FindByName(ctx, in.Name)
	if err != nil {
		return nil, model.NewStoreError(err)
	}
	if existing == nil {
		return nil, model.NewStoreError(fmt.Errorf("anime %q vanished after insert conflict", in.Name))
	}
	return existing, nil
}

// DeleteAnime はユーザーとカタログエントリの紐付けのみを削除する。
// 紐付けが存在しない場合も成功とする（冪等）。
func (s *Service) DeleteAnime(ctx context.Context, animeID, userID string) (err error) {
	defer func() { s.record("delete", err) }()

	if err := validateAnimeID(animeID); err != nil {
		return err
	}

	n, err := s.linkRepo.Delete(ctx, userID, animeID)
	if err != nil {
		return model.NewStoreError(err)
	}
	if n == 0 {
		slog.Debug("anime link already absent",
			slog.String("user_id", userID),
			slog.String("anime_id", animeID),
		)
	}
	return nil
}

// GetAnimeList はユーザーのウォッチリストを返す。空の場合は空スライスを返す。
func (s *Service) GetAnimeList(ctx context.Context, userID string) (items []model.AnimeItem, err error) {
	defer func() { s.record("list", err) }()

	items, err = s.linkRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, model.NewStoreError(err)
	}
	if items == nil {
		items = []model.AnimeItem{}
	}
	return items, nil
}

// UpdateAnimeStatus はユーザーの紐付けのステータスのみを更新する。
// 紐付けが存在しない場合は何もせず成功とする。
func (s *Service) UpdateAnimeStatus(ctx context.Context, animeID, userID string, status model.WatchStatus) (err error) {
	defer func() { s.record("update_status", err) }()

	if err := validateAnimeID(animeID); err != nil {
		return err
	}
	if err := validation.ValidateStatus(status); err != nil {
		return err
	}

	n, err := s.linkRepo.UpdateStatus(ctx, userID, animeID, status)
	if err != nil {
		return model.NewStoreError(err)
	}
	if n == 0 {
		slog.Debug("no anime link to update",
			slog.String("user_id", userID),
			slog.String("anime_id", animeID),
		)
	}
	return nil
}

// UpdateAnime はエントリを部分更新する。
// 呼び出し元がエントリと紐付いている必要がある。statusは呼び出し元の紐付けに、
// それ以外のフィールドは共有カタログエントリに適用される。
// カタログ更新（名前の重複で失敗しうる）を先に行い、成功した場合のみステータスを書き込む。
func (s *Service) UpdateAnime(ctx context.Context, animeID, userID string, in model.UpdateAnimeInput) (result *model.Anime, err error) {
	defer func() { s.record("update", err) }()

	if err := validateAnimeID(animeID); err != nil {
		return nil, err
	}
	in = normalizeUpdateInput(in)
	if err := validation.ValidateUpdateAnime(in); err != nil {
		return nil, err
	}
	if in.ImageURL != nil {
		if err := s.checkImageURL(*in.ImageURL); err != nil {
			return nil, err
		}
	}

	link, err := s.linkRepo.Find(ctx, userID, animeID)
	if err != nil {
		return nil, model.NewStoreError(err)
	}
	if link == nil {
		return nil, model.NewNotFoundError("Anime")
	}

	var anime *model.Anime
	if in.HasCatalogChanges() {
		anime, err = s.animeRepo.Update(ctx, animeID, in)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewValidationError("", model.FieldError{Field: "name", Message: "an anime with this name already exists"})
		}
	} else {
		anime, err = s.animeRepo.FindByID(ctx, animeID)
	}
	if err != nil {
		return nil, model.NewStoreError(err)
	}
	if anime == nil {
		return nil, model.NewNotFoundError("Anime")
	}

	if in.Status != nil {
		if _, err := s.linkRepo.UpdateStatus(ctx, userID, animeID, *in.Status); err != nil {
			return nil, model.NewStoreError(err)
		}
	}

	slog.Info("anime updated",
		slog.String("user_id", userID),
		slog.String("anime_id", animeID),
	)
	return anime, nil
}

// checkImageURL はhttp/https以外のスキームを持つ画像URLを拒否する。
func (s *Service) checkImageURL(raw string) error {
	if s.imagePolicy == nil || s.imagePolicy.Allowed(raw) {
		return nil
	}
	return model.NewValidationError("", model.FieldError{Field: "image_url", Message: "must be an http or https URL"})
}

// normalizeCreateInput はテキスト項目の前後の空白を除去したコピーを返す。
// 名前は一意キーのため、それ以外の加工はしない。
func normalizeCreateInput(in model.CreateAnimeInput) model.CreateAnimeInput {
	out := in
	out.Name = strings.TrimSpace(in.Name)
	out.ImageURL = strings.TrimSpace(in.ImageURL)
	out.Genres = trimGenres(in.Genres)
	return out
}

func normalizeUpdateInput(in model.UpdateAnimeInput) model.UpdateAnimeInput {
	out := in
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		out.Name = &name
	}
	if in.ImageURL != nil {
		u := strings.TrimSpace(*in.ImageURL)
		out.ImageURL = &u
	}
	if in.Genres != nil {
		genres := trimGenres(*in.Genres)
		out.Genres = &genres
	}
	return out
}

func trimGenres(genres []model.Genre) []model.Genre {
	if genres == nil {
		return nil
	}
	out := make([]model.Genre, len(genres))
	for i, g := range genres {
		out[i] = model.Genre{Name: strings.TrimSpace(g.Name)}
	}
	return out
}

// validateAnimeID はカタログエントリIDがUUID形式かを検証する。
func validateAnimeID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewValidationError("", model.FieldError{Field: "id", Message: "must be a valid UUID"})
	}
	return nil
}
