package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/animetracker/internal/model"
	"github.com/hitoshi/animetracker/internal/validation"
)

// AnimeServiceInterface はウォッチリストハンドラーが必要とするサービスインターフェース。
type AnimeServiceInterface interface {
	AddAnime(ctx context.Context, in model.CreateAnimeInput, userID string) (*model.Anime, error)
	DeleteAnime(ctx context.Context, animeID, userID string) error
	GetAnimeList(ctx context.Context, userID string) ([]model.AnimeItem, error)
	UpdateAnimeStatus(ctx context.Context, animeID, userID string, status model.WatchStatus) error
	UpdateAnime(ctx context.Context, animeID, userID string, in model.UpdateAnimeInput) (*model.Anime, error)
}

// AnimeHandler はウォッチリスト管理のHTTPハンドラー。
type AnimeHandler struct {
	service AnimeServiceInterface
}

// NewAnimeHandler はAnimeHandlerを生成する。
func NewAnimeHandler(service AnimeServiceInterface) *AnimeHandler {
	return &AnimeHandler{service: service}
}

// addAnimeRequest はエントリ追加リクエストのボディ。
// statusは必須のため、未指定を区別できるようポインタで受ける。
type addAnimeRequest struct {
	Name        string        `json:"name"`
	ImageURL    string        `json:"image_url"`
	VoteAverage *float64      `json:"vote_average"`
	Status      *string       `json:"status"`
	Genres      []model.Genre `json:"genres"`
	MalID       *int          `json:"mal_id"`
}

// updateAnimeRequest は部分更新リクエストのボディ。省略したフィールドは変更しない。
// vote_averageのみnullで未評価に戻せる。
type updateAnimeRequest struct {
	Name        *string        `json:"name"`
	ImageURL    *string        `json:"image_url"`
	VoteAverage optionalFloat  `json:"vote_average"`
	Genres      *[]model.Genre `json:"genres"`
	MalID       *int           `json:"mal_id"`
	Status      *string        `json:"status"`
}

// optionalFloat はフィールドの省略と明示的なnullを区別する。
type optionalFloat struct {
	Set   bool
	Value *float64
}

func (o *optionalFloat) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

type updateStatusRequest struct {
	Status *string `json:"status"`
}

// animeResponse はカタログエントリのAPIレスポンス。
type animeResponse struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	ImageURL    string        `json:"image_url"`
	VoteAverage *float64      `json:"vote_average"`
	Genres      []model.Genre `json:"genres"`
	MalID       *int          `json:"mal_id"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// animeItemResponse はウォッチリスト一覧の1件。ジャンルは ", " 区切りの文字列。
type animeItemResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	ImageURL    string   `json:"image_url"`
	VoteAverage *float64 `json:"vote_average"`
	Genres      string   `json:"genres"`
	MalID       *int     `json:"mal_id"`
	Status      string   `json:"status"`
}

// AddAnime はウォッチリストにエントリを追加する。
// POST /anime/add
func (h *AnimeHandler) AddAnime(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req addAnimeRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if req.Status == nil {
		handleServiceError(w, r, model.NewValidationError(validation.InvalidStatusMessage,
			model.FieldError{Field: "status", Message: "is required"}))
		return
	}
	genres := req.Genres
	if genres == nil {
		genres = []model.Genre{}
	}

	anime, err := h.service.AddAnime(r.Context(), model.CreateAnimeInput{
		Name:        req.Name,
		ImageURL:    req.ImageURL,
		VoteAverage: req.VoteAverage,
		Status:      model.WatchStatus(*req.Status),
		Genres:      genres,
		MalID:       req.MalID,
	}, userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAnimeResponse(anime))
}

// DeleteAnime はウォッチリストからエントリを外す。カタログエントリは残る。
// DELETE /anime/delete/{id}
func (h *AnimeHandler) DeleteAnime(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteAnime(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Anime deleted successfully"})
}

// ListAnime はウォッチリストを返す。空の場合は [] を返す。
// GET /anime/list
func (h *AnimeHandler) ListAnime(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	items, err := h.service.GetAnimeList(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]animeItemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, animeItemResponse{
			ID:          it.ID,
			Name:        it.Name,
			ImageURL:    it.ImageURL,
			VoteAverage: it.VoteAverage,
			Genres:      it.Genres,
			MalID:       it.MalID,
			Status:      string(it.Status),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateAnimeStatus は呼び出し元の視聴ステータスを更新する。
// PATCH /anime/status/{id}
func (h *AnimeHandler) UpdateAnimeStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	var status model.WatchStatus
	if req.Status != nil {
		status = model.WatchStatus(*req.Status)
	}

	if err := h.service.UpdateAnimeStatus(r.Context(), chi.URLParam(r, "id"), userID, status); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Status updated successfully"})
}

// UpdateAnime はエントリを部分更新する。
// PATCH /anime/update/{id}
func (h *AnimeHandler) UpdateAnime(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateAnimeRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	in := model.UpdateAnimeInput{
		Name:             req.Name,
		ImageURL:         req.ImageURL,
		VoteAverage:      req.VoteAverage.Value,
		ClearVoteAverage: req.VoteAverage.Set && req.VoteAverage.Value == nil,
		Genres:           req.Genres,
		MalID:            req.MalID,
	}
	if req.Status != nil {
		status := model.WatchStatus(*req.Status)
		in.Status = &status
	}

	anime, err := h.service.UpdateAnime(r.Context(), chi.URLParam(r, "id"), userID, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnimeResponse(anime))
}

// toAnimeResponse はmodel.AnimeからAPIレスポンスに変換する。
func toAnimeResponse(anime *model.Anime) animeResponse {
	genres := anime.Genres
	if genres == nil {
		genres = []model.Genre{}
	}
	return animeResponse{
		ID:          anime.ID,
		Name:        anime.Name,
		ImageURL:    anime.ImageURL,
		VoteAverage: anime.VoteAverage,
		Genres:      genres,
		MalID:       anime.MalID,
		CreatedAt:   anime.CreatedAt,
		UpdatedAt:   anime.UpdatedAt,
	}
}
