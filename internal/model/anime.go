package model

import (
	"strings"
	"time"
)

// WatchStatus はユーザーごとの視聴ステータスを表す。
type WatchStatus string

const (
	StatusWatching    WatchStatus = "watching"
	StatusCompleted   WatchStatus = "completed"
	StatusPlanToWatch WatchStatus = "plan_to_watch"
	StatusDropped     WatchStatus = "dropped"
)

// DefaultWatchStatus はステータス未指定時に使われる値。
const DefaultWatchStatus = StatusCompleted

// WatchStatuses は有効な視聴ステータスを定義順に返す。
func WatchStatuses() []WatchStatus {
	return []WatchStatus{StatusWatching, StatusCompleted, StatusPlanToWatch, StatusDropped}
}

// Valid はステータスが定義済みの値かどうかを返す。
func (s WatchStatus) Valid() bool {
	switch s {
	case StatusWatching, StatusCompleted, StatusPlanToWatch, StatusDropped:
		return true
	}
	return false
}

// Genre はアニメのジャンルを表す。
type Genre struct {
	Name string `json:"name"`
}

// JoinGenreNames はジャンル名を ", " 区切りの1つの文字列にまとめる。
// 空リストの場合は空文字列を返す。
func JoinGenreNames(genres []Genre) string {
	names := make([]string, 0, len(genres))
	for _, g := range genres {
		names = append(names, g.Name)
	}
	return strings.Join(names, ", ")
}

// Anime はユーザー間で共有されるカタログエントリを表す。
// nameで一意に識別される。
type Anime struct {
	ID          string
	Name        string
	ImageURL    string
	VoteAverage *float64 // 0〜10、未評価はnil
	Genres      []Genre
	MalID       *int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserAnime はユーザーとカタログエントリの紐付け（視聴ステータス付き）を表す。
type UserAnime struct {
	UserID    string
	AnimeID   string
	Status    WatchStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AnimeItem はウォッチリスト一覧の1件を表す。
// カタログエントリと紐付けを結合し、ジャンルは文字列に平坦化される。
type AnimeItem struct {
	ID          string
	Name        string
	ImageURL    string
	VoteAverage *float64
	Genres      string
	MalID       *int
	Status      WatchStatus
}

// CreateAnimeInput はアニメ追加の入力を表す。
type CreateAnimeInput struct {
	Name        string
	ImageURL    string
	VoteAverage *float64
	Status      WatchStatus
	Genres      []Genre
	MalID       *int
}

// UpdateAnimeInput はアニメ更新の入力を表す。
// nilフィールドは変更しない部分更新を行う。
// Statusは紐付けに、それ以外はカタログエントリに適用される。
// ClearVoteAverageがtrueの場合、vote_averageを未評価(NULL)に戻す。
type UpdateAnimeInput struct {
	Name             *string
	ImageURL         *string
	VoteAverage      *float64
	ClearVoteAverage bool
	Genres           *[]Genre
	MalID            *int
	Status           *WatchStatus
}

// IsEmpty は更新対象のフィールドが1つも指定されていないかを返す。
func (in UpdateAnimeInput) IsEmpty() bool {
	return !in.HasCatalogChanges() && in.Status == nil
}

// HasCatalogChanges はカタログエントリに対する変更を含むかを返す。
func (in UpdateAnimeInput) HasCatalogChanges() bool {
	return in.Name != nil || in.ImageURL != nil || in.VoteAverage != nil ||
		in.ClearVoteAverage || in.Genres != nil || in.MalID != nil
}
