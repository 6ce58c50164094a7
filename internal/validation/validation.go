// Package validation は入力値の検証を提供する。
// 入力型ごとに検証関数を1つ持ち、違反はフィールド単位のエラーとしてまとめて返す。
package validation

import (
	"strings"

	"github.com/hitoshi/animetracker/internal/model"
)

const (
	// MinVoteAverage は評価値の下限。
	MinVoteAverage = 0.0
	// MaxVoteAverage は評価値の上限。
	MaxVoteAverage = 10.0
)

// InvalidStatusMessage はステータスが列挙値に含まれない場合のメッセージ。
const InvalidStatusMessage = "Invalid status. Must be one of: watching, completed, plan_to_watch, dropped"

// NonEmpty は前後の空白を除いて空でないかを返す。
func NonEmpty(s string) bool {
	return strings.TrimSpace(s) != ""
}

// VoteAverageInRange は評価値が0〜10の範囲内かを返す。nilは常に有効。
func VoteAverageInRange(v *float64) bool {
	if v == nil {
		return true
	}
	return *v >= MinVoteAverage && *v <= MaxVoteAverage
}

// ValidStatus はステータスが4種類の列挙値のいずれかかを返す。
func ValidStatus(s model.WatchStatus) bool {
	return s.Valid()
}

// collector はフィールドエラーを蓄積する。
type collector struct {
	fields []model.FieldError
}

func (c *collector) add(field, message string) {
	c.fields = append(c.fields, model.FieldError{Field: field, Message: message})
}

func (c *collector) require(field, value string) {
	if !NonEmpty(value) {
		c.add(field, "is required")
	}
}

// err は蓄積したエラーをValidationFailedにまとめる。エラーがなければnil。
// ステータス違反のみの場合は専用メッセージを使う。
func (c *collector) err() error {
	if len(c.fields) == 0 {
		return nil
	}
	if len(c.fields) == 1 && c.fields[0].Field == "status" {
		return model.NewValidationError(InvalidStatusMessage, c.fields...)
	}
	return model.NewValidationError("", c.fields...)
}

// ValidateRegister はユーザー登録の入力を検証する。
func ValidateRegister(in model.RegisterInput) error {
	var c collector
	c.require("email", in.Email)
	c.require("password", in.Password)
	c.require("username", in.Username)
	return c.err()
}

// ValidateLogin はログインの入力を検証する。
func ValidateLogin(in model.LoginInput) error {
	var c collector
	c.require("email", in.Email)
	c.require("password", in.Password)
	return c.err()
}

// ValidateCreateAnime はアニメ追加の入力を検証する。
func ValidateCreateAnime(in model.CreateAnimeInput) error {
	var c collector
	c.require("name", in.Name)
	c.require("image_url", in.ImageURL)
	if !VoteAverageInRange(in.VoteAverage) {
		c.add("vote_average", "must be between 0 and 10")
	}
	if !ValidStatus(in.Status) {
		c.add("status", InvalidStatusMessage)
	}
	for _, g := range in.Genres {
		if !NonEmpty(g.Name) {
			c.add("genres", "genre name must not be empty")
			break
		}
	}
	if in.MalID != nil && *in.MalID < 0 {
		c.add("mal_id", "must not be negative")
	}
	return c.err()
}

// ValidateUpdateAnime はアニメ更新の入力を検証する。
// 少なくとも1つのフィールドが指定されている必要がある。
func ValidateUpdateAnime(in model.UpdateAnimeInput) error {
	if in.IsEmpty() {
		return model.NewValidationError("At least one field must be provided")
	}

	var c collector
	if in.Name != nil {
		c.require("name", *in.Name)
	}
	if in.ImageURL != nil {
		c.require("image_url", *in.ImageURL)
	}
	if !VoteAverageInRange(in.VoteAverage) {
		c.add("vote_average", "must be between 0 and 10")
	}
	if in.Status != nil && !ValidStatus(*in.Status) {
		c.add("status", InvalidStatusMessage)
	}
	if in.Genres != nil {
		for _, g := range *in.Genres {
			if !NonEmpty(g.Name) {
				c.add("genres", "genre name must not be empty")
				break
			}
		}
	}
	if in.MalID != nil && *in.MalID < 0 {
		c.add("mal_id", "must not be negative")
	}
	return c.err()
}

// ValidateStatus は単独のステータス更新値を検証する。
func ValidateStatus(s model.WatchStatus) error {
	if !ValidStatus(s) {
		return model.NewValidationError(InvalidStatusMessage, model.FieldError{Field: "status", Message: InvalidStatusMessage})
	}
	return nil
}
