// Package security はアプリケーションのセキュリティ機能を提供する。
//
// カタログのテキスト項目（名前、ジャンル名）は一意キーとして完全一致で扱うため加工しない。
// JSONレスポンスではencoding/jsonが<>&をエスケープする。
// 画像URLは全ユーザーのクライアントでimg要素のsrcとして描画されるため、
// 保存前にスキームを検証する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ImageURLPolicy は画像URLの許可判定のインターフェースを定義する。
type ImageURLPolicy interface {
	// Allowed はURLがhttp/httpsまたは相対URLの場合にtrueを返す。
	Allowed(rawURL string) bool
}

// imageURLPolicy はImageURLPolicyの実装。
// bluemondayのPolicyはスレッドセーフなので1つを共有する。
type imageURLPolicy struct {
	policy *bluemonday.Policy
}

// NewImageURLPolicy はImageURLPolicyの新しいインスタンスを生成する。
func NewImageURLPolicy() *imageURLPolicy {
	p := bluemonday.NewPolicy()
	p.AllowAttrs("src").OnElements("img")
	p.AllowURLSchemes("http", "https")
	p.AllowRelativeURLs(true)
	p.RequireParseableURLs(true)
	return &imageURLPolicy{policy: p}
}

// Allowed はimg要素のsrcとしてサニタイズした結果、srcが残るかで判定する。
func (p *imageURLPolicy) Allowed(rawURL string) bool {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return false
	}
	out := p.policy.Sanitize(`<img src="` + html.EscapeString(rawURL) + `">`)
	return strings.Contains(out, "src=")
}
