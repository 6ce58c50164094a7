package security

import "testing"

func TestImageURLPolicy_Allowed(t *testing.T) {
	policy := NewImageURLPolicy()

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"https", "https://cdn.myanimelist.net/images/anime/13/17405.jpg", true},
		{"http", "http://img.example/a.png", true},
		{"クエリ付き", "https://img.example/a.png?w=200&h=300", true},
		{"相対URL", "u", true},
		{"ルート相対", "/static/poster.jpg", true},
		{"前後の空白", "  https://img.example/a.png  ", true},
		{"javascriptスキーム", "javascript:alert(1)", false},
		{"大文字混在のjavascript", "JaVaScRiPt:alert(1)", false},
		{"dataスキーム", "data:image/svg+xml;base64,PHN2Zz4=", false},
		{"vbscriptスキーム", "vbscript:msgbox(1)", false},
		{"空文字列", "", false},
		{"空白のみ", "   ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.Allowed(tt.url); got != tt.want {
				t.Errorf("Allowed(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestImageURLPolicy_QuoteInURLDoesNotInjectAttribute(t *testing.T) {
	policy := NewImageURLPolicy()
	// 引用符はエスケープされ属性値の一部として扱われるため、スキームはjavascriptのまま
	if policy.Allowed(`javascript:x" src="https://ok`) {
		t.Error("javascript URL with an injected src should be rejected")
	}
}
