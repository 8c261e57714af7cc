package soundcloud

import (
	"strings"

	"github.com/brunosj/thfradio/internal/model"
)

// systemTagMarkers はSoundCloudが内部的に付与する疑似名前空間タグの目印。
// これらを含むトークンはユーザー向けタグではないため除外する。
var systemTagMarkers = []string{"soundcloud:", "geo:"}

// ParseTagList はSoundCloudのtag_list文字列をタグ列へ解析する。
// tag_listは空白区切りの単一トークンと二重引用符で囲まれた複数語フレーズが
// 混在する形式（例: `Drum & Bass "Jazz Fusion" housemusic`）。
// 引用符で囲まれた範囲は1つのタグ、引用符外の空白がトークン区切りとなる。
// キーは小文字化し、表示名は元の表記を保持する。
func ParseTagList(raw string) []model.ShowTag {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	// 引用符の対応が崩れたデータへの前処理:
	// 連続する引用符を1つに潰し、末尾の余分な引用符を落とす
	cleaned := collapseQuotes(raw)
	cleaned = strings.TrimSuffix(cleaned, `"`)

	tokens := scanTokens(cleaned)

	tags := make([]model.ShowTag, 0, len(tokens))
	for _, token := range tokens {
		if isSystemTag(token) {
			continue
		}
		// 残留した引用符とカンマを除去する
		name := strings.TrimSpace(strings.Map(dropQuoteComma, token))
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		tags = append(tags, model.ShowTag{
			Key:  key,
			Name: name,
			URL:  "tag/" + strings.ReplaceAll(key, " ", "-"),
		})
	}

	return model.DedupTags(tags)
}

// scanTokens は2状態（引用符外・引用符内）のスキャンでトークンを切り出す。
func scanTokens(s string) []string {
	var tokens []string
	var current strings.Builder
	inQuote := false

	flush := func() {
		if t := strings.TrimSpace(current.String()); t != "" {
			tokens = append(tokens, t)
		}
		current.Reset()
	}

	for _, r := range s {
		switch {
		case r == '"':
			if inQuote {
				// 引用符の閉じ = フレーズタグの終端
				flush()
			}
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return tokens
}

// collapseQuotes は連続する二重引用符を1つに潰す。
func collapseQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevQuote := false
	for _, r := range s {
		if r == '"' {
			if prevQuote {
				continue
			}
			prevQuote = true
		} else {
			prevQuote = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isSystemTag はプラットフォーム内部タグかを判定する。
func isSystemTag(token string) bool {
	lower := strings.ToLower(token)
	for _, marker := range systemTagMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// dropQuoteComma は引用符とカンマを除去するstrings.Map用の変換関数。
func dropQuoteComma(r rune) rune {
	if r == '"' || r == ',' {
		return -1
	}
	return r
}
