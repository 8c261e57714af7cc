// Package model はドメインモデルを定義する。
package model

import (
	"regexp"
	"strings"
	"time"
)

// Platform は番組アーカイブのホスティングプラットフォームを表す。
type Platform string

const (
	// PlatformMixcloud はMixcloud（クラウドキャストアーカイブ）を示す。
	PlatformMixcloud Platform = "mixcloud"
	// PlatformSoundcloud はSoundCloud（トラックホスティング）を示す。
	PlatformSoundcloud Platform = "soundcloud"
)

// ShowTag は番組に付与されたジャンル・トピックのタグを表す。
// Keyは小文字正規化済み、Nameは元の表記を保持する。
type ShowTag struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Show は両プラットフォームを統合したカタログの1エントリを表す。
// Keyはプラットフォーム内でのみ一意であり、横断的な同一性は
// (Platform, Key) の組で判断する。集約サイクルごとに再構築され、
// 生成後に変更されることはない。
type Show struct {
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Key        string    `json:"key"`
	Platform   Platform  `json:"platform"`
	ArtworkURL string    `json:"artwork_url,omitempty"`
	Tags       []ShowTag `json:"tags"`
	CreatedAt  time.Time `json:"created_at"`
}

// GenreTag はフィルタUIで選択可能なジャンルタグを表す。
// 類義語リストを含み、プロセス起動後は不変として扱う。
type GenreTag struct {
	Name     string   `json:"name"`
	Synonyms []string `json:"synonyms,omitempty"`
}

// titleDateSuffix は番組タイトル末尾の「// DD.MM.YY」形式の日付トークン。
// 両プラットフォームの表示・ソート規約として全タイトルに付与される。
var titleDateSuffix = regexp.MustCompile(`//\s*(\d{2})\.(\d{2})\.(\d{2})\s*$`)

// HasDateSuffix はタイトルが日付トークンで終わっているかを返す。
func HasDateSuffix(title string) bool {
	return titleDateSuffix.MatchString(title)
}

// ParseTitleDate はタイトル末尾の日付トークンを解析する。
// トークンが存在しない、または日付として不正な場合はfalseを返す。
func ParseTitleDate(title string) (time.Time, bool) {
	m := titleDateSuffix.FindStringSubmatch(title)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse("02.01.06", m[1]+"."+m[2]+"."+m[3])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatDateSuffix は日付トークンをタイトル付与用の文字列に整形する。
func FormatDateSuffix(t time.Time) string {
	return " // " + t.Format("02.01.06")
}

// DedupTags は同名タグを除去したタグ列を返す。順序は先勝ちで保持する。
// 比較は表示名の小文字・空白トリム後に行う。
func DedupTags(tags []ShowTag) []ShowTag {
	if len(tags) == 0 {
		return tags
	}
	seen := make(map[string]bool, len(tags))
	out := make([]ShowTag, 0, len(tags))
	for _, tag := range tags {
		k := strings.ToLower(strings.TrimSpace(tag.Name))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, tag)
	}
	return out
}
