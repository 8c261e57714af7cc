// Package tags はジャンルタグの照合と参照リストの取得を提供する。
package tags

import (
	"regexp"
	"strings"

	"github.com/brunosj/thfradio/internal/model"
)

// nonWord は正規化時に空白へ潰す記号と空白の連続。
var nonWord = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Normalize はタグ名を照合用に正規化する。
// 小文字化し、記号と空白の連続を1つの空白へ潰す。
func Normalize(name string) string {
	return strings.TrimSpace(nonWord.ReplaceAllString(strings.ToLower(name), " "))
}

// Matches は番組側のタグ名が選択されたジャンルに該当するか判定する。
// 完全一致ではなく包含で照合するため、"Jazz"タグは
// "Jazz & Blues"というジャンル選択にも該当する。
// ジャンル名本体と同義語リストの両方に対して照合する。
// 状態を持たない純粋関数であり、選択変更のたびに呼ばれる前提。
func Matches(showTagName string, genre model.GenreTag) bool {
	needle := Normalize(showTagName)
	if needle == "" {
		return false
	}
	pattern, err := regexp.Compile(regexp.QuoteMeta(needle))
	if err != nil {
		return false
	}

	if pattern.MatchString(Normalize(genre.Name)) {
		return true
	}
	for _, synonym := range genre.Synonyms {
		if pattern.MatchString(Normalize(synonym)) {
			return true
		}
	}
	return false
}

// FilterShows は選択されたジャンルに該当するタグを1つ以上持つ番組だけを残す。
// genreがnilの場合はフィルタなしとして全件を返す。
func FilterShows(shows []model.Show, genre *model.GenreTag) []model.Show {
	if genre == nil {
		return shows
	}
	filtered := make([]model.Show, 0, len(shows))
	for _, show := range shows {
		for _, tag := range show.Tags {
			if Matches(tag.Name, *genre) {
				filtered = append(filtered, show)
				break
			}
		}
	}
	return filtered
}
