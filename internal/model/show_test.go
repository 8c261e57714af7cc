package model

import (
	"testing"
	"time"
)

func TestHasDateSuffix(t *testing.T) {
	tests := []struct {
		title string
		want  bool
	}{
		{"Morning Show // 14.06.24", true},
		{"Morning Show //14.06.24", true},
		{"Morning Show // 14.06.24 ", true},
		{"Morning Show", false},
		{"Morning Show // tomorrow", false},
		{"Morning Show // 14.06.2024", false},
		{"// 14.06.24 Morning Show", false},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			if got := HasDateSuffix(tt.title); got != tt.want {
				t.Errorf("HasDateSuffix(%q) = %v, want %v", tt.title, got, tt.want)
			}
		})
	}
}

func TestParseTitleDate(t *testing.T) {
	got, ok := ParseTitleDate("Late Night Session // 14.06.24")
	if !ok {
		t.Fatal("日付トークンが解析されなかった")
	}
	want := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ParseTitleDate = %v, want %v", got, want)
	}
}

func TestParseTitleDate_NoToken(t *testing.T) {
	if _, ok := ParseTitleDate("Late Night Session"); ok {
		t.Error("トークンなしのタイトルで ok = true")
	}
}

func TestParseTitleDate_InvalidDate(t *testing.T) {
	// 正規表現にはマッチするが暦日として不正
	if _, ok := ParseTitleDate("Show // 32.13.24"); ok {
		t.Error("不正な日付で ok = true")
	}
}

func TestFormatDateSuffix_RoundTrips(t *testing.T) {
	d := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	title := "Morning Show" + FormatDateSuffix(d)

	if title != "Morning Show // 14.06.24" {
		t.Errorf("title = %q, want %q", title, "Morning Show // 14.06.24")
	}
	got, ok := ParseTitleDate(title)
	if !ok || !got.Equal(d) {
		t.Errorf("ParseTitleDate(%q) = %v, %v, want %v, true", title, got, ok, d)
	}
}

func TestDedupTags(t *testing.T) {
	tags := []ShowTag{
		{Key: "ambient", Name: "Ambient"},
		{Key: "techno", Name: "Techno"},
		{Key: "ambient2", Name: "ambient"},    // 大文字小文字違いの重複
		{Key: "ambient3", Name: " Ambient  "}, // 空白違いの重複
		{Key: "empty", Name: "  "},            // 空白のみは捨てる
		{Key: "jazz", Name: "Jazz"},
	}

	got := DedupTags(tags)
	if len(got) != 3 {
		t.Fatalf("タグ数 = %d, want 3", len(got))
	}
	for i, want := range []string{"Ambient", "Techno", "Jazz"} {
		if got[i].Name != want {
			t.Errorf("got[%d].Name = %q, want %q", i, got[i].Name, want)
		}
	}
}

func TestDedupTags_Empty(t *testing.T) {
	if got := DedupTags(nil); len(got) != 0 {
		t.Errorf("DedupTags(nil) = %v, want empty", got)
	}
}
