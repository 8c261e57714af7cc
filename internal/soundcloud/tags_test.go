package soundcloud

import (
	"testing"
)

func TestParseTagList_MixedQuotedAndBareTokens(t *testing.T) {
	tags := ParseTagList(`Techno "Jazz Fusion" housemusic`)

	if len(tags) != 3 {
		t.Fatalf("タグ数 = %d, want 3", len(tags))
	}
	if tags[0].Name != "Techno" {
		t.Errorf("tags[0].Name = %q, want %q", tags[0].Name, "Techno")
	}
	// 引用符で囲まれたフレーズは1つのタグとして扱う
	if tags[1].Name != "Jazz Fusion" {
		t.Errorf("tags[1].Name = %q, want %q", tags[1].Name, "Jazz Fusion")
	}
	if tags[1].Key != "jazz fusion" {
		t.Errorf("tags[1].Key = %q, want %q", tags[1].Key, "jazz fusion")
	}
	if tags[1].URL != "tag/jazz-fusion" {
		t.Errorf("tags[1].URL = %q, want %q", tags[1].URL, "tag/jazz-fusion")
	}
	if tags[2].Name != "housemusic" {
		t.Errorf("tags[2].Name = %q, want %q", tags[2].Name, "housemusic")
	}
}

func TestParseTagList_QuotedPhrasePlusNTokens(t *testing.T) {
	// 引用符フレーズ1つ + 非引用トークンN個 → ちょうどN+1タグ
	tags := ParseTagList(`a b "Multi Word Phrase" c d`)

	if len(tags) != 5 {
		t.Fatalf("タグ数 = %d, want 5", len(tags))
	}

	found := false
	for _, tag := range tags {
		if tag.Name == "Multi Word Phrase" {
			found = true
		}
	}
	if !found {
		t.Error("引用符フレーズが1つのタグとして保持されていない")
	}
}

func TestParseTagList_StripsSystemTags(t *testing.T) {
	tags := ParseTagList(`Jazz soundcloud:source=web geo:lat=52.47 Ambient`)

	if len(tags) != 2 {
		t.Fatalf("タグ数 = %d, want 2", len(tags))
	}
	if tags[0].Name != "Jazz" {
		t.Errorf("tags[0].Name = %q, want %q", tags[0].Name, "Jazz")
	}
	if tags[1].Name != "Ambient" {
		t.Errorf("tags[1].Name = %q, want %q", tags[1].Name, "Ambient")
	}
}

func TestParseTagList_CasePreservedInNameLoweredInKey(t *testing.T) {
	tags := ParseTagList(`DeepHouse`)

	if len(tags) != 1 {
		t.Fatalf("タグ数 = %d, want 1", len(tags))
	}
	if tags[0].Name != "DeepHouse" {
		t.Errorf("Name = %q, want %q", tags[0].Name, "DeepHouse")
	}
	if tags[0].Key != "deephouse" {
		t.Errorf("Key = %q, want %q", tags[0].Key, "deephouse")
	}
}

func TestParseTagList_MalformedQuotes(t *testing.T) {
	// 連続引用符と末尾の余分な引用符を含む崩れたデータ
	tags := ParseTagList(`""Jazz Fusion"" Techno"`)

	if len(tags) != 2 {
		t.Fatalf("タグ数 = %d, want 2: %v", len(tags), tags)
	}
	if tags[0].Name != "Jazz Fusion" {
		t.Errorf("tags[0].Name = %q, want %q", tags[0].Name, "Jazz Fusion")
	}
	if tags[1].Name != "Techno" {
		t.Errorf("tags[1].Name = %q, want %q", tags[1].Name, "Techno")
	}
}

func TestParseTagList_EmptyAndWhitespace(t *testing.T) {
	if tags := ParseTagList(""); len(tags) != 0 {
		t.Errorf("空文字列のタグ数 = %d, want 0", len(tags))
	}
	if tags := ParseTagList("   "); len(tags) != 0 {
		t.Errorf("空白のみのタグ数 = %d, want 0", len(tags))
	}
}

func TestParseTagList_DeduplicatesByName(t *testing.T) {
	tags := ParseTagList(`Jazz jazz JAZZ Ambient`)

	if len(tags) != 2 {
		t.Fatalf("タグ数 = %d, want 2", len(tags))
	}
	// 先勝ちで元の表記を保持する
	if tags[0].Name != "Jazz" {
		t.Errorf("tags[0].Name = %q, want %q", tags[0].Name, "Jazz")
	}
}
