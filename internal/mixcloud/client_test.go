package mixcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/brunosj/thfradio/internal/model"
	"github.com/brunosj/thfradio/internal/pace"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func newTestClient(serverURL string, httpClient *http.Client, opts ...Option) *Client {
	var buf bytes.Buffer
	allOpts := append([]Option{WithEndpoint(serverURL)}, opts...)
	return NewClient(httpClient, pace.NewPacer(0), newTestLogger(&buf), allOpts...)
}

func makeCloudcasts(offset, n int) []cloudcast {
	out := make([]cloudcast, n)
	for i := 0; i < n; i++ {
		out[i] = cloudcast{
			Name:        fmt.Sprintf("Show %d // 01.02.24", offset+i),
			URL:         fmt.Sprintf("https://www.mixcloud.com/thfradio/show-%d/", offset+i),
			Key:         fmt.Sprintf("/thfradio/show-%d/", offset+i),
			CreatedTime: "2024-02-01T19:00:00Z",
		}
	}
	return out
}

func TestClient_FetchAll_StopsOnShortPage(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		// 1ページ目は満杯、2ページ目は3件のみ（データ終端）
		n := limit
		if offset >= limit {
			n = 3
		}
		json.NewEncoder(w).Encode(listResponse{Data: makeCloudcasts(offset, n)})
	}))
	defer server.Close()

	c := newTestClient(server.URL, server.Client(), WithPageLimits(10, 100))

	shows, err := c.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll がエラーを返した: %v", err)
	}

	if len(shows) != 13 {
		t.Errorf("取得件数 = %d, want 13", len(shows))
	}
	// 短いページで打ち切るため3ページ目以降は要求しない
	if requests != 2 {
		t.Errorf("リクエスト数 = %d, want 2", requests)
	}
}

func TestClient_FetchAll_SkipsFailingPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		// 2ページ目だけ失敗させる
		if offset == limit {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		n := limit
		if offset > limit {
			n = 1 // 3ページ目で終端
		}
		json.NewEncoder(w).Encode(listResponse{Data: makeCloudcasts(offset, n)})
	}))
	defer server.Close()

	c := newTestClient(server.URL, server.Client(), WithPageLimits(5, 15))

	shows, err := c.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll がエラーを返した: %v", err)
	}

	// 1ページ目(5件) + 3ページ目(1件)。失敗ページはスキップされる
	if len(shows) != 6 {
		t.Errorf("取得件数 = %d, want 6", len(shows))
	}
}

func TestClient_FetchAll_AllPagesFailReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(server.URL, server.Client(), WithPageLimits(10, 30))

	_, err := c.FetchAll(context.Background())
	if err == nil {
		t.Fatal("全ページ失敗時にエラーが返らなかった")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrCodeUpstreamUnavailable {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeUpstreamUnavailable)
	}
}

func TestClient_FetchAll_RespectsMaxItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(listResponse{Data: makeCloudcasts(offset, limit)})
	}))
	defer server.Close()

	c := newTestClient(server.URL, server.Client(), WithPageLimits(10, 25))

	shows, err := c.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll がエラーを返した: %v", err)
	}
	if len(shows) > 25 {
		t.Errorf("取得件数 = %d, want 25以下", len(shows))
	}
}

func TestNormalize_TagKeysLowercasedWithSlugURL(t *testing.T) {
	cc := cloudcast{
		Name:        "Morning Show // 05.03.24",
		URL:         "https://www.mixcloud.com/thfradio/morning/",
		Key:         "/thfradio/morning/",
		CreatedTime: "2024-03-05T09:00:00Z",
		Tags: []cloudcastTag{
			{Key: "Drum & Bass", Name: "Drum & Bass"},
			{Key: "Jazz", Name: "Jazz"},
		},
	}

	show := normalize(cc)

	if show.Platform != model.PlatformMixcloud {
		t.Errorf("Platform = %q, want %q", show.Platform, model.PlatformMixcloud)
	}
	if len(show.Tags) != 2 {
		t.Fatalf("タグ数 = %d, want 2", len(show.Tags))
	}
	if show.Tags[0].Key != "drum & bass" {
		t.Errorf("Tags[0].Key = %q, want %q", show.Tags[0].Key, "drum & bass")
	}
	if show.Tags[0].URL != "tag/drum-&-bass" {
		t.Errorf("Tags[0].URL = %q, want %q", show.Tags[0].URL, "tag/drum-&-bass")
	}
	if show.Tags[1].Key != "jazz" {
		t.Errorf("Tags[1].Key = %q, want %q", show.Tags[1].Key, "jazz")
	}
	// 元の表記はNameに保持される
	if show.Tags[0].Name != "Drum & Bass" {
		t.Errorf("Tags[0].Name = %q, want %q", show.Tags[0].Name, "Drum & Bass")
	}
}

func TestNormalize_CreatedAtFromTitleSuffix(t *testing.T) {
	cc := cloudcast{
		Name:        "Late Night // 31.12.23",
		CreatedTime: "2024-01-05T12:00:00Z", // タイトルの日付が優先される
	}

	show := normalize(cc)

	want := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	if !show.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", show.CreatedAt, want)
	}
}

func TestNormalize_CreatedAtFallsBackToCreatedTime(t *testing.T) {
	cc := cloudcast{
		Name:        "Untitled Session",
		CreatedTime: "2024-01-05T12:00:00Z",
	}

	show := normalize(cc)

	want := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	if !show.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", show.CreatedAt, want)
	}
}
