package soundcloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brunosj/thfradio/internal/model"
	"github.com/brunosj/thfradio/internal/pace"
)

// defaultAPIBase はSoundCloud APIのベースURL。
const defaultAPIBase = "https://api.soundcloud.com"

// soundcloudCreatedAt はSoundCloud APIのcreated_atタイムスタンプ形式。
const soundcloudCreatedAt = "2006/01/02 15:04:05 -0700"

// track は認証付きトラックエンドポイントが返すレコード1件。
type track struct {
	ID           json.Number `json:"id"`
	Title        string      `json:"title"`
	PermalinkURL string      `json:"permalink_url"`
	ArtworkURL   string      `json:"artwork_url"`
	TagList      string      `json:"tag_list"`
	CreatedAt    string      `json:"created_at"`
	User         struct {
		AvatarURL string `json:"avatar_url"`
	} `json:"user"`
}

// SkipRecorder は不正レコードのスキップを計測するインターフェース。
type SkipRecorder interface {
	RecordRecordSkipped(platform string)
}

// noopSkipRecorder は計測を行わないSkipRecorder実装。
type noopSkipRecorder struct{}

func (noopSkipRecorder) RecordRecordSkipped(string) {}

// Client はSoundCloud APIのクライアント。
// CredentialManagerからトークンを取得し、Pacerで呼び出し間隔を制御する。
type Client struct {
	httpClient *http.Client
	creds      *CredentialManager
	pacer      *pace.Pacer
	logger     *slog.Logger
	metrics    SkipRecorder
	apiBase    string // テスト用にエンドポイントを差し替え可能
	userID     string
}

// ClientOption はClientの生成オプション。
type ClientOption func(*Client)

// WithSkipRecorder はスキップレコードの計測先を設定する。
func WithSkipRecorder(m SkipRecorder) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// NewClient はClientの新しいインスタンスを生成する。
// apiBaseが空の場合はSoundCloudの本番APIを使用する。
func NewClient(httpClient *http.Client, creds *CredentialManager, pacer *pace.Pacer, logger *slog.Logger, userID, apiBase string, opts ...ClientOption) *Client {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	c := &Client{
		httpClient: httpClient,
		creds:      creds,
		pacer:      pacer,
		logger:     logger,
		metrics:    noopSkipRecorder{},
		apiBase:    apiBase,
		userID:     userID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchAll はユーザーの全トラックを取得し、Showへ正規化して返す。
// トークンが取得できない場合は空リストを返す（部分失敗であり全体失敗ではない。
// 集約側はMixcloud分だけで結果を構成する）。
// HTTPレベルの失敗はエラーとして返し、呼び出し元のキャッシュが前回値維持を判断する。
// 個別レコードの正規化失敗はそのレコードのスキップに留める。
func (c *Client) FetchAll(ctx context.Context) ([]model.Show, error) {
	token, err := c.creds.GetToken(ctx)
	if err != nil {
		if errors.Is(err, model.ErrNoCredential) {
			c.logger.Warn("SoundCloudトークンが取得できないため空リストを返します",
				slog.String("error", err.Error()),
			)
			return []model.Show{}, nil
		}
		return nil, err
	}

	if err := c.pacer.AwaitSlot(ctx); err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/users/%s/tracks", c.apiBase, c.userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("トラック一覧の取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, model.NewUpstreamUnavailableError(string(model.PlatformSoundcloud),
			fmt.Errorf("トラック一覧エンドポイントがステータス %d を返しました", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	// レコード単位でデコードし、1件の不正データが全体を壊さないようにする
	var rawTracks []json.RawMessage
	if err := json.Unmarshal(body, &rawTracks); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	shows := make([]model.Show, 0, len(rawTracks))
	var skipped int
	for _, raw := range rawTracks {
		var tr track
		if err := json.Unmarshal(raw, &tr); err != nil || tr.ID.String() == "" {
			skipped++
			c.metrics.RecordRecordSkipped(string(model.PlatformSoundcloud))
			c.logger.Warn("不正なトラックレコードをスキップしました",
				slog.Int("skipped_total", skipped),
			)
			continue
		}
		shows = append(shows, normalizeTrack(tr))
	}

	c.logger.Info("SoundCloudの番組を取得しました",
		slog.Int("show_count", len(shows)),
		slog.Int("skipped", skipped),
	)

	return shows, nil
}

// normalizeTrack はトラック1件を共通のShowモデルへ変換する。
// タイトルに日付トークンがない場合はcreated_atから付与する
// （両プラットフォーム共通の表示・ソート規約）。
// アートワークはトラック画像 → 投稿者アバター → 空の順でフォールバックする。
func normalizeTrack(tr track) model.Show {
	name := tr.Title
	createdMeta, metaOK := parseCreatedAt(tr.CreatedAt)
	if !model.HasDateSuffix(name) && metaOK {
		name += model.FormatDateSuffix(createdMeta)
	}

	createdAt, ok := model.ParseTitleDate(name)
	if !ok {
		createdAt = createdMeta
	}

	artwork := ""
	switch {
	case tr.ArtworkURL != "":
		// サムネイルサイズを大判に差し替える
		artwork = strings.Replace(tr.ArtworkURL, "-large", "-t500x500", 1)
	case tr.User.AvatarURL != "":
		artwork = tr.User.AvatarURL
	}

	return model.Show{
		Name:       name,
		URL:        tr.PermalinkURL,
		Key:        tr.ID.String(),
		Platform:   model.PlatformSoundcloud,
		ArtworkURL: artwork,
		Tags:       ParseTagList(tr.TagList),
		CreatedAt:  createdAt,
	}
}

// parseCreatedAt はSoundCloudのcreated_atを解析する。
// 旧形式（スラッシュ区切り）とRFC3339の両方を受け付ける。
func parseCreatedAt(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(soundcloudCreatedAt, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
