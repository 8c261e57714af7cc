// Package mixcloud はMixcloudアーカイブからの番組取得と正規化を提供する。
// 公開エンドポイントをページネーションで取得し、共通のShowモデルへ変換する。
package mixcloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brunosj/thfradio/internal/model"
	"github.com/brunosj/thfradio/internal/pace"
)

const (
	// defaultEndpoint はMixcloudのクラウドキャスト一覧エンドポイント。
	defaultEndpoint = "https://api.mixcloud.com/thfradio/cloudcasts/"
	// defaultPageSize は1ページあたりの取得件数。
	defaultPageSize = 100
	// defaultMaxItems は取得する最大アイテム数。
	defaultMaxItems = 1000
)

// cloudcastTag はMixcloud APIが返すタグオブジェクト。
type cloudcastTag struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// cloudcast はMixcloud APIが返すクラウドキャスト1件。
type cloudcast struct {
	Name        string         `json:"name"`
	URL         string         `json:"url"`
	Key         string         `json:"key"`
	CreatedTime string         `json:"created_time"`
	Tags        []cloudcastTag `json:"tags"`
	Pictures    struct {
		ExtraLarge string `json:"extra_large"`
	} `json:"pictures"`
}

// listResponse はクラウドキャスト一覧エンドポイントのレスポンス。
type listResponse struct {
	Data []cloudcast `json:"data"`
}

// SkipRecorder は取得に失敗したページのスキップを計測するインターフェース。
type SkipRecorder interface {
	RecordRecordSkipped(platform string)
}

// noopSkipRecorder は計測を行わないSkipRecorder実装。
type noopSkipRecorder struct{}

func (noopSkipRecorder) RecordRecordSkipped(string) {}

// Client はMixcloud APIのクライアント。
// 認証は不要だが、他の呼び出し元と共有するPacerで呼び出し間隔を制御する。
type Client struct {
	httpClient *http.Client
	pacer      *pace.Pacer
	logger     *slog.Logger
	metrics    SkipRecorder
	endpoint   string // テスト用にエンドポイントを差し替え可能
	pageSize   int
	maxItems   int
}

// Option はClientの生成オプション。
type Option func(*Client)

// WithSkipRecorder はスキップページの計測先を設定する。
func WithSkipRecorder(m SkipRecorder) Option {
	return func(c *Client) { c.metrics = m }
}

// WithEndpoint は一覧エンドポイントを上書きする。
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithPageLimits はページサイズと最大取得件数を上書きする。
func WithPageLimits(pageSize, maxItems int) Option {
	return func(c *Client) {
		if pageSize > 0 {
			c.pageSize = pageSize
		}
		if maxItems > 0 {
			c.maxItems = maxItems
		}
	}
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, pacer *pace.Pacer, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: httpClient,
		pacer:      pacer,
		logger:     logger,
		metrics:    noopSkipRecorder{},
		endpoint:   defaultEndpoint,
		pageSize:   defaultPageSize,
		maxItems:   defaultMaxItems,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchAll はクラウドキャストをページネーションで全件取得し、Showへ正規化して返す。
// 1ページの失敗はそのページのスキップに留め、成功したページの結果を返す。
// ページがページサイズ未満の件数を返した時点でデータ終端とみなし打ち切る。
// 全ページが失敗した場合のみエラーを返す（呼び出し元が前回値維持を判断する）。
func (c *Client) FetchAll(ctx context.Context) ([]model.Show, error) {
	maxPages := (c.maxItems + c.pageSize - 1) / c.pageSize

	var shows []model.Show
	var succeeded int
	var lastErr error

	for page := 0; page < maxPages; page++ {
		data, err := c.fetchPage(ctx, page*c.pageSize)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.metrics.RecordRecordSkipped(string(model.PlatformMixcloud))
			c.logger.Error("Mixcloudページの取得に失敗しました",
				slog.Int("page", page+1),
				slog.String("error", err.Error()),
			)
			lastErr = err
			continue // このページはスキップし次のページへ
		}

		succeeded++
		for _, cc := range data {
			shows = append(shows, normalize(cc))
		}

		// データ終端
		if len(data) < c.pageSize {
			break
		}
	}

	if succeeded == 0 && lastErr != nil {
		return nil, model.NewUpstreamUnavailableError(string(model.PlatformMixcloud),
			fmt.Errorf("全ページの取得に失敗しました: %w", lastErr))
	}

	if len(shows) > c.maxItems {
		shows = shows[:c.maxItems]
	}

	c.logger.Info("Mixcloudの番組を取得しました",
		slog.Int("show_count", len(shows)),
		slog.Int("pages_succeeded", succeeded),
	)

	return shows, nil
}

// fetchPage は指定オフセットの1ページを取得する。
func (c *Client) fetchPage(ctx context.Context, offset int) ([]cloudcast, error) {
	if err := c.pacer.AwaitSlot(ctx); err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s?offset=%d&limit=%d", c.endpoint, offset, c.pageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "thfradio/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Mixcloud APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result listResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	if result.Data == nil {
		return nil, fmt.Errorf("Mixcloud APIのレスポンスにdataフィールドがありません")
	}

	return result.Data, nil
}

// normalize はクラウドキャスト1件を共通のShowモデルへ変換する。
// タグはキーを小文字化し、SoundCloud側と揃えたスラグ形式のURLを組み立てる。
// 作成日はタイトル末尾の日付トークンを優先し、なければAPIのcreated_timeを使う。
func normalize(cc cloudcast) model.Show {
	tags := make([]model.ShowTag, 0, len(cc.Tags))
	for _, tag := range cc.Tags {
		key := strings.ToLower(tag.Key)
		tags = append(tags, model.ShowTag{
			Key:  key,
			Name: tag.Name,
			URL:  "tag/" + strings.ReplaceAll(key, " ", "-"),
		})
	}

	createdAt, ok := model.ParseTitleDate(cc.Name)
	if !ok {
		if t, err := time.Parse(time.RFC3339, cc.CreatedTime); err == nil {
			createdAt = t
		}
	}

	return model.Show{
		Name:       cc.Name,
		URL:        cc.URL,
		Key:        cc.Key,
		Platform:   model.PlatformMixcloud,
		ArtworkURL: cc.Pictures.ExtraLarge,
		Tags:       model.DedupTags(tags),
		CreatedAt:  createdAt,
	}
}
