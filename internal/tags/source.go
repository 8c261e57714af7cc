package tags

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brunosj/thfradio/internal/cache"
	"github.com/brunosj/thfradio/internal/model"
)

// referenceTTL は参照リストの実質無期限TTL。
// リストはプロセス存続中は不変で、変更の反映は手動バーストで行う。
const referenceTTL = 24 * 365 * time.Hour

// Source はジャンルタグ参照リストの取得元。
// リストは外部で管理されるスロー変化データで、プロセス起動後
// 最初の参照時に1回だけ取得され、以降は手動バーストまで再取得しない。
type Source struct {
	httpClient *http.Client
	logger     *slog.Logger
	listURL    string
	cache      *cache.Cache[[]model.GenreTag]
}

// NewSource はSourceの新しいインスタンスを生成する。
// listURLが空の場合は参照リストなしで動作し、Listは常に空を返す。
func NewSource(httpClient *http.Client, logger *slog.Logger, listURL string) *Source {
	return &Source{
		httpClient: httpClient,
		logger:     logger,
		listURL:    listURL,
		cache:      cache.New[[]model.GenreTag]("tags", referenceTTL, referenceTTL, logger),
	}
}

// List はジャンルタグの参照リストを返す。
func (s *Source) List(ctx context.Context) ([]model.GenreTag, error) {
	if s.listURL == "" {
		return []model.GenreTag{}, nil
	}
	return s.cache.Get(ctx, s.fetch)
}

// Resolve はタグ名からジャンル定義を解決する。
// 参照リストに正規化一致するエントリがあればそれを返す。
// 参照リストが設定されていない場合は同義語なしの定義を合成して返す。
// リストはあるが一致しない場合はnilを返し、呼び出し側が不正タグとして扱う。
func (s *Source) Resolve(ctx context.Context, name string) (*model.GenreTag, error) {
	if s.listURL == "" {
		return &model.GenreTag{Name: name}, nil
	}

	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	needle := Normalize(name)
	for i := range list {
		if Normalize(list[i].Name) == needle {
			return &list[i], nil
		}
	}
	return nil, nil
}

// Bust は参照リストのキャッシュを破棄し、次回参照時に再取得させる。
func (s *Source) Bust() {
	s.cache.Bust()
}

// fetch は参照リストをHTTPで取得する。
func (s *Source) fetch(ctx context.Context) ([]model.GenreTag, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("タグリストの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("タグリストの取得元がステータス %d を返しました", resp.StatusCode)
	}

	var list []model.GenreTag
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("タグリストJSONのパースに失敗しました: %w", err)
	}

	s.logger.Info("ジャンルタグの参照リストを取得しました", slog.Int("tag_count", len(list)))
	return list, nil
}
