// Package handler はAPIのHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/brunosj/thfradio/internal/middleware"
	"github.com/brunosj/thfradio/internal/model"
	"github.com/brunosj/thfradio/internal/tags"
)

// 番組カタログのHTTPキャッシュ寿命。カタログの更新頻度は低いため
// 長いTTLと1日分のstale-while-revalidate猶予を与える。
const (
	showsCacheMaxAge = 43200 // 12時間
	showsCacheSWR    = 86400 // 24時間
)

// CatalogService は番組ハンドラーが必要とするサービスインターフェース。
type CatalogService interface {
	// GetAllShows は統合済みの番組カタログを返す。
	GetAllShows(ctx context.Context) ([]model.Show, error)
}

// GenreResolver はタグ名からジャンル定義を解決するインターフェース。
type GenreResolver interface {
	// Resolve は参照リストからジャンル定義を解決する。未知のタグはnilを返す。
	Resolve(ctx context.Context, name string) (*model.GenreTag, error)
}

// ShowsHandler は番組カタログのHTTPハンドラー。
type ShowsHandler struct {
	catalog CatalogService
	genres  GenreResolver
	logger  *slog.Logger
}

// NewShowsHandler はShowsHandlerを生成する。
func NewShowsHandler(catalog CatalogService, genres GenreResolver, logger *slog.Logger) *ShowsHandler {
	return &ShowsHandler{
		catalog: catalog,
		genres:  genres,
		logger:  logger,
	}
}

// ListShows は番組カタログを返す。tagクエリパラメータで絞り込める。
// 全キャッシュ層が空の場合でもエラーではなく空配列を返す。
// UIが描画する最悪ケースは「現在番組がありません」であり、クラッシュではない。
// GET /api/shows?tag=jazz
func (h *ShowsHandler) ListShows(w http.ResponseWriter, r *http.Request) {
	shows, err := h.catalog.GetAllShows(r.Context())
	if err != nil {
		h.logger.Error("番組カタログの取得に失敗しました",
			slog.String("error", err.Error()),
		)
		shows = []model.Show{}
	}

	if tagName := strings.TrimSpace(r.URL.Query().Get("tag")); tagName != "" {
		genre, err := h.genres.Resolve(r.Context(), tagName)
		if err != nil {
			h.logger.Error("ジャンルの解決に失敗しました",
				slog.String("tag", tagName),
				slog.String("error", err.Error()),
			)
			middleware.WriteInternalServerError(w)
			return
		}
		if genre == nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidTagError(tagName))
			return
		}
		shows = tags.FilterShows(shows, genre)
	}

	writeCacheableJSON(w, shows, showsCacheMaxAge, showsCacheSWR)
}

// writeCacheableJSON はHTTPキャッシュヘッダー付きでJSONレスポンスを書き込む。
// stale-while-revalidateにより、CDNやブラウザ側でも
// 「期限切れ値を返しつつ裏で再検証する」縮退が働く。
func writeCacheableJSON(w http.ResponseWriter, v any, maxAge, swr int) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control",
		fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d", maxAge, swr))
	json.NewEncoder(w).Encode(v)
}
