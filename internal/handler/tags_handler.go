package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/brunosj/thfradio/internal/model"
)

// TagListService はタグハンドラーが必要とするサービスインターフェース。
type TagListService interface {
	// List はジャンルタグの参照リストを返す。
	List(ctx context.Context) ([]model.GenreTag, error)
}

// TagsHandler はジャンルタグ参照リストのHTTPハンドラー。
type TagsHandler struct {
	source TagListService
	logger *slog.Logger
}

// NewTagsHandler はTagsHandlerを生成する。
func NewTagsHandler(source TagListService, logger *slog.Logger) *TagsHandler {
	return &TagsHandler{
		source: source,
		logger: logger,
	}
}

// ListTags はジャンルタグの参照リストを返す。
// GET /api/tags
func (h *TagsHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	list, err := h.source.List(r.Context())
	if err != nil {
		h.logger.Error("タグリストの取得に失敗しました",
			slog.String("error", err.Error()),
		)
		list = []model.GenreTag{}
	}

	writeCacheableJSON(w, list, showsCacheMaxAge, showsCacheSWR)
}
