package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brunosj/thfradio/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// サービス
	Catalog  CatalogService
	Genres   GenreResolver
	Schedule ScheduleService
	TagList  TagListService

	// キャッシュバースト対象とそのBearerトークン
	Busters        []NamedBuster
	CacheBustToken string
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → RateLimit
//
// /healthはレート制限の外に配置する（ロードバランサーのヘルスチェック用）。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	showsHandler := NewShowsHandler(deps.Catalog, deps.Genres, deps.Logger)
	calendarHandler := NewCalendarHandler(deps.Schedule, deps.Logger)
	tagsHandler := NewTagsHandler(deps.TagList, deps.Logger)
	bustHandler := NewCacheBustHandler(deps.Logger, deps.CacheBustToken, deps.Busters...)

	// ヘルスチェック（レート制限の外）
	r.Get("/health", healthCheck)

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.Middleware())

		r.Route("/api", func(r chi.Router) {
			r.Get("/shows", showsHandler.ListShows)
			r.Get("/calendar", calendarHandler.GetSchedule)
			r.Get("/live", calendarHandler.GetLive)
			r.Get("/tags", tagsHandler.ListTags)
			r.Post("/cache/bust", bustHandler.BustAll)
		})
	})

	return r
}

// healthCheck はプロセスの生存確認に応答する。
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
