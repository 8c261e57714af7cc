package handler

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/brunosj/thfradio/internal/middleware"
	"github.com/brunosj/thfradio/internal/model"
)

// CacheBuster は手動バースト可能なキャッシュのインターフェース。
type CacheBuster interface {
	Bust()
}

// NamedBuster はバースト対象のキャッシュとその識別名の組。
type NamedBuster struct {
	Name   string
	Buster CacheBuster
}

// CacheBustHandler はキャッシュの手動バーストを処理するHTTPハンドラー。
// タグリストの変更やカタログの即時反映が必要なときに運用者が叩く。
// 任意のクライアントにバーストを許すとアップストリームへの再取得を
// 強制できてしまうため、Bearerトークンによる認証を必須とする。
type CacheBustHandler struct {
	busters []NamedBuster
	token   string
	logger  *slog.Logger
}

// NewCacheBustHandler はCacheBustHandlerを生成する。
// tokenが空の場合、エンドポイントは閉鎖扱いとなり全リクエストを拒否する。
func NewCacheBustHandler(logger *slog.Logger, token string, busters ...NamedBuster) *CacheBustHandler {
	return &CacheBustHandler{
		busters: busters,
		token:   token,
		logger:  logger,
	}
}

// BustAll は登録された全キャッシュを破棄する。
// POST /api/cache/bust
func (h *CacheBustHandler) BustAll(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		h.logger.Warn("キャッシュバーストの認証に失敗しました",
			slog.String("remote_addr", r.RemoteAddr),
		)
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	busted := make([]string, 0, len(h.busters))
	for _, nb := range h.busters {
		nb.Buster.Bust()
		busted = append(busted, nb.Name)
	}

	h.logger.Info("キャッシュを手動バーストしました",
		slog.Any("caches", busted),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"busted": busted,
	})
}

// authorized はAuthorizationヘッダーのBearerトークンを検証する。
// 比較はタイミング攻撃を避けるため一定時間で行う。
func (h *CacheBustHandler) authorized(r *http.Request) bool {
	if h.token == "" {
		return false
	}
	auth := r.Header.Get("Authorization")
	got, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}
