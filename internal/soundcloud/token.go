// Package soundcloud はSoundCloudからの番組取得、OAuth認証情報の管理、
// タグ文字列の解析と共通Showモデルへの正規化を提供する。
package soundcloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/brunosj/thfradio/internal/model"
	"github.com/brunosj/thfradio/internal/pace"
)

const (
	// defaultTokenURL はclient credentialsグラントのトークンエンドポイント。
	defaultTokenURL = "https://api.soundcloud.com/oauth2/token"
	// defaultStaleExtension はレート制限時に期限切れトークンを
	// 延命して使い続ける期間。正しさより可用性を優先するトレードオフで、
	// 本当に失効していれば後続のAPI呼び出しが明確に失敗する。
	defaultStaleExtension = 24 * time.Hour
)

// OAuthToken はclient credentialsグラントで取得したアクセストークンを表す。
// プロセス内に生きているインスタンスは常に1つで、更新時は丸ごと置き換える。
type OAuthToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenStore はトークンのプロセス再起動をまたぐ永続化のインターフェース。
// コールドスタート時のトークンリクエストを節約する最適化であり、
// 永続化の失敗が認証フローを妨げることはない。
type TokenStore interface {
	// LoadToken は保存済みトークンを取得する。存在しない場合はnilを返す。
	LoadToken(ctx context.Context) (*OAuthToken, error)
	// SaveToken はトークンを保存する。
	SaveToken(ctx context.Context, token *OAuthToken) error
}

// tokenResponse はトークンエンドポイントのレスポンス。
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// CredentialManager はSoundCloudのclient credentialsトークンの
// ライフサイクルを管理する。有効なトークンはネットワーク呼び出しなしで
// 再利用し、レート制限時は期限切れトークンを延命して返す。
type CredentialManager struct {
	httpClient     *http.Client
	pacer          *pace.Pacer
	logger         *slog.Logger
	clientID       string
	clientSecret   string
	tokenURL       string // テスト用にエンドポイントを差し替え可能
	staleExtension time.Duration
	store          TokenStore // nilの場合は永続化しない

	mu      sync.Mutex
	current *OAuthToken
	now     func() time.Time // テスト用に差し替え可能
}

// CredentialConfig はCredentialManagerの設定。
type CredentialConfig struct {
	ClientID     string
	ClientSecret string

	// TokenURL はテスト用のエンドポイント上書き。空の場合はデフォルトを使う。
	TokenURL string
	// StaleExtension はレート制限時のトークン延命期間。0の場合は24時間。
	StaleExtension time.Duration
	// Store はトークンの永続化先。nilの場合は永続化しない。
	Store TokenStore
}

// NewCredentialManager はCredentialManagerの新しいインスタンスを生成する。
func NewCredentialManager(httpClient *http.Client, pacer *pace.Pacer, logger *slog.Logger, cfg CredentialConfig) *CredentialManager {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	staleExtension := cfg.StaleExtension
	if staleExtension <= 0 {
		staleExtension = defaultStaleExtension
	}
	return &CredentialManager{
		httpClient:     httpClient,
		pacer:          pacer,
		logger:         logger,
		clientID:       cfg.ClientID,
		clientSecret:   cfg.ClientSecret,
		tokenURL:       tokenURL,
		staleExtension: staleExtension,
		store:          cfg.Store,
		now:            time.Now,
	}
}

// GetToken は有効なアクセストークンを返す。
// キャッシュ済みトークンが期限内であればネットワーク呼び出しなしで返す。
// 期限切れの場合はトークンエンドポイントへ再取得を試み、取得が失敗しても
// キャッシュ済みトークンがあれば期限を延長して返す（縮退動作）。
// キャッシュが一切ない状態で取得に失敗した場合はmodel.ErrNoCredentialを返し、
// 呼び出し元はこのプラットフォームを一時的に利用不可として扱う。
func (m *CredentialManager) GetToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.now().Before(m.current.ExpiresAt) {
		return m.current.Value, nil
	}

	// コールドスタート時は永続化済みトークンを先に確認する
	if m.current == nil && m.store != nil {
		if stored, err := m.store.LoadToken(ctx); err == nil && stored != nil {
			m.current = stored
			if m.now().Before(stored.ExpiresAt) {
				return stored.Value, nil
			}
		}
	}

	token, err := m.requestToken(ctx)
	if err != nil {
		// キャッシュ済みトークンがあれば期限を延長して使い続ける。
		// 失効済みトークンを使うリスクと引き換えに可用性を確保する。
		if m.current != nil {
			m.current = &OAuthToken{
				Value:     m.current.Value,
				ExpiresAt: m.now().Add(m.staleExtension),
			}
			m.logger.Warn("トークン再取得に失敗したため期限切れトークンを延命して使用します",
				slog.String("error", err.Error()),
				slog.Time("extended_until", m.current.ExpiresAt),
			)
			return m.current.Value, nil
		}
		return "", fmt.Errorf("%w: %s", model.ErrNoCredential, err.Error())
	}

	m.current = token

	if m.store != nil {
		if err := m.store.SaveToken(ctx, token); err != nil {
			m.logger.Warn("トークンの永続化に失敗しました",
				slog.String("error", err.Error()),
			)
		}
	}

	return token.Value, nil
}

// requestToken はclient credentialsグラントでトークンを取得する。
func (m *CredentialManager) requestToken(ctx context.Context) (*OAuthToken, error) {
	if err := m.pacer.AwaitSlot(ctx); err != nil {
		return nil, err
	}

	data := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {m.clientID},
		"client_secret": {m.clientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("トークンリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("トークンリクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("トークンレスポンスの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests {
			m.logger.Warn("トークンエンドポイントがレート制限を返しました")
		}
		return nil, fmt.Errorf("トークン取得がステータス %d で失敗しました", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("トークンレスポンスのパースに失敗しました: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("トークンレスポンスにaccess_tokenがありません")
	}

	return &OAuthToken{
		Value:     tr.AccessToken,
		ExpiresAt: m.now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}
