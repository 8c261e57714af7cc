// Package security はアウトバウンド通信の安全性確保とコンテンツのサニタイズを提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// SSRFGuardService はSSRF防止機能のインターフェースを定義する。
// アップストリームAPI・ICSフィードへの全アウトバウンドフェッチで使用される。
// エンドポイントURLは環境変数経由で差し替え可能なため、
// 設定ミスや悪意ある値で内部ネットワークへ到達しないよう検証する。
type SSRFGuardService interface {
	// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
	// safeurlライブラリがDialerレベルでDNS解決後のIPアドレスを検証するため、
	// DNS再バインディング攻撃にも対応する。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL はURLの安全性を事前に静的検証する。
	ValidateURL(rawURL string) error
}

// allowedSchemes はアウトバウンドで許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// ssrfGuard はSSRFGuardServiceの実装。
type ssrfGuard struct{}

// NewSSRFGuard はSSRFGuardServiceの新しいインスタンスを生成する。
func NewSSRFGuard() *ssrfGuard {
	return &ssrfGuard{}
}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// プライベートIP、ループバック、リンクローカル、メタデータIPへの
// リクエストはsafeurlのデフォルト設定でブロックされる。
func (g *ssrfGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL はURLの安全性を事前に検証する。
// DNS解決を伴わない静的検証のみを行う。ホスト名がIPアドレスの場合は
// プライベート・ループバック・リンクローカル範囲を拒否する。
// DNS再バインディングはNewSafeClientのDialer側検証で防止される。
func (g *ssrfGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}

	if ip := net.ParseIP(host); ip != nil && isBlockedIP(ip) {
		return fmt.Errorf("blocked IP address: %s", ip.String())
	}

	return nil
}

// isAllowedScheme はURLスキームが許可リストに含まれるかを検証する。
func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

// isBlockedIP はIPアドレスが到達を許可しない範囲に含まれるかを検証する。
// プライベート (RFC 1918)、ループバック、リンクローカル
// （クラウドメタデータIP 169.254.169.254 を含む）、未指定アドレスを拒否する。
func isBlockedIP(ip net.IP) bool {
	return ip.IsPrivate() ||
		ip.IsLoopback() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}
