package model

import (
	"errors"
	"fmt"
)

// ErrNoCredential はトークンが取得できず、かつ再利用可能な
// キャッシュ済みトークンも存在しない状態を示す。
// 呼び出し元はこのプラットフォームを一時的に利用不可として扱う。
var ErrNoCredential = errors.New("利用可能な認証トークンがありません")

// ErrCacheEmpty はキャッシュに一度も値が格納されておらず、
// リフレッシュにも失敗した状態を示す。唯一UIまで伝播しうる失敗であり、
// ハンドラーは空リストに縮退させる。
var ErrCacheEmpty = errors.New("キャッシュに値が存在しません")

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, upstream, system
	Action   string // ユーザー向け対処方法
	Err      error  // 根本原因（任意）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は根本原因のエラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeCalendarParseFailed = "CALENDAR_PARSE_FAILED"
	ErrCodeInvalidTag          = "INVALID_TAG"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
)

// NewUpstreamUnavailableError はアップストリーム利用不可エラーを生成する。
// バッチ全体の失敗時にアダプターが返す。個別レコードやページの失敗は
// このエラーにならずスキップされる。
func NewUpstreamUnavailableError(platform string, cause error) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamUnavailable,
		Message:  fmt.Sprintf("外部プラットフォームに接続できません: %s", platform),
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
		Err:      cause,
	}
}

// NewUnauthorizedError は認証失敗エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証に失敗しました。",
		Category: "validation",
		Action:   "正しいBearerトークンを指定してください。",
	}
}

// NewCalendarParseFailedError はカレンダー解析失敗エラーを生成する。
func NewCalendarParseFailedError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeCalendarParseFailed,
		Message:  "番組カレンダーの解析に失敗しました。",
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
		Err:      cause,
	}
}

// NewInvalidTagError は無効なタグ指定エラーを生成する。
func NewInvalidTagError(tag string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTag,
		Message:  fmt.Sprintf("指定されたタグが見つかりません: %s", tag),
		Category: "validation",
		Action:   "タグ一覧に含まれるタグ名を指定してください。",
	}
}
