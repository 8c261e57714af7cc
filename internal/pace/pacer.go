// Package pace はアップストリームへの送信レート制御を提供する。
// プラットフォームごとに共有される単一のPacerで全呼び出しを直列化し、
// 前回呼び出し開始からの最低間隔を保証する。
package pace

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer は1つのアップストリームに対する呼び出し間隔を強制する。
// バースト1のトークンバケットにより、許可された呼び出しの開始時刻から
// minDelay経過するまで次の呼び出しをブロックする。ビジーウェイトはしない。
// エラーを返すのはコンテキストキャンセル時のみ。
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer は最低間隔minDelayのPacerを生成する。
// minDelayが0以下の場合は間隔制御を行わないPacerを返す。
func NewPacer(minDelay time.Duration) *Pacer {
	if minDelay <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(minDelay), 1)}
}

// AwaitSlot は次の呼び出しが許可されるまでブロックする。
// 許可された時点で呼び出し時刻が記録され、以降の呼び出しは
// そこからminDelay経過するまで待たされる。
// 公平性はFIFO到着順のみで、それ以上の保証はしない。
func (p *Pacer) AwaitSlot(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
