// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"
)

// スナップショットの種別。kindカラムの値として使用する。
const (
	SnapshotKindShows    = "shows"
	SnapshotKindCalendar = "calendar"
)

// SnapshotRepository はキャッシュスナップショットの永続化インターフェース。
// 種別ごとに最新の1件だけを保持し、保存のたびに上書きする。
// 全アップストリームが利用不可の状態でプロセスが再起動した場合の
// 最終手段キャッシュ層として使用される。
type SnapshotRepository interface {
	// Save は指定種別のスナップショットをUPSERTする。
	Save(ctx context.Context, kind string, payload []byte, fetchedAt time.Time) error

	// Load は指定種別の最新スナップショットを返す。
	// 存在しない場合はokがfalseを返す。
	Load(ctx context.Context, kind string) (payload []byte, fetchedAt time.Time, ok bool, err error)
}
