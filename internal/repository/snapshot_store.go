package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotStore はSnapshotRepositoryを型付きのキャッシュフォールバック層へ
// 適合させる。値はJSONとして保存・復元される。
type SnapshotStore[T any] struct {
	repo SnapshotRepository
	kind string
	now  func() time.Time
}

// NewSnapshotStore はSnapshotStoreを生成する。
func NewSnapshotStore[T any](repo SnapshotRepository, kind string) *SnapshotStore[T] {
	return &SnapshotStore[T]{repo: repo, kind: kind, now: time.Now}
}

// LoadSnapshot は保存済みスナップショットを復元する。存在しない場合はokがfalseを返す。
func (s *SnapshotStore[T]) LoadSnapshot(ctx context.Context) (T, time.Time, bool, error) {
	var zero T

	payload, fetchedAt, ok, err := s.repo.Load(ctx, s.kind)
	if err != nil || !ok {
		return zero, time.Time{}, false, err
	}

	var value T
	if err := json.Unmarshal(payload, &value); err != nil {
		return zero, time.Time{}, false, fmt.Errorf("スナップショットの復元に失敗しました: %w", err)
	}
	return value, fetchedAt, true, nil
}

// SaveSnapshot は値をJSONとして保存する。
func (s *SnapshotStore[T]) SaveSnapshot(ctx context.Context, value T) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("スナップショットの変換に失敗しました: %w", err)
	}
	return s.repo.Save(ctx, s.kind, payload, s.now())
}
