package cache

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brunosj/thfradio/internal/model"
)

func newTestLogger() *slog.Logger {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func TestCache_FreshValueServedWithoutRefresh(t *testing.T) {
	c := New[string]("test", time.Hour, 24*time.Hour, newTestLogger())

	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := t0
	c.now = func() time.Time { return now }

	var calls int
	refresh := func(ctx context.Context) (string, error) {
		calls++
		return "value-1", nil
	}

	got, err := c.Get(context.Background(), refresh)
	if err != nil {
		t.Fatalf("Get がエラーを返した: %v", err)
	}
	if got != "value-1" {
		t.Errorf("value = %q, want %q", got, "value-1")
	}

	// TTL内の2回目はrefreshを呼ばない
	now = t0.Add(59 * time.Minute)
	if _, err := c.Get(context.Background(), refresh); err != nil {
		t.Fatalf("2回目の Get がエラーを返した: %v", err)
	}
	if calls != 1 {
		t.Errorf("refresh呼び出し数 = %d, want 1", calls)
	}

	// TTLを過ぎると再取得する
	now = t0.Add(61 * time.Minute)
	if _, err := c.Get(context.Background(), refresh); err != nil {
		t.Fatalf("3回目の Get がエラーを返した: %v", err)
	}
	if calls != 2 {
		t.Errorf("refresh呼び出し数 = %d, want 2", calls)
	}
}

func TestCache_RefreshFailureServesStaleValue(t *testing.T) {
	c := New[string]("test", time.Hour, 24*time.Hour, newTestLogger())

	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := t0
	c.now = func() time.Time { return now }

	ok := func(ctx context.Context) (string, error) { return "value-1", nil }
	fail := func(ctx context.Context) (string, error) { return "", errors.New("upstream down") }

	if _, err := c.Get(context.Background(), ok); err != nil {
		t.Fatalf("初回の Get がエラーを返した: %v", err)
	}

	// TTL切れ後にリフレッシュが失敗しても前回値が返る
	now = t0.Add(2 * time.Hour)
	got, err := c.Get(context.Background(), fail)
	if err != nil {
		t.Fatalf("失敗時の Get がエラーを返した: %v", err)
	}
	if got != "value-1" {
		t.Errorf("value = %q, want 前回値 %q", got, "value-1")
	}
}

func TestCache_StaleExtensionAvoidsRepeatedRefresh(t *testing.T) {
	c := New[string]("test", time.Hour, 24*time.Hour, newTestLogger())

	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := t0
	c.now = func() time.Time { return now }

	var failCalls int
	ok := func(ctx context.Context) (string, error) { return "value-1", nil }
	fail := func(ctx context.Context) (string, error) {
		failCalls++
		return "", errors.New("upstream down")
	}

	if _, err := c.Get(context.Background(), ok); err != nil {
		t.Fatalf("初回の Get がエラーを返した: %v", err)
	}

	now = t0.Add(2 * time.Hour)
	if _, err := c.Get(context.Background(), fail); err != nil {
		t.Fatalf("失敗時の Get がエラーを返した: %v", err)
	}

	// 延命された鮮度窓の中では再リフレッシュしない
	now = now.Add(10 * time.Minute)
	if _, err := c.Get(context.Background(), fail); err != nil {
		t.Fatalf("延命期間中の Get がエラーを返した: %v", err)
	}
	if failCalls != 1 {
		t.Errorf("失敗refresh呼び出し数 = %d, want 1（延命中は再試行しない）", failCalls)
	}
}

func TestCache_NeverErrorsAfterFirstSuccess(t *testing.T) {
	c := New[[]int]("test", time.Minute, time.Hour, newTestLogger())

	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := t0
	c.now = func() time.Time { return now }

	first := true
	refresh := func(ctx context.Context) ([]int, error) {
		if first {
			first = false
			return []int{1, 2, 3}, nil
		}
		return nil, errors.New("upstream down")
	}

	if _, err := c.Get(context.Background(), refresh); err != nil {
		t.Fatalf("初回の Get がエラーを返した: %v", err)
	}

	// 以降リフレッシュが失敗し続けてもエラーは返らない
	for i := 0; i < 5; i++ {
		now = now.Add(2 * time.Hour)
		got, err := c.Get(context.Background(), refresh)
		if err != nil {
			t.Fatalf("%d回目の Get がエラーを返した: %v", i+2, err)
		}
		if len(got) != 3 {
			t.Errorf("len = %d, want 3", len(got))
		}
	}
}

func TestCache_EmptyCacheRefreshFailureReturnsError(t *testing.T) {
	c := New[string]("test", time.Hour, 24*time.Hour, newTestLogger())

	cause := errors.New("upstream down")
	fail := func(ctx context.Context) (string, error) { return "", cause }

	_, err := c.Get(context.Background(), fail)
	if err == nil {
		t.Fatal("全層が空の状態でエラーが返らなかった")
	}
	// 呼び出し元が空配列への縮退を判断できるよう、空キャッシュの目印と
	// 根本原因の両方を保持する
	if !errors.Is(err, model.ErrCacheEmpty) {
		t.Errorf("err = %v, want ErrCacheEmptyを包含", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("err = %v, want 根本原因を包含", err)
	}
}

// memorySnapshotStore はテスト用のFallbackStore実装。
type memorySnapshotStore struct {
	mu        sync.Mutex
	value     string
	fetchedAt time.Time
	has       bool
	saves     int
}

func (s *memorySnapshotStore) LoadSnapshot(ctx context.Context) (string, time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.fetchedAt, s.has, nil
}

func (s *memorySnapshotStore) SaveSnapshot(ctx context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = value
	s.has = true
	s.saves++
	return nil
}

func TestCache_FallbackStoreServesColdStart(t *testing.T) {
	store := &memorySnapshotStore{
		value:     "snapshot-value",
		fetchedAt: time.Date(2024, 5, 30, 8, 0, 0, 0, time.UTC),
		has:       true,
	}
	c := New[string]("test", time.Hour, 24*time.Hour, newTestLogger(), WithFallback[string](store))

	fail := func(ctx context.Context) (string, error) { return "", errors.New("upstream down") }

	// メモリ層が空でもスナップショットから復元できる
	got, err := c.Get(context.Background(), fail)
	if err != nil {
		t.Fatalf("Get がエラーを返した: %v", err)
	}
	if got != "snapshot-value" {
		t.Errorf("value = %q, want %q", got, "snapshot-value")
	}
}

func TestCache_SavesSnapshotOnRefresh(t *testing.T) {
	store := &memorySnapshotStore{}
	c := New[string]("test", time.Hour, 24*time.Hour, newTestLogger(), WithFallback[string](store))

	ok := func(ctx context.Context) (string, error) { return "fresh", nil }

	if _, err := c.Get(context.Background(), ok); err != nil {
		t.Fatalf("Get がエラーを返した: %v", err)
	}
	if store.saves != 1 {
		t.Errorf("スナップショット保存回数 = %d, want 1", store.saves)
	}
	if store.value != "fresh" {
		t.Errorf("保存された値 = %q, want %q", store.value, "fresh")
	}
}

func TestCache_BustForcesRefresh(t *testing.T) {
	c := New[string]("test", time.Hour, 24*time.Hour, newTestLogger())

	var calls int
	refresh := func(ctx context.Context) (string, error) {
		calls++
		return "value", nil
	}

	if _, err := c.Get(context.Background(), refresh); err != nil {
		t.Fatalf("初回の Get がエラーを返した: %v", err)
	}

	c.Bust()

	if _, err := c.Get(context.Background(), refresh); err != nil {
		t.Fatalf("破棄後の Get がエラーを返した: %v", err)
	}
	if calls != 2 {
		t.Errorf("refresh呼び出し数 = %d, want 2（破棄後は必ず再取得）", calls)
	}
}

func TestCache_ConcurrentGetsDeduplicateRefresh(t *testing.T) {
	c := New[string]("test", time.Hour, 24*time.Hour, newTestLogger())

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	refresh := func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "value", nil
	}

	const goroutines = 10
	var wg sync.WaitGroup
	results := make([]string, goroutines)
	errs := make([]error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Get(context.Background(), refresh)
		}(i)
	}

	<-started
	close(release)
	wg.Wait()

	for i := 0; i < goroutines; i++ {
		if errs[i] != nil {
			t.Fatalf("goroutine %d の Get がエラーを返した: %v", i, errs[i])
		}
		if results[i] != "value" {
			t.Errorf("goroutine %d の value = %q, want %q", i, results[i], "value")
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("refresh呼び出し数 = %d, want 1（singleflightでまとめる）", got)
	}
}
