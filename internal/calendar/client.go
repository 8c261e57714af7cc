// Package calendar はICSフィードから番組スケジュールを取得する。
package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/brunosj/thfradio/internal/model"
	"github.com/brunosj/thfradio/internal/pace"
	"github.com/brunosj/thfradio/internal/security"
)

// Client はICSフィードのクライアント。
// 取得したイベントを「今日の始まり〜N週間後の終わり」の
// スライディングウィンドウで絞り込み、開始時刻昇順で返す。
type Client struct {
	httpClient  *http.Client
	pacer       *pace.Pacer
	sanitizer   security.ContentSanitizerService
	logger      *slog.Logger
	feedURL     string
	windowWeeks int
	now         func() time.Time // テスト用に差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, pacer *pace.Pacer, sanitizer security.ContentSanitizerService, logger *slog.Logger, feedURL string, windowWeeks int) *Client {
	return &Client{
		httpClient:  httpClient,
		pacer:       pacer,
		sanitizer:   sanitizer,
		logger:      logger,
		feedURL:     feedURL,
		windowWeeks: windowWeeks,
		now:         time.Now,
	}
}

// FetchWindow は現在のウィンドウに収まるスケジュールを返す。
// 取得・パースの失敗は型付きエラーとして返し、
// 前回値を返すかどうかは呼び出し元のキャッシュが判断する。
func (c *Client) FetchWindow(ctx context.Context) ([]model.ScheduleEntry, error) {
	if err := c.pacer.AwaitSlot(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("カレンダーフィードの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("カレンダーフィードがステータス %d を返しました", resp.StatusCode)
	}

	cal, err := ics.ParseCalendar(resp.Body)
	if err != nil {
		return nil, model.NewCalendarParseFailedError(err)
	}

	windowStart, windowEnd := c.window()
	entries := make([]model.ScheduleEntry, 0, len(cal.Events()))
	for _, event := range cal.Events() {
		entry, ok := c.normalizeEvent(event)
		if !ok {
			continue
		}
		// 開始と終了の両方がウィンドウ内のイベントだけを残す
		if entry.Start.Before(windowStart) || entry.End.After(windowEnd) {
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Start.Before(entries[j].Start)
	})

	c.logger.Info("スケジュールを取得しました",
		slog.Int("entry_count", len(entries)),
		slog.Time("window_start", windowStart),
		slog.Time("window_end", windowEnd),
	)

	return entries, nil
}

// window は「今日の始まり」から「Nweeks週間後の日の終わり」までの範囲を返す。
func (c *Client) window() (time.Time, time.Time) {
	now := c.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endDay := now.AddDate(0, 0, 7*c.windowWeeks)
	end := time.Date(endDay.Year(), endDay.Month(), endDay.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), endDay.Location())
	return start, end
}

// normalizeEvent はVEVENT1件をScheduleEntryへ変換する。
// 開始・終了を持たないイベントはスキップする。
// 説明文は任意編集可能なHTMLのため、サニタイズしてから載せる。
func (c *Client) normalizeEvent(event *ics.VEvent) (model.ScheduleEntry, bool) {
	start, err := event.GetStartAt()
	if err != nil {
		return model.ScheduleEntry{}, false
	}
	end, err := event.GetEndAt()
	if err != nil {
		return model.ScheduleEntry{}, false
	}

	entry := model.ScheduleEntry{Start: start, End: end}
	if p := event.GetProperty(ics.ComponentPropertySummary); p != nil {
		entry.Summary = p.Value
	}
	if p := event.GetProperty(ics.ComponentPropertyDescription); p != nil {
		entry.Description = c.sanitizer.Sanitize(p.Value)
	}
	if p := event.GetProperty(ics.ComponentPropertyLocation); p != nil {
		entry.Location = p.Value
	}
	return entry, true
}
