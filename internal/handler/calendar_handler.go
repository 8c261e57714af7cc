package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/brunosj/thfradio/internal/calendar"
	"github.com/brunosj/thfradio/internal/model"
)

// スケジュールのHTTPキャッシュ寿命。放送前の差し替えに追従できるよう
// カタログよりはるかに短くする。
const (
	calendarCacheMaxAge = 300 // 5分
	calendarCacheSWR    = 600 // 10分
)

// ScheduleService はカレンダーハンドラーが必要とするサービスインターフェース。
type ScheduleService interface {
	// GetSchedule は現在のウィンドウのスケジュールを返す。
	GetSchedule(ctx context.Context) ([]model.ScheduleEntry, error)
	// GetLive はライブティッカーの表示内容を返す。
	GetLive(ctx context.Context) (calendar.LiveStatus, error)
}

// CalendarHandler はスケジュールとライブティッカーのHTTPハンドラー。
type CalendarHandler struct {
	schedule ScheduleService
	logger   *slog.Logger
}

// NewCalendarHandler はCalendarHandlerを生成する。
func NewCalendarHandler(schedule ScheduleService, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{
		schedule: schedule,
		logger:   logger,
	}
}

// GetSchedule は今後のスケジュールウィンドウを返す。
// 全キャッシュ層が空の場合は空配列に縮退する。
// GET /api/calendar
func (h *CalendarHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	entries, err := h.schedule.GetSchedule(r.Context())
	if err != nil {
		h.logger.Error("スケジュールの取得に失敗しました",
			slog.String("error", err.Error()),
		)
		entries = []model.ScheduleEntry{}
	}

	writeCacheableJSON(w, entries, calendarCacheMaxAge, calendarCacheSWR)
}

// GetLive は現在放送中・次回の番組情報を返す。
// スケジュールが取得できない場合はアーカイブ再生中として返す。
// GET /api/live
func (h *CalendarHandler) GetLive(w http.ResponseWriter, r *http.Request) {
	status, err := h.schedule.GetLive(r.Context())
	if err != nil {
		h.logger.Error("ライブ情報の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		status = calendar.LiveStatus{ArchivePlaying: true}
	}

	// 現在時刻に依存するためHTTPレベルではキャッシュさせない
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(status)
}
