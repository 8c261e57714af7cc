package calendar

import (
	"time"

	"github.com/brunosj/thfradio/internal/model"
)

// LiveStatus はライブティッカーに表示する現在・次回の番組情報。
// Currentがnilの場合は生放送がなく、アーカイブ再生中として扱う。
// NextはCurrentと同じ日の次番組、またはアーカイブ再生中の次回予定。
type LiveStatus struct {
	Current        *model.ScheduleEntry `json:"current,omitempty"`
	Next           *model.ScheduleEntry `json:"next,omitempty"`
	ArchivePlaying bool                 `json:"archive_playing"`
}

// CurrentEntry はnowを[start, end)に含む最初のエントリを返す。
// フィードの慣例として同一時刻を覆うエントリは高々1件の想定であり、
// 重複があった場合は並び順で先のものを採用する。
func CurrentEntry(entries []model.ScheduleEntry, now time.Time) *model.ScheduleEntry {
	for i := range entries {
		if entries[i].Covers(now) {
			return &entries[i]
		}
	}
	return nil
}

// NextEntry はnowより後に始まる最初のエントリを返す。
// entriesは開始時刻昇順である前提。
func NextEntry(entries []model.ScheduleEntry, now time.Time) *model.ScheduleEntry {
	for i := range entries {
		if entries[i].Start.After(now) {
			return &entries[i]
		}
	}
	return nil
}

// ResolveLive はスケジュールと現在時刻からライブティッカーの表示内容を決める。
// 生放送中でない場合はアーカイブ再生中とし、次回予定を添える。
// 生放送中の場合、同じ日に次番組があればそれも併せて返す
// （日をまたぐ次番組はティッカーに出さない）。
func ResolveLive(entries []model.ScheduleEntry, now time.Time) LiveStatus {
	current := CurrentEntry(entries, now)
	next := NextEntry(entries, now)

	if current == nil {
		return LiveStatus{Next: next, ArchivePlaying: true}
	}

	if next != nil && model.SameDay(current.Start, next.Start) {
		return LiveStatus{Current: current, Next: next}
	}
	return LiveStatus{Current: current}
}
