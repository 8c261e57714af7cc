package model

import "time"

// ScheduleEntry はカレンダー由来の1番組枠を表す。
// カレンダーのリフレッシュごとに全件が置き換えられ、差分マージは行わない。
type ScheduleEntry struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
}

// Covers は指定時刻がこのエントリの [Start, End) 区間に含まれるかを返す。
func (e ScheduleEntry) Covers(t time.Time) bool {
	return !t.Before(e.Start) && t.Before(e.End)
}

// SameDay は2つの時刻が同一のカレンダー日に属するかを返す。
// ライブティッカーの「次の番組」併記判定に使用する。
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
