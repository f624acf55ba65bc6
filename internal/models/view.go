package models

import "time"

// MemberView is a member formatted for clients, without transport internals.
type MemberView struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}

// HostView is the populated host reference embedded in room payloads.
type HostView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoomView is the canonical public payload for a single room. TimerState is
// always freshly derived before the view is built, never a stale checkpoint.
type RoomView struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Host          HostView      `json:"host"`
	UserCount     int           `json:"userCount"`
	Users         []MemberView  `json:"users"`
	TimerSettings TimerSettings `json:"timerSettings"`
	TimerState    TimerState    `json:"timerState"`
	Version       int64         `json:"version"`
	CreatedAt     time.Time     `json:"createdAt"`
}
