package models

import "time"

// PlaySession records one play of a game. A session with EndedAt == 0 is
// still open; DurationSeconds stays 0 until the session is explicitly ended.
//
// Concurrent open sessions for the same game are allowed: nothing dedups
// StartPlaySession, so a tab abandoned mid-play leaves an open session behind.
type PlaySession struct {
	ID              string `db:"id" json:"id"`
	GameID          string `db:"game_id" json:"game_id"`
	StartedAt       int64  `db:"started_at" json:"started_at"`
	EndedAt         int64  `db:"ended_at" json:"ended_at,omitempty"`
	DurationSeconds int64  `db:"duration_seconds" json:"duration_seconds"`
}

// TableName returns the table name for PlaySession.
func (PlaySession) TableName() string {
	return "play_sessions"
}

// StartedAtTime returns the StartedAt as time.Time.
func (p *PlaySession) StartedAtTime() time.Time {
	return time.Unix(p.StartedAt, 0)
}

// IsOpen reports whether the session has not been ended yet.
func (p *PlaySession) IsOpen() bool {
	return p.EndedAt == 0
}
