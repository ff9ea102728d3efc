// Package models provides data model definitions for the RetroPlay core.
package models

import "time"

// Slot bounds for save states. Every game exposes slots 0 through 9.
const (
	MinSlot = 0
	MaxSlot = 9
)

// ValidSlot reports whether slot is inside the 0-9 range.
func ValidSlot(slot int) bool {
	return slot >= MinSlot && slot <= MaxSlot
}

// SaveState represents an emulator save payload bound to a (game, slot) pair.
// The Data and Screenshot blobs are opaque to every layer above the
// repository; ownership transfers to the store on upsert.
type SaveState struct {
	ID         int64  `db:"id" json:"id"`
	GameID     string `db:"game_id" json:"game_id"`
	Slot       int    `db:"slot" json:"slot"`
	Data       []byte `db:"data" json:"-"`
	Screenshot []byte `db:"screenshot" json:"-"`
	CreatedAt  int64  `db:"created_at" json:"created_at"`
	UpdatedAt  int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for SaveState.
func (SaveState) TableName() string {
	return "save_states"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (s *SaveState) CreatedAtTime() time.Time {
	return time.Unix(s.CreatedAt, 0)
}

// UpdatedAtTime returns the UpdatedAt as time.Time.
func (s *SaveState) UpdatedAtTime() time.Time {
	return time.Unix(s.UpdatedAt, 0)
}

// Touch updates the UpdatedAt timestamp.
func (s *SaveState) Touch() {
	s.UpdatedAt = time.Now().Unix()
}

// HasScreenshot reports whether a screenshot blob accompanies the save.
func (s *SaveState) HasScreenshot() bool {
	return len(s.Screenshot) > 0
}
