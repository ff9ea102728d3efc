package models

import "time"

// Favorite marks a game as favorited. GameID is unique; adding an existing
// favorite is a no-op at the repository layer.
type Favorite struct {
	ID      int64  `db:"id" json:"id"`
	GameID  string `db:"game_id" json:"game_id"`
	AddedAt int64  `db:"added_at" json:"added_at"`
}

// TableName returns the table name for Favorite.
func (Favorite) TableName() string {
	return "favorites"
}

// AddedAtTime returns the AddedAt as time.Time.
func (f *Favorite) AddedAtTime() time.Time {
	return time.Unix(f.AddedAt, 0)
}
