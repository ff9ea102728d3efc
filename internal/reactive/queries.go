package reactive

import (
	"github.com/retroplay/backend/internal/db"
	"github.com/retroplay/backend/internal/models"
)

// Queries is the read facade handed to a QueryFunc. Every read records the
// collection it touches, so the subscription watches exactly the
// collections its last execution used; an unrelated mutation does not
// trigger a recompute.
type Queries struct {
	repo    *db.Repository
	touched map[db.Collection]struct{}
}

func newQueries(repo *db.Repository) *Queries {
	return &Queries{
		repo:    repo,
		touched: make(map[db.Collection]struct{}),
	}
}

func (q *Queries) touch(col db.Collection) {
	q.touched[col] = struct{}{}
}

// SaveState returns the save record for (gameID, slot), or nil when empty.
func (q *Queries) SaveState(gameID string, slot int) (*models.SaveState, error) {
	q.touch(db.CollectionSaveStates)
	return q.repo.GetSaveState(gameID, slot)
}

// SaveStates returns all save records for a game ordered by slot.
func (q *Queries) SaveStates(gameID string) ([]*models.SaveState, error) {
	q.touch(db.CollectionSaveStates)
	return q.repo.ListSaveStates(gameID)
}

// CountSaveStates counts saves for a game, or all saves when gameID is "".
func (q *Queries) CountSaveStates(gameID string) (int, error) {
	q.touch(db.CollectionSaveStates)
	return q.repo.CountSaveStates(gameID)
}

// IsFavorite reports whether gameID is favorited.
func (q *Queries) IsFavorite(gameID string) (bool, error) {
	q.touch(db.CollectionFavorites)
	return q.repo.IsFavorite(gameID)
}

// Favorites returns all favorites, most recently added first.
func (q *Queries) Favorites() ([]*models.Favorite, error) {
	q.touch(db.CollectionFavorites)
	return q.repo.ListFavorites()
}

// RecentlyPlayedGames returns up to limit distinct game ids, most recently
// played first.
func (q *Queries) RecentlyPlayedGames(limit int) ([]string, error) {
	q.touch(db.CollectionPlaySessions)
	return q.repo.GetRecentlyPlayedGames(limit)
}

// PlaySessions returns all sessions for a game, newest first.
func (q *Queries) PlaySessions(gameID string) ([]*models.PlaySession, error) {
	q.touch(db.CollectionPlaySessions)
	return q.repo.ListPlaySessions(gameID)
}

// PlaySessionsBetween returns sessions for a game started inside [from, to].
func (q *Queries) PlaySessionsBetween(gameID string, from, to int64) ([]*models.PlaySession, error) {
	q.touch(db.CollectionPlaySessions)
	return q.repo.ListPlaySessionsBetween(gameID, from, to)
}

// Settings returns the settings singleton, seeding it when absent.
func (q *Queries) Settings() (*models.Settings, error) {
	q.touch(db.CollectionSettings)
	return q.repo.GetSettings()
}
