// Package db provides repository operations for the RetroPlay collections.
package db

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	apperrors "github.com/retroplay/backend/internal/errors"
	"github.com/retroplay/backend/internal/models"
	"github.com/retroplay/backend/internal/uuid"
)

// Repository is the only sanctioned entry point for mutating the store.
// Every operation is a single conceptually-atomic step; change events are
// published to registered notifiers only after the write commits.
type Repository struct {
	db *sql.DB

	// Prepared statement cache for frequently used queries.
	// Statements are prepared on first use and cached for reuse.
	stmtCache sync.Map // map[string]*sql.Stmt

	notifyMu  sync.RWMutex
	notifiers []Notifier
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InitStore migrates the store to the current schema version and seeds the
// settings singleton on first-ever creation.
func InitStore(d *DB) (*Repository, error) {
	mig := NewMigrator(d.DB)
	if err := mig.Initialize(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrMigration, "failed to initialize migrations", err)
	}
	if err := mig.Up(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrMigration, "failed to apply migrations", err)
	}
	repo := NewRepository(d.DB)
	if _, err := repo.GetSettings(); err != nil {
		return nil, err
	}
	return repo, nil
}

// AddNotifier registers a change-event receiver. Mutations committed after
// registration are delivered; there is no replay of earlier changes.
func (r *Repository) AddNotifier(n Notifier) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	r.notifiers = append(r.notifiers, n)
}

// notify publishes a collection-changed event after a committed write.
func (r *Repository) notify(col Collection) {
	r.notifyMu.RLock()
	defer r.notifyMu.RUnlock()
	for _, n := range r.notifiers {
		n.CollectionChanged(col)
	}
}

// PrepareStmt gets or creates a prepared statement from cache.
func (r *Repository) PrepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := r.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := r.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		// Another goroutine already prepared this, close our duplicate
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}

	return stmt, nil
}

// Close closes all cached prepared statements.
func (r *Repository) Close() error {
	var firstErr error
	r.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// isUniqueViolation reports whether err is a SQLite unique-constraint error.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if stderrors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT,
			sqlite3.SQLITE_CONSTRAINT_UNIQUE,
			sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return false
}

func validateSlot(slot int) error {
	if !models.ValidSlot(slot) {
		return apperrors.Newf(apperrors.ErrInvalid, "slot %d outside %d-%d", slot, models.MinSlot, models.MaxSlot)
	}
	return nil
}

// =====================================================
// SaveState Operations
// =====================================================

// UpsertSaveState writes data (and an optional screenshot) into the slot for
// gameID, creating the record on first save and updating it in place on
// every subsequent save to the same slot. CreatedAt is preserved across
// updates. Returns the record's primary key.
//
// The caller transfers ownership of data and screenshot; they must not be
// mutated after the call.
func (r *Repository) UpsertSaveState(gameID string, slot int, data, screenshot []byte) (int64, error) {
	if gameID == "" {
		return 0, apperrors.New(apperrors.ErrInvalid, "game id is required")
	}
	if err := validateSlot(slot); err != nil {
		return 0, err
	}
	if data == nil {
		return 0, apperrors.New(apperrors.ErrInvalid, "save data is required")
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	var id int64
	var createdAt int64
	err = tx.QueryRow(
		"SELECT id, created_at FROM save_states WHERE game_id = ? AND slot = ? LIMIT 1",
		gameID, slot,
	).Scan(&id, &createdAt)
	switch {
	case err == sql.ErrNoRows:
		res, err := tx.Exec(
			"INSERT INTO save_states (game_id, slot, data, screenshot, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
			gameID, slot, data, screenshot, now, now,
		)
		if err != nil {
			return 0, apperrors.Wrap(apperrors.ErrDatabase, "failed to insert save state", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return 0, apperrors.Wrap(apperrors.ErrDatabase, "failed to read save state id", err)
		}
	case err != nil:
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "failed to look up save state", err)
	default:
		if _, err := tx.Exec(
			"UPDATE save_states SET data = ?, screenshot = ?, updated_at = ? WHERE id = ?",
			data, screenshot, now, id,
		); err != nil {
			return 0, apperrors.Wrap(apperrors.ErrDatabase, "failed to update save state", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "failed to commit save state", err)
	}
	r.notify(CollectionSaveStates)
	return id, nil
}

// GetSaveState returns the save record for the exact (gameID, slot) pair,
// or (nil, nil) when the slot is empty. Absence is not an error.
func (r *Repository) GetSaveState(gameID string, slot int) (*models.SaveState, error) {
	if err := validateSlot(slot); err != nil {
		return nil, err
	}

	query := `
	SELECT id, game_id, slot, data, screenshot, created_at, updated_at
	FROM save_states WHERE game_id = ? AND slot = ? LIMIT 1
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to prepare save state lookup", err)
	}

	var s models.SaveState
	err = stmt.QueryRow(gameID, slot).Scan(
		&s.ID, &s.GameID, &s.Slot, &s.Data, &s.Screenshot, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read save state", err)
	}
	return &s, nil
}

// ListSaveStates returns all save records for a game ordered by slot.
func (r *Repository) ListSaveStates(gameID string) ([]*models.SaveState, error) {
	query := `
	SELECT id, game_id, slot, data, screenshot, created_at, updated_at
	FROM save_states WHERE game_id = ? ORDER BY slot
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to prepare save state list", err)
	}

	rows, err := stmt.Query(gameID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to list save states", err)
	}
	defer rows.Close()

	var states []*models.SaveState
	for rows.Next() {
		var s models.SaveState
		if err := rows.Scan(&s.ID, &s.GameID, &s.Slot, &s.Data, &s.Screenshot, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to scan save state", err)
		}
		states = append(states, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to iterate save states", err)
	}
	return states, nil
}

// DeleteSaveState deletes the record in the slot for gameID. Deleting an
// absent slot is a no-op success.
func (r *Repository) DeleteSaveState(gameID string, slot int) error {
	if err := validateSlot(slot); err != nil {
		return err
	}

	res, err := r.db.Exec("DELETE FROM save_states WHERE game_id = ? AND slot = ?", gameID, slot)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to delete save state", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		r.notify(CollectionSaveStates)
	}
	return nil
}

// DeleteSaveStatesForGame deletes every save record for a game.
func (r *Repository) DeleteSaveStatesForGame(gameID string) error {
	res, err := r.db.Exec("DELETE FROM save_states WHERE game_id = ?", gameID)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to delete game save states", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		r.notify(CollectionSaveStates)
	}
	return nil
}

// DeleteAllSaveStates clears the whole save state collection.
func (r *Repository) DeleteAllSaveStates() error {
	res, err := r.db.Exec("DELETE FROM save_states")
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to clear save states", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		r.notify(CollectionSaveStates)
	}
	return nil
}

// CountSaveStates returns the number of save records for a game, or for the
// whole collection when gameID is empty.
func (r *Repository) CountSaveStates(gameID string) (int, error) {
	var count int
	var err error
	if gameID == "" {
		err = r.db.QueryRow("SELECT COUNT(*) FROM save_states").Scan(&count)
	} else {
		err = r.db.QueryRow("SELECT COUNT(*) FROM save_states WHERE game_id = ?", gameID).Scan(&count)
	}
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "failed to count save states", err)
	}
	return count, nil
}

// =====================================================
// Favorite Operations
// =====================================================

// ToggleFavorite inverts the favorite state of gameID and returns the new
// state: true after adding, false after removing. A duplicate-insert race is
// treated as already-favorited, never surfaced as a constraint error.
func (r *Repository) ToggleFavorite(gameID string) (bool, error) {
	if gameID == "" {
		return false, apperrors.New(apperrors.ErrInvalid, "game id is required")
	}

	fav, err := r.getFavorite(gameID)
	if err != nil {
		return false, err
	}
	if fav != nil {
		if _, err := r.db.Exec("DELETE FROM favorites WHERE game_id = ?", gameID); err != nil {
			return false, apperrors.Wrap(apperrors.ErrDatabase, "failed to remove favorite", err)
		}
		r.notify(CollectionFavorites)
		return false, nil
	}

	_, err = r.db.Exec(
		"INSERT INTO favorites (game_id, added_at) VALUES (?, ?)",
		gameID, time.Now().Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			// Raced with another add; the game is favorited either way.
			return true, nil
		}
		return false, apperrors.Wrap(apperrors.ErrDatabase, "failed to add favorite", err)
	}
	r.notify(CollectionFavorites)
	return true, nil
}

// AddFavorite marks gameID as a favorite. Adding an existing favorite is a
// no-op success.
func (r *Repository) AddFavorite(gameID string) error {
	if gameID == "" {
		return apperrors.New(apperrors.ErrInvalid, "game id is required")
	}
	_, err := r.db.Exec(
		"INSERT INTO favorites (game_id, added_at) VALUES (?, ?)",
		gameID, time.Now().Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to add favorite", err)
	}
	r.notify(CollectionFavorites)
	return nil
}

// RemoveFavorite unmarks gameID. Removing an absent favorite is a no-op.
func (r *Repository) RemoveFavorite(gameID string) error {
	res, err := r.db.Exec("DELETE FROM favorites WHERE game_id = ?", gameID)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to remove favorite", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		r.notify(CollectionFavorites)
	}
	return nil
}

// IsFavorite reports whether gameID is currently favorited.
func (r *Repository) IsFavorite(gameID string) (bool, error) {
	fav, err := r.getFavorite(gameID)
	if err != nil {
		return false, err
	}
	return fav != nil, nil
}

// ListFavorites returns all favorites, most recently added first.
func (r *Repository) ListFavorites() ([]*models.Favorite, error) {
	query := `SELECT id, game_id, added_at FROM favorites ORDER BY added_at DESC, id DESC`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to prepare favorite list", err)
	}

	rows, err := stmt.Query()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to list favorites", err)
	}
	defer rows.Close()

	var favorites []*models.Favorite
	for rows.Next() {
		var f models.Favorite
		if err := rows.Scan(&f.ID, &f.GameID, &f.AddedAt); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to scan favorite", err)
		}
		favorites = append(favorites, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to iterate favorites", err)
	}
	return favorites, nil
}

func (r *Repository) getFavorite(gameID string) (*models.Favorite, error) {
	query := `SELECT id, game_id, added_at FROM favorites WHERE game_id = ? LIMIT 1`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to prepare favorite lookup", err)
	}

	var f models.Favorite
	err = stmt.QueryRow(gameID).Scan(&f.ID, &f.GameID, &f.AddedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read favorite", err)
	}
	return &f, nil
}

// =====================================================
// PlaySession Operations
// =====================================================

// StartPlaySession records the beginning of a play. Concurrent opens for
// the same game are not deduplicated; each call creates a new open session.
func (r *Repository) StartPlaySession(gameID string) (*models.PlaySession, error) {
	if gameID == "" {
		return nil, apperrors.New(apperrors.ErrInvalid, "game id is required")
	}

	session := &models.PlaySession{
		ID:        uuid.New(),
		GameID:    gameID,
		StartedAt: time.Now().Unix(),
	}
	_, err := r.db.Exec(
		"INSERT INTO play_sessions (id, game_id, started_at, ended_at, duration_seconds) VALUES (?, ?, ?, NULL, 0)",
		session.ID, session.GameID, session.StartedAt,
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to start play session", err)
	}
	r.notify(CollectionPlaySessions)
	return session, nil
}

// EndPlaySession closes an open session, computing its duration from the
// wall-clock delta. Ending an unknown or already-ended session is a no-op.
func (r *Repository) EndPlaySession(sessionID string) error {
	var startedAt int64
	err := r.db.QueryRow(
		"SELECT started_at FROM play_sessions WHERE id = ? AND ended_at IS NULL",
		sessionID,
	).Scan(&startedAt)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to look up play session", err)
	}

	endedAt := time.Now().Unix()
	duration := endedAt - startedAt
	if duration < 0 {
		duration = 0
	}
	_, err = r.db.Exec(
		"UPDATE play_sessions SET ended_at = ?, duration_seconds = ? WHERE id = ?",
		endedAt, duration, sessionID,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to end play session", err)
	}
	r.notify(CollectionPlaySessions)
	return nil
}

// GetRecentlyPlayedGames returns up to limit distinct game ids ordered by
// most recent session start. Sessions are scanned newest-first and stopped
// as soon as limit unique ids are collected.
func (r *Repository) GetRecentlyPlayedGames(limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `SELECT game_id FROM play_sessions ORDER BY started_at DESC, rowid DESC`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to prepare recent games query", err)
	}

	rows, err := stmt.Query()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to query recent games", err)
	}
	defer rows.Close()

	seen := make(map[string]bool, limit)
	var games []string
	for rows.Next() {
		var gameID string
		if err := rows.Scan(&gameID); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to scan session", err)
		}
		if seen[gameID] {
			continue
		}
		seen[gameID] = true
		games = append(games, gameID)
		if len(games) == limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to iterate sessions", err)
	}
	return games, nil
}

// ListPlaySessions returns all sessions for a game, newest first.
func (r *Repository) ListPlaySessions(gameID string) ([]*models.PlaySession, error) {
	query := `
	SELECT id, game_id, started_at, ended_at, duration_seconds
	FROM play_sessions WHERE game_id = ? ORDER BY started_at DESC, rowid DESC
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to prepare session list", err)
	}

	rows, err := stmt.Query(gameID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to list sessions", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

// ListPlaySessionsBetween returns sessions for a game whose start time falls
// in [from, to], newest first. Uses the (game_id, started_at) index.
func (r *Repository) ListPlaySessionsBetween(gameID string, from, to int64) ([]*models.PlaySession, error) {
	query := `
	SELECT id, game_id, started_at, ended_at, duration_seconds
	FROM play_sessions
	WHERE game_id = ? AND started_at BETWEEN ? AND ?
	ORDER BY started_at DESC, rowid DESC
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to prepare session range query", err)
	}

	rows, err := stmt.Query(gameID, from, to)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to query session range", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

func scanSessions(rows *sql.Rows) ([]*models.PlaySession, error) {
	var sessions []*models.PlaySession
	for rows.Next() {
		var s models.PlaySession
		var endedAt sql.NullInt64
		if err := rows.Scan(&s.ID, &s.GameID, &s.StartedAt, &endedAt, &s.DurationSeconds); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to scan session", err)
		}
		if endedAt.Valid {
			s.EndedAt = endedAt.Int64
		}
		sessions = append(sessions, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to iterate sessions", err)
	}
	return sessions, nil
}

// =====================================================
// Settings Operations
// =====================================================

// GetSettings returns the settings singleton, creating it from defaults on
// first access.
func (r *Repository) GetSettings() (*models.Settings, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	settings, err := getSettingsTx(tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to commit settings read", err)
	}
	return settings, nil
}

// UpdateSettings merges the given partial fields into the singleton and
// refreshes LastUpdated, leaving unspecified fields untouched. LastUpdated
// strictly increases across updates.
func (r *Repository) UpdateSettings(patch *models.SettingsPatch) (*models.Settings, error) {
	if patch == nil || patch.IsEmpty() {
		return r.GetSettings()
	}
	if patch.Volume != nil && (*patch.Volume < 0 || *patch.Volume > 1) {
		return nil, apperrors.Newf(apperrors.ErrInvalid, "volume %v outside 0.0-1.0", *patch.Volume)
	}
	if patch.DefaultSaveSlot != nil && !models.ValidSlot(*patch.DefaultSaveSlot) {
		return nil, apperrors.Newf(apperrors.ErrInvalid, "default save slot %d outside %d-%d",
			*patch.DefaultSaveSlot, models.MinSlot, models.MaxSlot)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	settings, err := getSettingsTx(tx)
	if err != nil {
		return nil, err
	}

	if patch.Volume != nil {
		settings.Volume = *patch.Volume
	}
	if patch.DefaultSaveSlot != nil {
		settings.DefaultSaveSlot = *patch.DefaultSaveSlot
	}
	if patch.ShowVirtualGamepad != nil {
		settings.ShowVirtualGamepad = *patch.ShowVirtualGamepad
	}
	if patch.ControlMappings != nil {
		settings.ControlMappings = patch.ControlMappings
	}
	settings.LastUpdated = nextTimestamp(settings.LastUpdated)

	if err := writeSettingsTx(tx, settings); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to commit settings update", err)
	}
	r.notify(CollectionSettings)
	return settings, nil
}

// ResetSettings restores the singleton to defaults. The record is never
// deleted, only rewritten.
func (r *Repository) ResetSettings() (*models.Settings, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	current, err := getSettingsTx(tx)
	if err != nil {
		return nil, err
	}
	settings := models.DefaultSettings()
	settings.LastUpdated = nextTimestamp(current.LastUpdated)

	if err := writeSettingsTx(tx, settings); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to commit settings reset", err)
	}
	r.notify(CollectionSettings)
	return settings, nil
}

// ReplaceSettings overwrites the singleton with the given record, clamping
// out-of-range fields instead of rejecting them. Used by settings import.
func (r *Repository) ReplaceSettings(settings *models.Settings) (*models.Settings, error) {
	if settings == nil {
		return nil, apperrors.New(apperrors.ErrInvalid, "settings record is required")
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	current, err := getSettingsTx(tx)
	if err != nil {
		return nil, err
	}

	replacement := *settings
	replacement.ID = models.SettingsID
	replacement.Clamp()
	replacement.LastUpdated = nextTimestamp(current.LastUpdated)

	if err := writeSettingsTx(tx, &replacement); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to commit settings replace", err)
	}
	r.notify(CollectionSettings)
	return &replacement, nil
}

// getSettingsTx reads the singleton inside tx, seeding it from defaults
// when absent.
func getSettingsTx(tx *sql.Tx) (*models.Settings, error) {
	var s models.Settings
	var mappings string
	var gamepad int
	err := tx.QueryRow(
		"SELECT id, volume, default_save_slot, show_virtual_gamepad, control_mappings, last_updated FROM settings WHERE id = ?",
		models.SettingsID,
	).Scan(&s.ID, &s.Volume, &s.DefaultSaveSlot, &gamepad, &mappings, &s.LastUpdated)
	if err == sql.ErrNoRows {
		seed := models.DefaultSettings()
		if err := insertSettingsTx(tx, seed); err != nil {
			return nil, err
		}
		return seed, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read settings", err)
	}

	s.ShowVirtualGamepad = gamepad != 0
	if err := json.Unmarshal([]byte(mappings), &s.ControlMappings); err != nil {
		// A corrupt mapping blob loses the mappings, not the settings.
		s.ControlMappings = map[string]string{}
	}
	if s.ControlMappings == nil {
		s.ControlMappings = map[string]string{}
	}
	return &s, nil
}

func insertSettingsTx(tx *sql.Tx, s *models.Settings) error {
	mappings, err := json.Marshal(s.ControlMappings)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to encode control mappings", err)
	}
	_, err = tx.Exec(
		"INSERT INTO settings (id, volume, default_save_slot, show_virtual_gamepad, control_mappings, last_updated) VALUES (?, ?, ?, ?, ?, ?)",
		s.ID, s.Volume, s.DefaultSaveSlot, boolToInt(s.ShowVirtualGamepad), string(mappings), s.LastUpdated,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to seed settings", err)
	}
	return nil
}

func writeSettingsTx(tx *sql.Tx, s *models.Settings) error {
	mappings, err := json.Marshal(s.ControlMappings)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to encode control mappings", err)
	}
	_, err = tx.Exec(
		"UPDATE settings SET volume = ?, default_save_slot = ?, show_virtual_gamepad = ?, control_mappings = ?, last_updated = ? WHERE id = ?",
		s.Volume, s.DefaultSaveSlot, boolToInt(s.ShowVirtualGamepad), string(mappings), s.LastUpdated, s.ID,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to write settings", err)
	}
	return nil
}

// nextTimestamp returns the current unix time, bumped past prev so that
// LastUpdated strictly increases even within the same second.
func nextTimestamp(prev int64) int64 {
	now := time.Now().Unix()
	if now <= prev {
		return prev + 1
	}
	return now
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
