// Package catalog supplies the game catalog consumed by the player UI.
// Catalog entries are correlation keys only: the persistence core never
// validates that a game id stored in saves, favorites, or sessions
// corresponds to a live catalog entry.
package catalog

import (
	"encoding/json"
	"os"
	"sort"

	apperrors "github.com/retroplay/backend/internal/errors"
)

// Game describes one catalog entry.
type Game struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Console  string `json:"console"`
	RomPath  string `json:"rom_path"`
	CoverURL string `json:"cover_url,omitempty"`
}

// Provider lists the games the player can launch.
type Provider interface {
	// Games returns all catalog entries sorted by title.
	Games() []Game
	// Game returns the entry for id, or nil when the catalog has none.
	Game(id string) *Game
}

// FileProvider serves a catalog loaded from a JSON file at startup.
type FileProvider struct {
	games []Game
	byID  map[string]*Game
}

// LoadFile reads a JSON array of games from path.
func LoadFile(path string) (*FileProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "failed to read catalog file", err)
	}
	return Parse(data)
}

// Parse builds a provider from raw catalog JSON.
func Parse(data []byte) (*FileProvider, error) {
	var games []Game
	if err := json.Unmarshal(data, &games); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "malformed catalog JSON", err)
	}

	sort.Slice(games, func(i, j int) bool {
		return games[i].Title < games[j].Title
	})

	p := &FileProvider{
		games: games,
		byID:  make(map[string]*Game, len(games)),
	}
	for i := range p.games {
		p.byID[p.games[i].ID] = &p.games[i]
	}
	return p, nil
}

// Games returns all catalog entries sorted by title.
func (p *FileProvider) Games() []Game {
	return p.games
}

// Game returns the entry for id, or nil when absent.
func (p *FileProvider) Game(id string) *Game {
	return p.byID[id]
}
