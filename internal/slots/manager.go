// Package slots presents the bounded 0-9 save-slot model per game, with
// confirm-gated overwrite and delete. The store is never touched until a
// pending action is confirmed.
package slots

import (
	"sync"

	"github.com/retroplay/backend/internal/db"
	apperrors "github.com/retroplay/backend/internal/errors"
	"github.com/retroplay/backend/internal/models"
)

// SlotCount is the number of slots every game exposes.
const SlotCount = models.MaxSlot - models.MinSlot + 1

// SlotInfo describes one slot as the UI sees it.
type SlotInfo struct {
	Slot          int   `json:"slot"`
	Occupied      bool  `json:"occupied"`
	CreatedAt     int64 `json:"created_at,omitempty"`
	UpdatedAt     int64 `json:"updated_at,omitempty"`
	SizeBytes     int   `json:"size_bytes,omitempty"`
	HasScreenshot bool  `json:"has_screenshot,omitempty"`
}

// SaveOutcome is the result of a Save request. Either the write happened
// immediately (Written, into an empty slot) or the slot was occupied and a
// Pending confirmation gates the overwrite.
type SaveOutcome struct {
	Written bool
	ID      int64
	Pending *PendingSave
}

// Manager implements the slot protocol on top of the repository.
type Manager struct {
	repo *db.Repository
}

// NewManager creates a slot Manager.
func NewManager(repo *db.Repository) *Manager {
	return &Manager{repo: repo}
}

// Slots returns the state of all ten slots for a game.
func (m *Manager) Slots(gameID string) ([]SlotInfo, error) {
	if gameID == "" {
		return nil, apperrors.New(apperrors.ErrInvalid, "game id is required")
	}

	states, err := m.repo.ListSaveStates(gameID)
	if err != nil {
		return nil, err
	}

	infos := make([]SlotInfo, SlotCount)
	for i := range infos {
		infos[i].Slot = models.MinSlot + i
	}
	for _, s := range states {
		if !models.ValidSlot(s.Slot) {
			continue
		}
		infos[s.Slot-models.MinSlot] = SlotInfo{
			Slot:          s.Slot,
			Occupied:      true,
			CreatedAt:     s.CreatedAt,
			UpdatedAt:     s.UpdatedAt,
			SizeBytes:     len(s.Data),
			HasScreenshot: s.HasScreenshot(),
		}
	}
	return infos, nil
}

// Save writes data into an empty slot immediately. When the slot is
// occupied nothing is written; the returned outcome carries a PendingSave
// that commits the overwrite on Confirm and discards it on Cancel.
func (m *Manager) Save(gameID string, slot int, data, screenshot []byte) (*SaveOutcome, error) {
	if gameID == "" {
		return nil, apperrors.New(apperrors.ErrInvalid, "game id is required")
	}
	if !models.ValidSlot(slot) {
		return nil, apperrors.Newf(apperrors.ErrInvalid, "slot %d outside %d-%d", slot, models.MinSlot, models.MaxSlot)
	}
	if data == nil {
		return nil, apperrors.New(apperrors.ErrInvalid, "save data is required")
	}

	existing, err := m.repo.GetSaveState(gameID, slot)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &SaveOutcome{
			Pending: &PendingSave{
				manager:    m,
				gameID:     gameID,
				slot:       slot,
				data:       data,
				screenshot: screenshot,
			},
		}, nil
	}

	id, err := m.repo.UpsertSaveState(gameID, slot, data, screenshot)
	if err != nil {
		return nil, err
	}
	return &SaveOutcome{Written: true, ID: id}, nil
}

// Load returns the save payload in the slot. Loading an empty slot is a
// NOT_FOUND error, never a silent success; the load itself is
// non-destructive.
func (m *Manager) Load(gameID string, slot int) ([]byte, error) {
	if !models.ValidSlot(slot) {
		return nil, apperrors.Newf(apperrors.ErrInvalid, "slot %d outside %d-%d", slot, models.MinSlot, models.MaxSlot)
	}

	state, err := m.repo.GetSaveState(gameID, slot)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "no save in slot %d for game %s", slot, gameID)
	}
	return state.Data, nil
}

// Screenshot returns the screenshot blob in the slot, or nil when the save
// exists without one. An empty slot is a NOT_FOUND error.
func (m *Manager) Screenshot(gameID string, slot int) ([]byte, error) {
	if !models.ValidSlot(slot) {
		return nil, apperrors.Newf(apperrors.ErrInvalid, "slot %d outside %d-%d", slot, models.MinSlot, models.MaxSlot)
	}

	state, err := m.repo.GetSaveState(gameID, slot)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "no save in slot %d for game %s", slot, gameID)
	}
	return state.Screenshot, nil
}

// Delete prepares deletion of an occupied slot. Deletion always requires
// confirmation; nothing is removed until Confirm. Deleting an empty slot is
// a NOT_FOUND error since the UI never offers it.
func (m *Manager) Delete(gameID string, slot int) (*PendingDelete, error) {
	if !models.ValidSlot(slot) {
		return nil, apperrors.Newf(apperrors.ErrInvalid, "slot %d outside %d-%d", slot, models.MinSlot, models.MaxSlot)
	}

	state, err := m.repo.GetSaveState(gameID, slot)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "no save in slot %d for game %s", slot, gameID)
	}
	return &PendingDelete{manager: m, gameID: gameID, slot: slot}, nil
}

// PendingSave is a single-use confirmation token for overwriting an
// occupied slot.
type PendingSave struct {
	manager    *Manager
	gameID     string
	slot       int
	data       []byte
	screenshot []byte

	mu       sync.Mutex
	resolved bool
}

// GameID returns the game the pending save targets.
func (p *PendingSave) GameID() string { return p.gameID }

// Slot returns the slot the pending save targets.
func (p *PendingSave) Slot() int { return p.slot }

// Confirm commits the overwrite and returns the record's primary key.
// A token resolves exactly once; confirming again is an error.
func (p *PendingSave) Confirm() (int64, error) {
	p.mu.Lock()
	if p.resolved {
		p.mu.Unlock()
		return 0, apperrors.New(apperrors.ErrInvalid, "pending save already resolved")
	}
	p.resolved = true
	p.mu.Unlock()

	return p.manager.repo.UpsertSaveState(p.gameID, p.slot, p.data, p.screenshot)
}

// Cancel discards the pending overwrite; the stored save is unchanged.
func (p *PendingSave) Cancel() {
	p.mu.Lock()
	p.resolved = true
	p.data = nil
	p.screenshot = nil
	p.mu.Unlock()
}

// PendingDelete is a single-use confirmation token for deleting a slot.
type PendingDelete struct {
	manager *Manager
	gameID  string
	slot    int

	mu       sync.Mutex
	resolved bool
}

// GameID returns the game the pending delete targets.
func (p *PendingDelete) GameID() string { return p.gameID }

// Slot returns the slot the pending delete targets.
func (p *PendingDelete) Slot() int { return p.slot }

// Confirm removes the save. The underlying delete is a no-op success if the
// slot was emptied by another path in the meantime.
func (p *PendingDelete) Confirm() error {
	p.mu.Lock()
	if p.resolved {
		p.mu.Unlock()
		return apperrors.New(apperrors.ErrInvalid, "pending delete already resolved")
	}
	p.resolved = true
	p.mu.Unlock()

	return p.manager.repo.DeleteSaveState(p.gameID, p.slot)
}

// Cancel discards the pending delete; the stored save is unchanged.
func (p *PendingDelete) Cancel() {
	p.mu.Lock()
	p.resolved = true
	p.mu.Unlock()
}
