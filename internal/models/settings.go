package models

import "time"

// SettingsID is the fixed primary key of the settings singleton.
const SettingsID = "default"

// Settings is the singleton user-settings record. Exactly one row exists;
// the repository seeds it from DefaultSettings on first access.
type Settings struct {
	ID                 string            `db:"id" json:"id"`
	Volume             float64           `db:"volume" json:"volume"`
	DefaultSaveSlot    int               `db:"default_save_slot" json:"default_save_slot"`
	ShowVirtualGamepad bool              `db:"show_virtual_gamepad" json:"show_virtual_gamepad"`
	ControlMappings    map[string]string `db:"control_mappings" json:"control_mappings"`
	LastUpdated        int64             `db:"last_updated" json:"last_updated"`
}

// TableName returns the table name for Settings.
func (Settings) TableName() string {
	return "settings"
}

// DefaultSettings returns the seed record used on first access.
func DefaultSettings() *Settings {
	return &Settings{
		ID:                 SettingsID,
		Volume:             1.0,
		DefaultSaveSlot:    0,
		ShowVirtualGamepad: false,
		ControlMappings:    map[string]string{},
		LastUpdated:        time.Now().Unix(),
	}
}

// LastUpdatedTime returns the LastUpdated as time.Time.
func (s *Settings) LastUpdatedTime() time.Time {
	return time.Unix(s.LastUpdated, 0)
}

// Clamp forces out-of-range fields back into their valid ranges. Import
// paths clamp bad values instead of rejecting the whole record.
func (s *Settings) Clamp() {
	if s.Volume < 0 {
		s.Volume = 0
	}
	if s.Volume > 1 {
		s.Volume = 1
	}
	if s.DefaultSaveSlot < MinSlot {
		s.DefaultSaveSlot = MinSlot
	}
	if s.DefaultSaveSlot > MaxSlot {
		s.DefaultSaveSlot = MaxSlot
	}
	if s.ControlMappings == nil {
		s.ControlMappings = map[string]string{}
	}
}

// SettingsPatch carries a partial settings update. Nil fields are left
// untouched by the merge.
type SettingsPatch struct {
	Volume             *float64          `json:"volume,omitempty"`
	DefaultSaveSlot    *int              `json:"default_save_slot,omitempty"`
	ShowVirtualGamepad *bool             `json:"show_virtual_gamepad,omitempty"`
	ControlMappings    map[string]string `json:"control_mappings,omitempty"`
}

// IsEmpty reports whether the patch specifies no fields at all.
func (p *SettingsPatch) IsEmpty() bool {
	return p.Volume == nil && p.DefaultSaveSlot == nil &&
		p.ShowVirtualGamepad == nil && p.ControlMappings == nil
}
