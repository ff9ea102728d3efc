// Package export provides settings export/import as a JSON archive.
package export

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"time"

	"github.com/retroplay/backend/internal/db"
	apperrors "github.com/retroplay/backend/internal/errors"
	"github.com/retroplay/backend/internal/models"
)

// ArchiveVersion identifies the archive layout.
const ArchiveVersion = "1"

// SettingsArchive is the downloadable settings file. The checksum covers
// the canonical JSON encoding of the settings record.
type SettingsArchive struct {
	Version    string           `json:"version"`
	ExportedAt time.Time        `json:"exported_at"`
	Checksum   string           `json:"checksum"`
	Settings   *models.Settings `json:"settings"`
}

// Service provides settings export/import on top of the repository.
type Service struct {
	repo *db.Repository
}

// NewService creates a new export Service.
func NewService(repo *db.Repository) *Service {
	return &Service{repo: repo}
}

// Export writes the current settings record as a JSON archive.
func (s *Service) Export(w io.Writer) error {
	settings, err := s.repo.GetSettings()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrExportFailed, "failed to read settings", err)
	}

	checksum, err := settingsChecksum(settings)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrExportFailed, "failed to checksum settings", err)
	}

	archive := SettingsArchive{
		Version:    ArchiveVersion,
		ExportedAt: time.Now().UTC(),
		Checksum:   checksum,
		Settings:   settings,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&archive); err != nil {
		return apperrors.Wrap(apperrors.ErrExportFailed, "failed to write archive", err)
	}
	return nil
}

// Import reads a settings archive and replaces the singleton. Out-of-range
// fields are clamped rather than rejecting the whole import; a malformed
// archive or checksum mismatch fails without touching the store.
func (s *Service) Import(r io.Reader) (*models.Settings, error) {
	var archive SettingsArchive
	if err := json.NewDecoder(r).Decode(&archive); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrImportFailed, "malformed settings archive", err)
	}
	if archive.Settings == nil {
		return nil, apperrors.New(apperrors.ErrImportFailed, "archive carries no settings record")
	}
	if archive.Version != ArchiveVersion {
		return nil, apperrors.Newf(apperrors.ErrImportFailed, "unsupported archive version %q", archive.Version)
	}

	if archive.Checksum != "" {
		checksum, err := settingsChecksum(archive.Settings)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrImportFailed, "failed to checksum settings", err)
		}
		if checksum != archive.Checksum {
			return nil, apperrors.New(apperrors.ErrImportFailed, "archive checksum mismatch")
		}
	}

	return s.repo.ReplaceSettings(archive.Settings)
}

func settingsChecksum(settings *models.Settings) (string, error) {
	payload, err := json.Marshal(settings)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(payload)
	return hex.EncodeToString(hash[:]), nil
}
