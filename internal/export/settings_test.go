package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/retroplay/backend/internal/db"
	apperrors "github.com/retroplay/backend/internal/errors"
	"github.com/retroplay/backend/internal/models"
)

func setupTestService(t *testing.T) (*Service, *db.Repository) {
	t.Helper()
	store, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	repo, err := db.InitStore(store)
	if err != nil {
		t.Fatalf("Failed to initialize test store: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return NewService(repo), repo
}

func TestExportImportRoundTrip(t *testing.T) {
	svc, repo := setupTestService(t)

	volume := 0.25
	gamepad := true
	if _, err := repo.UpdateSettings(&models.SettingsPatch{
		Volume:             &volume,
		ShowVirtualGamepad: &gamepad,
		ControlMappings:    map[string]string{"KeyZ": "A"},
	}); err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}

	var buf bytes.Buffer
	if err := svc.Export(&buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	var archive SettingsArchive
	if err := json.Unmarshal(buf.Bytes(), &archive); err != nil {
		t.Fatalf("Archive is not valid JSON: %v", err)
	}
	if archive.Version != ArchiveVersion {
		t.Errorf("Expected version %q, got %q", ArchiveVersion, archive.Version)
	}
	if archive.Checksum == "" {
		t.Error("Archive must carry a checksum")
	}

	// Perturb the stored settings, then restore from the archive.
	if _, err := repo.ResetSettings(); err != nil {
		t.Fatalf("ResetSettings failed: %v", err)
	}

	imported, err := svc.Import(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if imported.Volume != 0.25 || !imported.ShowVirtualGamepad {
		t.Errorf("Import did not restore the exported values: %+v", imported)
	}
	if imported.ControlMappings["KeyZ"] != "A" {
		t.Errorf("Control mappings not restored: %+v", imported.ControlMappings)
	}
}

func TestImportClampsOutOfRangeValues(t *testing.T) {
	svc, _ := setupTestService(t)

	archive := `{
		"version": "1",
		"settings": {
			"id": "default",
			"volume": 3.5,
			"default_save_slot": 42,
			"show_virtual_gamepad": false,
			"last_updated": 0
		}
	}`

	imported, err := svc.Import(strings.NewReader(archive))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if imported.Volume != 1.0 {
		t.Errorf("Volume not clamped: %v", imported.Volume)
	}
	if imported.DefaultSaveSlot != models.MaxSlot {
		t.Errorf("DefaultSaveSlot not clamped: %d", imported.DefaultSaveSlot)
	}
}

func TestImportRejectsMalformedArchive(t *testing.T) {
	svc, repo := setupTestService(t)

	before, _ := repo.GetSettings()

	cases := map[string]string{
		"truncated":       `{"version": "1", "settings": {`,
		"missing record":  `{"version": "1"}`,
		"unknown version": `{"version": "9", "settings": {"id": "default"}}`,
	}
	for name, payload := range cases {
		if _, err := svc.Import(strings.NewReader(payload)); !apperrors.Is(err, apperrors.ErrImportFailed) {
			t.Errorf("%s: expected IMPORT_FAILED, got %v", name, err)
		}
	}

	// A failed import never touches the store.
	after, _ := repo.GetSettings()
	if after.LastUpdated != before.LastUpdated {
		t.Error("Failed import must leave the settings record untouched")
	}
}

func TestImportRejectsChecksumMismatch(t *testing.T) {
	svc, repo := setupTestService(t)

	var buf bytes.Buffer
	if err := svc.Export(&buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	var archive SettingsArchive
	if err := json.Unmarshal(buf.Bytes(), &archive); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	archive.Settings.Volume = 0.5 // no longer matches the checksum

	tampered, _ := json.Marshal(&archive)
	if _, err := svc.Import(bytes.NewReader(tampered)); !apperrors.Is(err, apperrors.ErrImportFailed) {
		t.Errorf("Expected IMPORT_FAILED on checksum mismatch, got %v", err)
	}

	settings, _ := repo.GetSettings()
	if settings.Volume == 0.5 {
		t.Error("Tampered archive must not be applied")
	}
}
