package handlers

import (
	"net/http"
	"os"

	"github.com/retroplay/backend/internal/emulator"
	apperrors "github.com/retroplay/backend/internal/errors"
)

// EmulatorHandler gates the one-shot emulator runtime bootstrap. The
// runtime bundle is initialized at most once per process; every later call
// observes the first run's outcome.
type EmulatorHandler struct {
	guard       *emulator.LoadGuard
	runtimePath string
}

// NewEmulatorHandler creates a new EmulatorHandler for the runtime bundle
// at runtimePath.
func NewEmulatorHandler(runtimePath string) *EmulatorHandler {
	return &EmulatorHandler{
		guard:       &emulator.LoadGuard{},
		runtimePath: runtimePath,
	}
}

// Load handles POST /api/emulator/load
func (h *EmulatorHandler) Load(w http.ResponseWriter, r *http.Request) {
	err := h.guard.EnsureLoaded(func() error {
		if _, statErr := os.Stat(h.runtimePath); statErr != nil {
			return apperrors.Wrap(apperrors.ErrNotFound, "emulator runtime bundle missing", statErr)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"loaded": true})
}

// Status handles GET /api/emulator
func (h *EmulatorHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"loaded": h.guard.Loaded()})
}
