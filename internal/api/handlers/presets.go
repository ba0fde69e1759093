package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cfd-hedge-backtest/internal/api/models"
	"cfd-hedge-backtest/internal/config"
	"cfd-hedge-backtest/internal/strategy"
)

// PresetHandler serves the config presets found in a directory of YAML files.
type PresetHandler struct {
	presetDir string
	log       *zap.SugaredLogger
}

// NewPresetHandler creates a preset handler. An empty dir falls back to
// PRESET_DIR, then to examples/configs under the working directory.
func NewPresetHandler(dir string, log *zap.SugaredLogger) *PresetHandler {
	if dir == "" {
		dir = os.Getenv("PRESET_DIR")
	}
	if dir == "" {
		if wd, err := os.Getwd(); err == nil {
			dir = filepath.Join(wd, "examples", "configs")
		} else {
			dir = "./examples/configs"
		}
	}
	if absDir, err := filepath.Abs(dir); err == nil {
		dir = absDir
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	log.Infof("[Presets] using preset directory: %s", dir)
	return &PresetHandler{presetDir: dir, log: log}
}

// Dir returns the preset directory path
func (h *PresetHandler) Dir() string {
	return h.presetDir
}

// Load reads the preset with the given id (file name without .yaml).
// Presets are partial configs and are not validated here.
func (h *PresetHandler) Load(id string) (*config.Config, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return nil, fmt.Errorf("invalid preset name %q", id)
	}
	path := filepath.Join(h.presetDir, id+".yaml")
	cfg, err := config.LoadUnchecked(path)
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", id, err)
	}
	return cfg, nil
}

// ListPresets handles GET /api/v1/presets
func (h *PresetHandler) ListPresets(c *gin.Context) {
	presets := []models.PresetInfo{}

	entries, err := os.ReadDir(h.presetDir)
	if err != nil {
		h.log.Warnf("[Presets] failed to read preset directory %s: %v", h.presetDir, err)
		c.JSON(http.StatusOK, gin.H{"presets": presets})
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".yaml")
		cfg, err := h.Load(id)
		if err != nil {
			h.log.Warnf("[Presets] skipping %s: %v", entry.Name(), err)
			continue
		}
		presets = append(presets, presetInfo(id, filepath.Join(h.presetDir, entry.Name()), cfg))
	}

	c.JSON(http.StatusOK, gin.H{"presets": presets})
}

func presetInfo(id, path string, cfg *config.Config) models.PresetInfo {
	hs := cfg.HedgingStrategy
	policy := strategy.FromParams(cfg.Params().Hedge, cfg.LotSize)
	return models.PresetInfo{
		ID:             id,
		File:           path,
		Policy:         policy.Name(),
		VIXThreshold:   hs.VIXThreshold,
		HedgeRatio:     hs.HedgeRatio,
		InitialCapital: cfg.InitialCapital,
		CrisisPeriods:  len(cfg.CrisisPeriods),
	}
}
