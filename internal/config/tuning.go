package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/fcal-reco/beamcal/internal/background"
	"github.com/fcal-reco/beamcal/internal/candidate"
	"github.com/fcal-reco/beamcal/internal/cuts"
	"github.com/fcal-reco/beamcal/internal/geometry"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/beamcal.defaults.json"

// TuningConfig is the root configuration of the reconstruction. Every
// field is optional; the Get* accessors supply defaults for missing ones.
type TuningConfig struct {
	// Background
	BackgroundMethod *string  `json:"background_method,omitempty"` // Parametrised, Pregenerated or Averaged
	BackgroundFiles  []string `json:"background_files,omitempty"`
	NumberOfBX       *int     `json:"number_of_bx,omitempty"`
	RandomSeed       *uint64  `json:"random_seed,omitempty"`

	// Cuts
	StartingRings       []int     `json:"starting_rings,omitempty"`
	PadThresholds       []float64 `json:"pad_thresholds,omitempty"`
	ClusterThresholds   []float64 `json:"cluster_thresholds,omitempty"`
	MinimumTowerSize    *int      `json:"minimum_tower_size,omitempty"`
	StartLookingInLayer *int      `json:"start_looking_in_layer,omitempty"`
	UseConstPadCuts     *bool     `json:"use_const_pad_cuts,omitempty"`
	SigmaCut            *float64  `json:"sigma_cut,omitempty"`

	// Candidates
	CalibrationFactor *float64 `json:"calibration_factor,omitempty"`
	MatchThetaMrad    *float64 `json:"match_theta_mrad,omitempty"`
	MatchPhiDeg       *float64 `json:"match_phi_deg,omitempty"`

	// Processing
	Workers      *int     `json:"workers,omitempty"`
	HitMinEnergy *float64 `json:"hit_min_energy,omitempty"`

	Geometry *GeometryConfig `json:"geometry,omitempty"`
	LCIO     *LCIOConfig     `json:"lcio,omitempty"`
}

// GeometryConfig describes the pad layout shared by both sides.
type GeometryConfig struct {
	Layers            *int      `json:"layers,omitempty"`
	RingRadii         []float64 `json:"ring_radii,omitempty"` // ring edges, mm
	SectorsPerRing    []int     `json:"sectors_per_ring,omitempty"`
	ZDistanceMM       *float64  `json:"z_distance_mm,omitempty"`
	CrossingAngleMrad *float64  `json:"crossing_angle_mrad,omitempty"`
	PhiOffsetDeg      *float64  `json:"phi_offset_deg,omitempty"`
	LayerThicknessMM  *float64  `json:"layer_thickness_mm,omitempty"`
}

// LCIOConfig names the collections and cell-ID fields used for event I/O.
type LCIOConfig struct {
	HitCollection     *string `json:"hit_collection,omitempty"`
	MCCollection      *string `json:"mc_collection,omitempty"`
	ClusterCollection *string `json:"cluster_collection,omitempty"`
	RecoCollection    *string `json:"reco_collection,omitempty"`
	SideField         *string `json:"side_field,omitempty"`
	LayerField        *string `json:"layer_field,omitempty"`
	RingField         *string `json:"ring_field,omitempty"`
	SectorField       *string `json:"sector_field,omitempty"`
	LayerOffset       *int    `json:"layer_offset,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file fall back to their defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. Panics if the file cannot be loaded, intended for
// test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that are set. Table consistency between
// starting rings and thresholds is checked after defaults are applied.
func (c *TuningConfig) Validate() error {
	if c.BackgroundMethod != nil {
		if _, err := background.ParseMethod(*c.BackgroundMethod); err != nil {
			return err
		}
	}
	if c.NumberOfBX != nil && *c.NumberOfBX < 1 {
		return fmt.Errorf("%w: number_of_bx must be at least 1, got %d", cuts.ErrInvalidConfiguration, *c.NumberOfBX)
	}
	rings, pads, clusters := c.GetStartingRings(), c.GetPadThresholds(), c.GetClusterThresholds()
	if len(rings) != len(pads) || len(rings) != len(clusters) {
		return fmt.Errorf("%w: starting_rings, pad_thresholds and cluster_thresholds have lengths %d, %d and %d",
			cuts.ErrInvalidConfiguration, len(rings), len(pads), len(clusters))
	}
	if c.SigmaCut != nil && *c.SigmaCut < 0 {
		return fmt.Errorf("%w: sigma_cut must be non-negative, got %f", cuts.ErrInvalidConfiguration, *c.SigmaCut)
	}
	if c.CalibrationFactor != nil && *c.CalibrationFactor <= 0 {
		return fmt.Errorf("%w: calibration_factor must be positive, got %f", cuts.ErrInvalidConfiguration, *c.CalibrationFactor)
	}
	if c.MinimumTowerSize != nil && *c.MinimumTowerSize < 0 {
		return fmt.Errorf("%w: minimum_tower_size must be non-negative, got %d", cuts.ErrInvalidConfiguration, *c.MinimumTowerSize)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("%w: workers must be non-negative, got %d", cuts.ErrInvalidConfiguration, *c.Workers)
	}
	if c.MatchThetaMrad != nil && *c.MatchThetaMrad < 0 {
		return fmt.Errorf("%w: match_theta_mrad must be non-negative", cuts.ErrInvalidConfiguration)
	}
	if c.MatchPhiDeg != nil && *c.MatchPhiDeg < 0 {
		return fmt.Errorf("%w: match_phi_deg must be non-negative", cuts.ErrInvalidConfiguration)
	}
	if c.Geometry != nil {
		if _, err := geometry.NewCached(c.GeometryParams()); err != nil {
			return err
		}
	}
	return nil
}

// GetBackgroundMethod returns the background strategy name or the default.
func (c *TuningConfig) GetBackgroundMethod() string {
	if c.BackgroundMethod == nil {
		return background.Parametrised.String()
	}
	return *c.BackgroundMethod
}

// Method resolves the background strategy.
func (c *TuningConfig) Method() (background.Method, error) {
	return background.ParseMethod(c.GetBackgroundMethod())
}

// GetNumberOfBX returns the number of overlaid bunch crossings.
func (c *TuningConfig) GetNumberOfBX() int {
	if c.NumberOfBX == nil {
		return 1
	}
	return *c.NumberOfBX
}

// GetRandomSeed returns the base seed for per-event sampling.
func (c *TuningConfig) GetRandomSeed() uint64 {
	if c.RandomSeed == nil {
		return 0
	}
	return *c.RandomSeed
}

// GetStartingRings returns the starting_rings value or the default.
func (c *TuningConfig) GetStartingRings() []int {
	if len(c.StartingRings) == 0 {
		return []int{0, 1, 2}
	}
	return c.StartingRings
}

// GetPadThresholds returns the pad_thresholds value or the default.
func (c *TuningConfig) GetPadThresholds() []float64 {
	if len(c.PadThresholds) == 0 {
		return []float64{0.5, 0.3, 0.2}
	}
	return c.PadThresholds
}

// GetClusterThresholds returns the cluster_thresholds value or the default.
func (c *TuningConfig) GetClusterThresholds() []float64 {
	if len(c.ClusterThresholds) == 0 {
		return []float64{3.0, 2.0, 1.0}
	}
	return c.ClusterThresholds
}

// GetMinimumTowerSize returns the minimum_tower_size value or the default.
func (c *TuningConfig) GetMinimumTowerSize() int {
	if c.MinimumTowerSize == nil {
		return 4
	}
	return *c.MinimumTowerSize
}

// GetStartLookingInLayer returns the first layer considered for clustering.
func (c *TuningConfig) GetStartLookingInLayer() int {
	if c.StartLookingInLayer == nil {
		return 10
	}
	return *c.StartLookingInLayer
}

// GetUseConstPadCuts returns the use_const_pad_cuts value or the default.
func (c *TuningConfig) GetUseConstPadCuts() bool {
	if c.UseConstPadCuts == nil {
		return true
	}
	return *c.UseConstPadCuts
}

// GetSigmaCut returns the sigma_cut value or the default.
func (c *TuningConfig) GetSigmaCut() float64 {
	if c.SigmaCut == nil {
		return 1.0
	}
	return *c.SigmaCut
}

// GetCalibrationFactor returns the calibration_factor value or the default.
func (c *TuningConfig) GetCalibrationFactor() float64 {
	if c.CalibrationFactor == nil {
		return 1.0
	}
	return *c.CalibrationFactor
}

// GetWorkers returns the number of event workers. Zero means one per CPU.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil || *c.Workers == 0 {
		return runtime.GOMAXPROCS(0)
	}
	return *c.Workers
}

// GetHitMinEnergy returns the smallest hit energy read from input.
func (c *TuningConfig) GetHitMinEnergy() float64 {
	if c.HitMinEnergy == nil {
		return 0
	}
	return *c.HitMinEnergy
}

// CutParams builds the cut policy parameters.
func (c *TuningConfig) CutParams() cuts.Params {
	return cuts.Params{
		StartingRings:     c.GetStartingRings(),
		PadThresholds:     c.GetPadThresholds(),
		ClusterThresholds: c.GetClusterThresholds(),
		MinimumTowerSize:  c.GetMinimumTowerSize(),
		FirstLayer:        c.GetStartLookingInLayer(),
		UseConstPadCuts:   c.GetUseConstPadCuts(),
		SigmaCut:          c.GetSigmaCut(),
	}
}

// MatchTolerance returns the truth matching window.
func (c *TuningConfig) MatchTolerance() candidate.Tolerance {
	tol := candidate.Tolerance{ThetaMrad: 5, PhiDeg: 20}
	if c.MatchThetaMrad != nil {
		tol.ThetaMrad = *c.MatchThetaMrad
	}
	if c.MatchPhiDeg != nil {
		tol.PhiDeg = *c.MatchPhiDeg
	}
	return tol
}
