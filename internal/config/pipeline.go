package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/imu-kinematics/internal/kinematics/l2orientation"
)

// DefaultConfigPath is the path to the canonical pipeline defaults file.
const DefaultConfigPath = "config/pipeline.defaults.json"

const maxConfigFileSize = 1 * 1024 * 1024 // 1MB

// PipelineConfig is the JSON configuration of a kinematics run. Every field
// is optional; the Get* methods supply defaults for omitted values, so
// partial configs are safe.
type PipelineConfig struct {
	// Sensor attachment and orientation estimation
	Setup          *string  `json:"setup,omitempty"` // two chars: shank, thigh (e.g. "MM", "FF")
	FilterType     *string  `json:"filter_type,omitempty"`
	Dim            *string  `json:"dim,omitempty"` // "9D" or "6D"
	SamplingRateHz *float64 `json:"sampling_rate_hz,omitempty"`
	// FilterParams overrides the tuned parameters per filter name.
	FilterParams map[string][]float64 `json:"filter_params,omitempty"`

	// Calibration
	DegenerateEpsilon    *float64 `json:"degenerate_epsilon,omitempty"`
	MinPCASamples        *int     `json:"min_pca_samples,omitempty"`
	WalkingFallbackStart *float64 `json:"walking_fallback_start,omitempty"`
	WalkingFallbackEnd   *float64 `json:"walking_fallback_end,omitempty"`
	GaitEventStartIndex  *int     `json:"gait_event_start_index,omitempty"`
	GaitEventEndIndex    *int     `json:"gait_event_end_index,omitempty"`

	// 6D correction
	StaticStandingPeriodS *float64 `json:"static_standing_period_s,omitempty"`

	// Offset removal and alignment
	RemoveOffset        *bool       `json:"remove_offset,omitempty"`
	Align               *bool       `json:"align,omitempty"`
	AlignmentFraction   *float64    `json:"alignment_fraction,omitempty"`
	AlignmentMinSamples *int        `json:"alignment_min_samples,omitempty"`
	PelvisOffsetsDeg    *[3]float64 `json:"pelvis_offsets_deg,omitempty"`

	// Data quality
	ZeroAngleTolerance *float64 `json:"zero_angle_tolerance,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyPipelineConfig returns a PipelineConfig with all fields unset.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// DefaultPipelineConfig returns a config with every field set to its
// default value.
func DefaultPipelineConfig() *PipelineConfig {
	e := EmptyPipelineConfig()
	offsets := e.GetPelvisOffsetsDeg()
	return &PipelineConfig{
		Setup:                 ptrString(e.GetSetup()),
		FilterType:            ptrString(e.GetFilterType()),
		Dim:                   ptrString(e.GetDim()),
		SamplingRateHz:        ptrFloat64(e.GetSamplingRateHz()),
		DegenerateEpsilon:     ptrFloat64(e.GetDegenerateEpsilon()),
		MinPCASamples:         ptrInt(e.GetMinPCASamples()),
		WalkingFallbackStart:  ptrFloat64(e.GetWalkingFallbackStart()),
		WalkingFallbackEnd:    ptrFloat64(e.GetWalkingFallbackEnd()),
		GaitEventStartIndex:   ptrInt(e.GetGaitEventStartIndex()),
		GaitEventEndIndex:     ptrInt(e.GetGaitEventEndIndex()),
		StaticStandingPeriodS: ptrFloat64(e.GetStaticStandingPeriodS()),
		RemoveOffset:          ptrBool(e.GetRemoveOffset()),
		Align:                 ptrBool(e.GetAlign()),
		AlignmentFraction:     ptrFloat64(e.GetAlignmentFraction()),
		AlignmentMinSamples:   ptrInt(e.GetAlignmentMinSamples()),
		PelvisOffsetsDeg:      &offsets,
		ZeroAngleTolerance:    ptrFloat64(e.GetZeroAngleTolerance()),
	}
}

// LoadPipelineConfig loads a PipelineConfig from a JSON file.
// The file must have a .json extension and be at most 1MB.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParsePipelineConfig(data)
}

// ParsePipelineConfig decodes and validates a JSON config.
func ParsePipelineConfig(data []byte) (*PipelineConfig, error) {
	cfg := EmptyPipelineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *PipelineConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,          // from internal/config/
		"../../../" + DefaultConfigPath,       // from internal/kinematics/pipeline/
		"../../../../" + DefaultConfigPath,    // deeper packages
		"../../../../../" + DefaultConfigPath, // even deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadPipelineConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *PipelineConfig) Validate() error {
	if c.Setup != nil && len(*c.Setup) > 2 {
		return fmt.Errorf("setup must be at most 2 characters, got %q", *c.Setup)
	}

	ft, err := l2orientation.ParseFilterType(c.GetFilterType())
	if err != nil {
		return fmt.Errorf("filter_type: %w", err)
	}
	dim, err := l2orientation.ParseDim(c.GetDim())
	if err != nil {
		return fmt.Errorf("dim: %w", err)
	}
	if !l2orientation.FilterSupports(ft, dim) {
		return fmt.Errorf("%w: filter_type %s does not support dim %s (supported: %v)",
			l2orientation.ErrUnsupportedFilter, ft, dim, l2orientation.SupportedFilters(dim))
	}
	for name := range c.FilterParams {
		if _, err := l2orientation.ParseFilterType(name); err != nil {
			return fmt.Errorf("filter_params: %w", err)
		}
	}

	if c.SamplingRateHz != nil && *c.SamplingRateHz <= 0 {
		return fmt.Errorf("sampling_rate_hz must be positive, got %f", *c.SamplingRateHz)
	}
	if c.DegenerateEpsilon != nil && *c.DegenerateEpsilon <= 0 {
		return fmt.Errorf("degenerate_epsilon must be positive, got %g", *c.DegenerateEpsilon)
	}
	if c.MinPCASamples != nil && *c.MinPCASamples < 2 {
		return fmt.Errorf("min_pca_samples must be at least 2, got %d", *c.MinPCASamples)
	}

	start, end := c.GetWalkingFallbackStart(), c.GetWalkingFallbackEnd()
	if start < 0 || end > 1 || start >= end {
		return fmt.Errorf("walking fallback window must satisfy 0 <= start < end <= 1, got %f..%f", start, end)
	}
	if s, e := c.GetGaitEventStartIndex(), c.GetGaitEventEndIndex(); s < 0 || e <= s {
		return fmt.Errorf("gait event indices must satisfy 0 <= start < end, got %d..%d", s, e)
	}

	if c.StaticStandingPeriodS != nil && *c.StaticStandingPeriodS <= 0 {
		return fmt.Errorf("static_standing_period_s must be positive, got %f", *c.StaticStandingPeriodS)
	}
	if c.AlignmentFraction != nil && (*c.AlignmentFraction <= 0 || *c.AlignmentFraction > 1) {
		return fmt.Errorf("alignment_fraction must be in (0, 1], got %f", *c.AlignmentFraction)
	}
	if c.AlignmentMinSamples != nil && *c.AlignmentMinSamples < 1 {
		return fmt.Errorf("alignment_min_samples must be at least 1, got %d", *c.AlignmentMinSamples)
	}
	if c.ZeroAngleTolerance != nil && *c.ZeroAngleTolerance < 0 {
		return fmt.Errorf("zero_angle_tolerance must be non-negative, got %g", *c.ZeroAngleTolerance)
	}
	return nil
}

// GetSetup returns the setup code or the default "MM".
func (c *PipelineConfig) GetSetup() string {
	if c.Setup == nil || *c.Setup == "" {
		return "MM"
	}
	return *c.Setup
}

// GetFilterType returns the filter_type value or the default.
func (c *PipelineConfig) GetFilterType() string {
	if c.FilterType == nil || *c.FilterType == "" {
		return string(l2orientation.FilterXsens)
	}
	return *c.FilterType
}

// GetDim returns the dim value or the default.
func (c *PipelineConfig) GetDim() string {
	if c.Dim == nil || *c.Dim == "" {
		return string(l2orientation.Dim9D)
	}
	return *c.Dim
}

// GetSamplingRateHz returns the sampling_rate_hz value or the default.
func (c *PipelineConfig) GetSamplingRateHz() float64 {
	if c.SamplingRateHz == nil {
		return 40
	}
	return *c.SamplingRateHz
}

// GetFilterParams returns the configured parameters for ft, falling back
// to the tuned defaults.
func (c *PipelineConfig) GetFilterParams(ft l2orientation.FilterType) []float64 {
	for name, p := range c.FilterParams {
		if parsed, err := l2orientation.ParseFilterType(name); err == nil && parsed == ft {
			out := make([]float64, len(p))
			copy(out, p)
			return out
		}
	}
	return l2orientation.DefaultFilterParams(ft)
}

// GetDegenerateEpsilon returns the degenerate_epsilon value or the default.
func (c *PipelineConfig) GetDegenerateEpsilon() float64 {
	if c.DegenerateEpsilon == nil {
		return 1e-6
	}
	return *c.DegenerateEpsilon
}

// GetMinPCASamples returns the min_pca_samples value or the default.
func (c *PipelineConfig) GetMinPCASamples() int {
	if c.MinPCASamples == nil {
		return 4
	}
	return *c.MinPCASamples
}

// GetWalkingFallbackStart returns the walking_fallback_start value or the default.
func (c *PipelineConfig) GetWalkingFallbackStart() float64 {
	if c.WalkingFallbackStart == nil {
		return 0.25
	}
	return *c.WalkingFallbackStart
}

// GetWalkingFallbackEnd returns the walking_fallback_end value or the default.
func (c *PipelineConfig) GetWalkingFallbackEnd() float64 {
	if c.WalkingFallbackEnd == nil {
		return 0.75
	}
	return *c.WalkingFallbackEnd
}

// GetGaitEventStartIndex returns the gait_event_start_index value or the default.
func (c *PipelineConfig) GetGaitEventStartIndex() int {
	if c.GaitEventStartIndex == nil {
		return 10
	}
	return *c.GaitEventStartIndex
}

// GetGaitEventEndIndex returns the gait_event_end_index value or the default.
func (c *PipelineConfig) GetGaitEventEndIndex() int {
	if c.GaitEventEndIndex == nil {
		return 18
	}
	return *c.GaitEventEndIndex
}

// GetStaticStandingPeriodS returns the static_standing_period_s value or the default.
func (c *PipelineConfig) GetStaticStandingPeriodS() float64 {
	if c.StaticStandingPeriodS == nil {
		return 3
	}
	return *c.StaticStandingPeriodS
}

// GetRemoveOffset returns the remove_offset value or the default.
func (c *PipelineConfig) GetRemoveOffset() bool {
	if c.RemoveOffset == nil {
		return true
	}
	return *c.RemoveOffset
}

// GetAlign returns the align value or the default.
func (c *PipelineConfig) GetAlign() bool {
	if c.Align == nil {
		return true
	}
	return *c.Align
}

// GetAlignmentFraction returns the alignment_fraction value or the default.
func (c *PipelineConfig) GetAlignmentFraction() float64 {
	if c.AlignmentFraction == nil {
		return 0.1
	}
	return *c.AlignmentFraction
}

// GetAlignmentMinSamples returns the alignment_min_samples value or the default.
func (c *PipelineConfig) GetAlignmentMinSamples() int {
	if c.AlignmentMinSamples == nil {
		return 10
	}
	return *c.AlignmentMinSamples
}

// GetPelvisOffsetsDeg returns the pelvis tilt/list/rot offsets or the
// default (+90, -90, +90).
func (c *PipelineConfig) GetPelvisOffsetsDeg() [3]float64 {
	if c.PelvisOffsetsDeg == nil {
		return [3]float64{90, -90, 90}
	}
	return *c.PelvisOffsetsDeg
}

// GetZeroAngleTolerance returns the zero_angle_tolerance value or the default.
func (c *PipelineConfig) GetZeroAngleTolerance() float64 {
	if c.ZeroAngleTolerance == nil {
		return 1e-6
	}
	return *c.ZeroAngleTolerance
}
