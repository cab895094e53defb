package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/imu-kinematics/internal/kinematics/l2orientation"
)

func TestDefaultPipelineConfig(t *testing.T) {
	cfg := DefaultPipelineConfig()

	if cfg.GetSetup() != "MM" {
		t.Errorf("expected setup MM, got %s", cfg.GetSetup())
	}
	if cfg.GetFilterType() != "Xsens" {
		t.Errorf("expected filter_type Xsens, got %s", cfg.GetFilterType())
	}
	if cfg.GetDim() != "9D" {
		t.Errorf("expected dim 9D, got %s", cfg.GetDim())
	}
	if cfg.GetSamplingRateHz() != 40 {
		t.Errorf("expected sampling_rate_hz 40, got %f", cfg.GetSamplingRateHz())
	}
	if !cfg.GetRemoveOffset() {
		t.Error("expected remove_offset to default to true")
	}
	if cfg.GetPelvisOffsetsDeg() != [3]float64{90, -90, 90} {
		t.Errorf("unexpected pelvis offsets %v", cfg.GetPelvisOffsetsDeg())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestEmptyConfigMatchesDefaults(t *testing.T) {
	empty := EmptyPipelineConfig()
	def := DefaultPipelineConfig()

	if empty.GetAlignmentFraction() != def.GetAlignmentFraction() {
		t.Errorf("alignment_fraction: empty %f, default %f", empty.GetAlignmentFraction(), def.GetAlignmentFraction())
	}
	if empty.GetGaitEventEndIndex() != def.GetGaitEventEndIndex() {
		t.Errorf("gait_event_end_index: empty %d, default %d", empty.GetGaitEventEndIndex(), def.GetGaitEventEndIndex())
	}
	if empty.GetStaticStandingPeriodS() != def.GetStaticStandingPeriodS() {
		t.Errorf("static_standing_period_s: empty %f, default %f", empty.GetStaticStandingPeriodS(), def.GetStaticStandingPeriodS())
	}
}

func TestLoadPipelineConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	configJSON := `{
		"setup": "FM",
		"dim": "6D",
		"filter_type": "VQF",
		"sampling_rate_hz": 100,
		"remove_offset": false,
		"pelvis_offsets_deg": [0, 0, 0],
		"filter_params": {"VQF": [3, 12]}
	}`
	if err := os.WriteFile(configPath, []byte(configJSON), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadPipelineConfig(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.GetSetup() != "FM" {
		t.Errorf("expected setup FM, got %s", cfg.GetSetup())
	}
	if cfg.GetDim() != "6D" {
		t.Errorf("expected dim 6D, got %s", cfg.GetDim())
	}
	if cfg.GetSamplingRateHz() != 100 {
		t.Errorf("expected sampling_rate_hz 100, got %f", cfg.GetSamplingRateHz())
	}
	if cfg.GetRemoveOffset() {
		t.Error("expected remove_offset false")
	}
	if cfg.GetPelvisOffsetsDeg() != [3]float64{} {
		t.Errorf("expected zero pelvis offsets, got %v", cfg.GetPelvisOffsetsDeg())
	}
	if p := cfg.GetFilterParams(l2orientation.FilterVQF); len(p) != 2 || p[0] != 3 || p[1] != 12 {
		t.Errorf("expected VQF params [3 12], got %v", p)
	}
	// Filters without an override keep the tuned defaults.
	if p := cfg.GetFilterParams(l2orientation.FilterMAD); len(p) != 1 || p[0] != 0.1 {
		t.Errorf("expected MAD params [0.1], got %v", p)
	}
	// Unset fields use defaults.
	if cfg.GetAlignmentMinSamples() != 10 {
		t.Errorf("expected default alignment_min_samples 10, got %d", cfg.GetAlignmentMinSamples())
	}
}

func TestLoadPipelineConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"wrong extension", write("cfg.yaml", `{}`), ".json extension"},
		{"missing file", filepath.Join(tmpDir, "missing.json"), "failed to stat"},
		{"bad json", write("bad.json", `{"setup": `), "failed to parse"},
		{"unsupported filter", write("filter.json", `{"filter_type": "Kalman"}`), "invalid configuration"},
		{"filter without 9D", write("riann.json", `{"filter_type": "RIANN", "dim": "9D"}`), "does not support"},
		{"bad window", write("window.json", `{"walking_fallback_start": 0.8, "walking_fallback_end": 0.2}`), "walking fallback"},
		{"bad gait indices", write("gait.json", `{"gait_event_start_index": 5, "gait_event_end_index": 5}`), "gait event"},
		{"long setup", write("setup.json", `{"setup": "FFF"}`), "setup"},
		{"negative rate", write("rate.json", `{"sampling_rate_hz": -1}`), "sampling_rate_hz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPipelineConfig(tt.path)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadPipelineConfig_TooLarge(t *testing.T) {
	p := filepath.Join(t.TempDir(), "big.json")
	big := make([]byte, maxConfigFileSize+1)
	for i := range big {
		big[i] = ' '
	}
	if err := os.WriteFile(p, big, 0644); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if _, err := LoadPipelineConfig(p); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected too large error, got %v", err)
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults file should validate: %v", err)
	}
	def := DefaultPipelineConfig()
	if cfg.GetSetup() != def.GetSetup() || cfg.GetDim() != def.GetDim() {
		t.Errorf("defaults file disagrees with DefaultPipelineConfig: %s/%s vs %s/%s",
			cfg.GetSetup(), cfg.GetDim(), def.GetSetup(), def.GetDim())
	}
	if cfg.GetPelvisOffsetsDeg() != def.GetPelvisOffsetsDeg() {
		t.Errorf("pelvis offsets: file %v, default %v", cfg.GetPelvisOffsetsDeg(), def.GetPelvisOffsetsDeg())
	}
}
