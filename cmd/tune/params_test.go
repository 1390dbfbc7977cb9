package main

import (
	"math"
	"testing"

	"github.com/pthm-cable/aquarium/config"
	"github.com/pthm-cable/aquarium/telemetry"
)

func TestNormalizeRoundTrip(t *testing.T) {
	pv := NewParamVector()
	cfg, err := config.Defaults()
	if err != nil {
		t.Fatal(err)
	}
	raw := pv.ExtractFromConfig(cfg)
	back := pv.Denormalize(pv.Normalize(raw))
	for i, spec := range pv.Specs {
		if math.Abs(back[i]-raw[i]) > 1e-12 {
			t.Errorf("%s: %v -> %v", spec.Name, raw[i], back[i])
		}
		if raw[i] < spec.Min || raw[i] > spec.Max {
			t.Errorf("%s default %v outside [%v, %v]", spec.Name, raw[i], spec.Min, spec.Max)
		}
	}
}

func TestApplyToConfigClamps(t *testing.T) {
	pv := NewParamVector()
	cfg, err := config.Defaults()
	if err != nil {
		t.Fatal(err)
	}
	values := make([]float64, pv.Dim())
	for i := range values {
		values[i] = 1e6
	}
	pv.ApplyToConfig(cfg, values)

	got := pv.ExtractFromConfig(cfg)
	for i, spec := range pv.Specs {
		if got[i] != spec.Max {
			t.Errorf("%s = %v, want clamp to %v", spec.Path, got[i], spec.Max)
		}
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("upper bounds produce an invalid config: %v", err)
	}
}

func TestComputeQuality(t *testing.T) {
	fe := &FitnessEvaluator{rippleHeight: 0.05}

	windows := func(bounces, pushes int, height float64) []telemetry.WindowStats {
		var out []telemetry.WindowStats
		for i := 1; i <= 6; i++ {
			out = append(out, telemetry.WindowStats{
				SimTimeSec:     float64(i) * 2,
				FishCount:      10,
				Bounces:        bounces,
				KelpPushes:     pushes,
				WaterMaxHeight: height,
			})
		}
		return out
	}

	tests := []struct {
		name    string
		windows []telemetry.WindowStats
		min     float64
		max     float64
	}{
		{"too short", windows(0, 0, 0.05)[:2], 0, 0},
		{"ideal", windows(0, 400, 0.05), 0.9, 1},
		{"wall bouncing", windows(200, 400, 0.05), 0, 0.7},
		{"flat water", windows(0, 400, 0), 0.6, 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := fe.computeQuality(tt.windows)
			if q < tt.min || q > tt.max {
				t.Errorf("quality = %v, want in [%v, %v]", q, tt.min, tt.max)
			}
		})
	}
}
