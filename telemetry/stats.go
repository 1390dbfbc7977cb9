// Package telemetry provides windowed tank statistics, bookmarks and CSV
// output.
package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int32   `csv:"-"`
	WindowEndTick   int32   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Population at window end
	FishCount int `csv:"fish"`

	// Events during window
	Retargets     int `csv:"retargets"`
	Bounces       int `csv:"bounces"`
	KelpPushes    int `csv:"kelp_pushes"`
	Disturbances  int `csv:"disturbances"`
	Deformations  int `csv:"deformations"`
	PopulationOps int `csv:"population_ops"`

	// Speed distribution (sampled at window end)
	SpeedMean float64 `csv:"speed_mean"`
	SpeedStd  float64 `csv:"speed_std"`
	SpeedP10  float64 `csv:"speed_p10"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`

	// Field state (sampled at window end)
	WaterEnergy      float64 `csv:"water_energy"`
	WaterMaxHeight   float64 `csv:"water_max_height"`
	KelpJointError   float64 `csv:"kelp_joint_error"` // Worst over the window
	SandDisplacement float64 `csv:"sand_displacement"`
}

// Distribution summarises a sample: mean, population standard deviation and
// the 10th, 50th and 90th percentiles.
type Distribution struct {
	Mean, Std     float64
	P10, P50, P90 float64
}

// ComputeDistribution sorts a copy of values and summarises it. Empty input
// yields the zero Distribution.
func ComputeDistribution(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mean, variance := stat.PopMeanVariance(sorted, nil)
	d := Distribution{Mean: mean, Std: math.Sqrt(math.Max(variance, 0))}
	d.P10 = stat.Quantile(0.10, stat.LinInterp, sorted, nil)
	d.P50 = stat.Quantile(0.50, stat.LinInterp, sorted, nil)
	d.P90 = stat.Quantile(0.90, stat.LinInterp, sorted, nil)
	return d
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", int(s.WindowStartTick)),
		slog.Int("window_end", int(s.WindowEndTick)),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("fish", s.FishCount),
		slog.Int("retargets", s.Retargets),
		slog.Int("bounces", s.Bounces),
		slog.Int("kelp_pushes", s.KelpPushes),
		slog.Int("disturbances", s.Disturbances),
		slog.Int("deformations", s.Deformations),
		slog.Int("population_ops", s.PopulationOps),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_std", s.SpeedStd),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Float64("water_energy", s.WaterEnergy),
		slog.Float64("water_max_height", s.WaterMaxHeight),
		slog.Float64("kelp_joint_error", s.KelpJointError),
		slog.Float64("sand_displacement", s.SandDisplacement),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats", "window", s)
}
