package main

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/aquarium/config"
	"github.com/pthm-cable/aquarium/game"
	"github.com/pthm-cable/aquarium/telemetry"
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params       *ParamVector
	maxTicks     int32
	seeds        []int64
	baseConfig   *config.Config
	statsWindow  float64
	rippleHeight float64 // target surface peak height

	mu          sync.Mutex
	lastQuality float64 // quality from most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTicks int32, seeds []int64, baseCfg *config.Config, rippleHeight float64) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:       params,
		maxTicks:     maxTicks,
		seeds:        seeds,
		baseConfig:   baseCfg,
		statsWindow:  2.0,
		rippleHeight: rippleHeight,
	}
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// Evaluate computes fitness for a raw parameter vector (lower = better).
// Fitness is the negated mean quality over all seeds.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	qualities := make([]float64, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			windows, err := fe.runSimulation(x, s)
			if err != nil {
				return // invalid parameter combination scores zero
			}
			qualities[idx] = fe.computeQuality(windows)
		}(i, seed)
	}
	wg.Wait()

	q := stat.Mean(qualities, nil)
	fe.mu.Lock()
	fe.lastQuality = q
	fe.mu.Unlock()
	return -q
}

// runSimulation executes a single headless run and returns its windows.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) ([]telemetry.WindowStats, error) {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	var windows []telemetry.WindowStats
	g, err := game.NewGame(cfg, game.Options{
		Seed:           seed,
		StatsWindowSec: fe.statsWindow,
		StepsPerUpdate: 1,
		Population:     -1,
		Workers:        1,
		StatsCallback: func(stats telemetry.WindowStats) {
			windows = append(windows, stats)
		},
	})
	if err != nil {
		return nil, err
	}
	defer g.Unload()

	for g.Tick() < fe.maxTicks {
		g.UpdateHeadless()
	}
	return windows, nil
}

// copyConfig returns a copy of the base config safe to modify. Tuned
// parameters are scalars, so the shared creature slices are never written.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	return &cfg
}

// Quality component weights.
const (
	qualityWeightWalls     = 0.35
	qualityWeightRipples   = 0.30
	qualityWeightKelp      = 0.15
	qualityWeightStability = 0.20

	qualityWarmupWindows = 2 // skip first N windows (fish still spreading out)

	// Bounces per fish per second at which the wall score drops to 1/e.
	bounceScale = 0.5
	// Kelp pushes per fish per second at which the kelp score reaches 1-1/e.
	kelpScale = 2.0
)

// computeQuality scores a run in [0, 1]: fish that rarely hit the walls,
// a surface rippling near the target height, kelp that reacts to passing
// fish and ripples that hold steady across windows.
func (fe *FitnessEvaluator) computeQuality(windows []telemetry.WindowStats) float64 {
	if len(windows) <= qualityWarmupWindows {
		return 0
	}
	valid := windows[qualityWarmupWindows:]

	var wallSum, rippleSum, kelpSum float64
	var n int
	heights := make([]float64, 0, len(valid))

	for i, w := range valid {
		if w.FishCount == 0 {
			continue
		}
		start := windows[qualityWarmupWindows+i-1].SimTimeSec
		secs := w.SimTimeSec - start
		if secs <= 0 {
			continue
		}
		fishSec := float64(w.FishCount) * secs

		wallSum += math.Exp(-float64(w.Bounces) / fishSec / bounceScale)
		kelpSum += 1 - math.Exp(-float64(w.KelpPushes)/fishSec/kelpScale)

		if w.WaterMaxHeight > 0 && fe.rippleHeight > 0 {
			logErr := math.Log(w.WaterMaxHeight / fe.rippleHeight)
			rippleSum += math.Exp(-logErr * logErr)
		}
		heights = append(heights, w.WaterMaxHeight)
		n++
	}
	if n == 0 {
		return 0
	}

	stabilityScore := 0.0
	if len(heights) >= 2 {
		c := cv(heights)
		stabilityScore = math.Exp(-c * c)
	}

	quality := qualityWeightWalls*wallSum/float64(n) +
		qualityWeightRipples*rippleSum/float64(n) +
		qualityWeightKelp*kelpSum/float64(n) +
		qualityWeightStability*stabilityScore

	return clamp01(quality)
}

// cv computes the coefficient of variation (std/mean) for a slice of values.
func cv(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean, variance := stat.PopMeanVariance(values, nil)
	if mean == 0 {
		return 0
	}
	return math.Sqrt(variance) / mean
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	return max(0, min(x, 1))
}
