package telemetry

import "math"

// Collector accumulates events within time windows and produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int32
	dt                  float64

	// Current window tracking
	windowStartTick int32

	// Event counters for current window
	retargets     int
	bounces       int
	kelpPushes    int
	disturbances  int
	deformations  int
	populationOps int

	maxJointError float64
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec, dt float64) *Collector {
	ticksPerWindow := int32(1)
	if dt > 0 {
		ticksPerWindow = max(int32(math.Round(windowDurationSec/dt)), 1)
	}
	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
	}
}

// RecordFlock adds one flock update's retargets and wall bounces.
func (c *Collector) RecordFlock(retargets, bounces int) {
	c.retargets += retargets
	c.bounces += bounces
}

// RecordKelp adds one kelp update's pushes and tracks the worst joint error.
func (c *Collector) RecordKelp(pushes int, jointError float64) {
	c.kelpPushes += pushes
	c.maxJointError = math.Max(c.maxJointError, jointError)
}

// RecordDisturbances counts water impulses.
func (c *Collector) RecordDisturbances(n int) {
	c.disturbances += n
}

// RecordDeformation counts one sand deformation.
func (c *Collector) RecordDeformation() {
	c.deformations++
}

// RecordPopulationChange counts one applied population edit.
func (c *Collector) RecordPopulationChange() {
	c.populationOps++
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// FieldState is the state sampled at the end of a window.
type FieldState struct {
	WaterEnergy      float64
	WaterMaxHeight   float64
	SandDisplacement float64
}

// Flush produces a WindowStats and resets counters for the next window.
// speeds holds the current fish speeds; its length is the fish count.
func (c *Collector) Flush(currentTick int32, simTime float64, speeds []float64, fields FieldState) WindowStats {
	speed := ComputeDistribution(speeds)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      simTime,

		FishCount: len(speeds),

		Retargets:     c.retargets,
		Bounces:       c.bounces,
		KelpPushes:    c.kelpPushes,
		Disturbances:  c.disturbances,
		Deformations:  c.deformations,
		PopulationOps: c.populationOps,

		SpeedMean: speed.Mean,
		SpeedStd:  speed.Std,
		SpeedP10:  speed.P10,
		SpeedP50:  speed.P50,
		SpeedP90:  speed.P90,

		WaterEnergy:      fields.WaterEnergy,
		WaterMaxHeight:   fields.WaterMaxHeight,
		KelpJointError:   c.maxJointError,
		SandDisplacement: fields.SandDisplacement,
	}

	c.reset(currentTick)
	return stats
}

// reset discards the current window and starts a new one at tick.
func (c *Collector) reset(tick int32) {
	c.windowStartTick = tick
	c.retargets = 0
	c.bounces = 0
	c.kelpPushes = 0
	c.disturbances = 0
	c.deformations = 0
	c.populationOps = 0
	c.maxJointError = 0
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int32 {
	return c.windowDurationTicks
}
