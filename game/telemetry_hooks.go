package game

import (
	"log/slog"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/aquarium/telemetry"
)

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (g *Game) flushTelemetry() {
	if !g.collector.ShouldFlush(g.tick) {
		return
	}

	stats := g.collector.Flush(g.tick, g.simTime, g.sampleSpeeds(), g.sampleFields())
	perfStats := g.perfCollector.Stats()

	if g.statsCallback != nil {
		g.statsCallback(stats)
	}

	if g.logStats {
		stats.LogStats()
		slog.Info("perf", "window", perfStats)
	}

	if err := g.outputManager.WriteTelemetry(stats); err != nil {
		slog.Error("failed to write telemetry", "error", err)
	}
	if err := g.outputManager.WritePerf(perfStats, stats.WindowEndTick); err != nil {
		slog.Error("failed to write perf", "error", err)
	}

	for _, bm := range g.bookmarkDetector.Check(stats) {
		if g.logStats {
			bm.LogBookmark()
		}
		if err := g.outputManager.WriteBookmark(bm); err != nil {
			slog.Error("failed to write bookmark", "error", err)
		}
	}
}

// sampleSpeeds collects the current fish speeds for the window distribution.
func (g *Game) sampleSpeeds() []float64 {
	g.speeds = g.speeds[:0]
	for i := 0; i < g.flock.Len(); i++ {
		g.speeds = append(g.speeds, r3.Norm(g.flock.Agent(i).Velocity))
	}
	return g.speeds
}

func (g *Game) sampleFields() telemetry.FieldState {
	return telemetry.FieldState{
		WaterEnergy:      g.water.Energy(),
		WaterMaxHeight:   g.water.MaxAbsHeight(),
		SandDisplacement: g.sand.Displacement(),
	}
}
