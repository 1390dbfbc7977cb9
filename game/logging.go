package game

import (
	"fmt"
	"io"
	"time"

	"github.com/pthm-cable/aquarium/telemetry"
)

// logWriter is the destination for log output.
var logWriter io.Writer

// SetLogWriter sets the log output destination.
func SetLogWriter(w io.Writer) {
	logWriter = w
}

// Logf writes a formatted log message.
func Logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if logWriter != nil {
		fmt.Fprintln(logWriter, msg)
	} else {
		fmt.Println(msg)
	}
}

// logPerfStats prints the per-phase timing breakdown of the last window.
func (g *Game) logPerfStats() {
	s := g.perfCollector.Stats()
	Logf("=== Perf @ Tick %d (%d steps/update) | %.0f ticks/s ===", g.tick, g.stepsPerUpdate, s.TicksPerSecond)
	Logf("Tick time: avg %s  p95 %s  max %s",
		s.AvgTickDuration.Round(time.Microsecond),
		s.P95TickDuration.Round(time.Microsecond),
		s.MaxTickDuration.Round(time.Microsecond))

	for _, name := range telemetry.Phases {
		Logf("  %-12s %10s  %5.1f%%", name, s.PhaseAvg[name].Round(time.Microsecond), s.PhasePct[name])
	}

	Logf("Fish: %d  Kelp: %d  Water energy: %.4f  Sand displaced: %.4f",
		g.flock.Len(), g.kelp.Len(), g.water.Energy(), g.sand.Displacement())
	Logf("")
}
