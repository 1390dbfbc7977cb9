package telemetry

import (
	"testing"
	"time"
)

func TestPerfCollector_TracksEveryPhase(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 3; i++ {
		pc.StartTick()
		for _, phase := range Phases {
			pc.StartPhase(phase)
			time.Sleep(20 * time.Microsecond)
		}
		pc.EndTick()
	}

	stats := pc.Stats()
	var sum time.Duration
	for _, phase := range Phases {
		d, ok := stats.PhaseAvg[phase]
		if !ok || d <= 0 {
			t.Errorf("phase %q not timed (avg %v)", phase, d)
		}
		sum += d
	}
	if sum > stats.AvgTickDuration {
		t.Errorf("phase averages sum to %v, more than the average tick %v", sum, stats.AvgTickDuration)
	}
}

func TestPerfCollector_PhaseClosedAtTickBoundary(t *testing.T) {
	pc := NewPerfCollector(10)

	// Water is left open at EndTick; the next tick must not keep charging it.
	pc.StartTick()
	pc.StartPhase(PhaseWater)
	pc.EndTick()

	pc.StartTick()
	time.Sleep(2 * time.Millisecond)
	pc.StartPhase(PhaseSand)
	pc.EndTick()

	stats := pc.Stats()
	if stats.PhaseAvg[PhaseWater] >= time.Millisecond {
		t.Errorf("water avg %v includes time from the following tick", stats.PhaseAvg[PhaseWater])
	}

	// Re-entering a phase within one tick accumulates.
	pc = NewPerfCollector(10)
	pc.StartTick()
	pc.StartPhase(PhaseKelp)
	time.Sleep(time.Millisecond)
	pc.StartPhase(PhaseWater)
	pc.StartPhase(PhaseKelp)
	time.Sleep(time.Millisecond)
	pc.EndTick()

	if got := pc.Stats().PhaseAvg[PhaseKelp]; got < 2*time.Millisecond {
		t.Errorf("kelp avg %v, want both visits counted (>= 2ms)", got)
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc := NewPerfCollector(5) // Small window

	// Fill window completely
	for i := 0; i < 10; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseFlock)
		pc.EndTick()
	}

	stats := pc.Stats()

	// Should have data
	if stats.AvgTickDuration <= 0 {
		t.Error("expected positive average tick duration after window filled")
	}

	if stats.TicksPerSecond <= 0 {
		t.Error("expected positive ticks per second")
	}
}

func TestPerfCollector_PhasePercentages(t *testing.T) {
	pc := NewPerfCollector(10)

	// Simulate with uneven phase durations
	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase("fast")
		time.Sleep(10 * time.Microsecond)
		pc.StartPhase("slow")
		time.Sleep(100 * time.Microsecond)
		pc.EndTick()
	}

	stats := pc.Stats()

	fastPct := stats.PhasePct["fast"]
	slowPct := stats.PhasePct["slow"]

	// Slow phase should take more % than fast
	if slowPct <= fastPct {
		t.Errorf("expected slow phase (%v%%) > fast phase (%v%%)", slowPct, fastPct)
	}
}

func TestPerfCollector_EmptyStats(t *testing.T) {
	pc := NewPerfCollector(10)

	stats := pc.Stats()

	// Empty collector should return zero values without panicking
	if stats.AvgTickDuration != 0 {
		t.Error("expected zero avg tick duration for empty collector")
	}

	if stats.PhaseAvg == nil {
		t.Error("expected non-nil PhaseAvg map")
	}

	if stats.PhasePct == nil {
		t.Error("expected non-nil PhasePct map")
	}
}

func TestPerfCollector_Percentiles(t *testing.T) {
	pc := NewPerfCollector(20)
	for i := 0; i < 20; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseKelp)
		if i == 19 {
			time.Sleep(2 * time.Millisecond)
		}
		pc.EndTick()
	}

	stats := pc.Stats()
	if stats.MinTickDuration > stats.AvgTickDuration || stats.AvgTickDuration > stats.MaxTickDuration {
		t.Errorf("min %v / avg %v / max %v out of order", stats.MinTickDuration, stats.AvgTickDuration, stats.MaxTickDuration)
	}
	if stats.P95TickDuration > stats.MaxTickDuration || stats.P95TickDuration < stats.MinTickDuration {
		t.Errorf("p95 %v outside [%v, %v]", stats.P95TickDuration, stats.MinTickDuration, stats.MaxTickDuration)
	}
	if stats.MaxTickDuration < 2*time.Millisecond {
		t.Errorf("max %v should include the slow tick", stats.MaxTickDuration)
	}

	row := stats.ToCSV(600)
	if row.WindowEnd != 600 || row.KelpPct != stats.PhasePct[PhaseKelp] {
		t.Errorf("csv row mismatch: %+v", row)
	}
}
