package game

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/aquarium/config"
	"github.com/pthm-cable/aquarium/geometry"
	"github.com/pthm-cable/aquarium/telemetry"
)

// testConfig returns the defaults scaled down for fast tests.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Defaults()
	if err != nil {
		t.Fatalf("Defaults: %v", err)
	}
	cfg.Flock.Count = 12
	cfg.Flock.MaxCount = 20
	cfg.Water.Resolution = 16
	cfg.Sand.Resolution = 17
	cfg.Kelp.Count = 3
	cfg.Kelp.Segments = 6
	cfg.Creature.CurveSamples = 40
	cfg.Creature.FrameSize = 40
	cfg.Creature.AxialStep = 0.1
	return cfg
}

func newTestGame(t *testing.T, cfg *config.Config, opts Options) *Game {
	t.Helper()
	if opts.Population == 0 {
		opts.Population = -1
	}
	g, err := NewGame(cfg, opts)
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	t.Cleanup(g.Unload)
	return g
}

func TestCreatureShapeFromDefaults(t *testing.T) {
	cfg, err := config.Defaults()
	if err != nil {
		t.Fatal(err)
	}
	shape, res, err := creatureShape(cfg.Creature)
	if err != nil {
		t.Fatalf("creatureShape: %v", err)
	}
	if !reflect.DeepEqual(shape, geometry.DefaultShape()) {
		t.Error("default config shape differs from geometry.DefaultShape")
	}
	if res != geometry.DefaultResolution() {
		t.Errorf("resolution = %+v, want %+v", res, geometry.DefaultResolution())
	}
}

func TestCreatureShapeBadAttachment(t *testing.T) {
	cfg := testConfig(t)
	cfg.Creature.Fins[0].Attach = "left"
	if _, _, err := creatureShape(cfg.Creature); err == nil {
		t.Fatal("expected error for unknown attachment")
	}
	if _, err := NewGame(cfg, Options{Population: -1}); err == nil {
		t.Fatal("NewGame accepted a bad fin attachment")
	}
}

func TestNewGame(t *testing.T) {
	cfg := testConfig(t)
	g := newTestGame(t, cfg, Options{Seed: 1})

	if g.Seed() != 1 {
		t.Errorf("Seed() = %d, want 1", g.Seed())
	}
	if err := g.CreatureMesh().Validate(); err != nil {
		t.Fatalf("creature mesh invalid: %v", err)
	}
	if got := g.Population(); got != cfg.Flock.Count {
		t.Errorf("Population() = %d, want %d", got, cfg.Flock.Count)
	}
	if got := len(g.KelpMeshes()); got != cfg.Kelp.Count {
		t.Errorf("len(KelpMeshes()) = %d, want %d", got, cfg.Kelp.Count)
	}
	heights, res := g.WaterHeights()
	if res != cfg.Water.Resolution || len(heights) != res*res {
		t.Errorf("water grid = %d cells at res %d", len(heights), res)
	}
	sand, sres := g.SandHeights()
	if sres != cfg.Sand.Resolution || len(sand) != sres*sres {
		t.Errorf("sand grid = %d cells at res %d", len(sand), sres)
	}

	for i := 0; i < g.kelp.Len(); i++ {
		base := g.kelp.Chain(i).Base
		if want := g.SandHeightAt(base.X, base.Z); math.Abs(base.Y-want) > 1e-12 {
			t.Errorf("kelp %d base y = %v, want sand height %v", i, base.Y, want)
		}
	}
}

func TestNewGamePopulationOverride(t *testing.T) {
	cfg := testConfig(t)
	g := newTestGame(t, cfg, Options{Population: 500})
	if got := g.Population(); got != cfg.Flock.MaxCount {
		t.Errorf("Population() = %d, want clamp to %d", got, cfg.Flock.MaxCount)
	}
}

func TestNewGameInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Water.Resolution = 1
	if _, err := NewGame(cfg, Options{Population: -1}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestStepClampsDT(t *testing.T) {
	cfg := testConfig(t)
	g := newTestGame(t, cfg, Options{})

	tests := []struct {
		name string
		dt   float64
		want float64
	}{
		{"normal", 0.01, 0.01},
		{"too large", 10, cfg.Physics.MaxDT},
		{"negative", -1, 0},
		{"nan", math.NaN(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, tick := g.SimTime(), g.Tick()
			g.Step(tt.dt)
			if got := g.SimTime() - before; math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("sim time advanced %v, want %v", got, tt.want)
			}
			if g.Tick() != tick+1 {
				t.Errorf("tick = %d, want %d", g.Tick(), tick+1)
			}
		})
	}
}

func TestSetPopulationAppliedNextTick(t *testing.T) {
	cfg := testConfig(t)
	g := newTestGame(t, cfg, Options{})

	if got := g.SetPopulation(1000); got != cfg.Flock.MaxCount {
		t.Errorf("SetPopulation(1000) = %d, want %d", got, cfg.Flock.MaxCount)
	}
	if got := g.SetPopulation(5); got != 5 {
		t.Errorf("SetPopulation(5) = %d, want 5", got)
	}
	if g.Population() != cfg.Flock.Count {
		t.Fatal("population changed before the tick boundary")
	}
	g.Step(cfg.Physics.DT)
	if g.Population() != 5 {
		t.Errorf("Population() = %d after tick, want 5 (last call wins)", g.Population())
	}
	if got := len(g.Agents()); got != 5 {
		t.Errorf("len(Agents()) = %d, want 5", got)
	}

	if got := g.SetPopulation(-3); got != cfg.Flock.MinCount {
		t.Errorf("SetPopulation(-3) = %d, want %d", got, cfg.Flock.MinCount)
	}
	g.Step(cfg.Physics.DT)
	if g.Population() != cfg.Flock.MinCount {
		t.Errorf("Population() = %d, want %d", g.Population(), cfg.Flock.MinCount)
	}
}

func TestDeterministicForSeed(t *testing.T) {
	cfg := testConfig(t)
	run := func(seed int64) []AgentTransform {
		g := newTestGame(t, cfg, Options{Seed: seed})
		for i := 0; i < 120; i++ {
			g.Step(cfg.Physics.DT)
		}
		return g.Agents()
	}

	a, b := run(42), run(42)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same seed produced different agent states")
	}
	if reflect.DeepEqual(a, run(43)) {
		t.Fatal("different seeds produced identical agent states")
	}
}

func TestInvariantsHoldOverRun(t *testing.T) {
	cfg := testConfig(t)
	cfg.Flock.Flocking = true
	g := newTestGame(t, cfg, Options{Seed: 7})
	d := cfg.Derived

	for tick := 0; tick < 600; tick++ {
		g.Step(cfg.Physics.DT)

		for i, a := range g.Agents() {
			p := a.Position
			if math.Abs(p.X) > d.BoundsX+1e-9 || math.Abs(p.Y) > d.BoundsY+1e-9 || math.Abs(p.Z) > d.BoundsZ+1e-9 {
				t.Fatalf("tick %d: agent %d escaped bounds at %v", tick, i, p)
			}
			if speed := r3.Norm(a.Velocity); math.Abs(speed-cfg.Flock.Speed) > 1e-9 {
				t.Fatalf("tick %d: agent %d speed %v, want %v", tick, i, speed, cfg.Flock.Speed)
			}
		}
	}

	for i := 0; i < g.kelp.Len(); i++ {
		pts := g.kelp.Chain(i).Points
		for j := 1; j < len(pts); j++ {
			l := r3.Norm(r3.Sub(pts[j], pts[j-1]))
			if math.Abs(l-cfg.Kelp.JointLength) > 1e-9 {
				t.Errorf("kelp %d joint %d length %v, want %v", i, j, l, cfg.Kelp.JointLength)
			}
		}
	}
}

func TestDisturbRaisesWaterEnergy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Flock.Count = 0
	g := newTestGame(t, cfg, Options{})

	g.Step(cfg.Physics.DT)
	if e := g.WaterEnergy(); e != 0 {
		t.Fatalf("empty tank water energy = %v, want 0", e)
	}
	g.Disturb(0, 0, 0.5)
	if g.WaterEnergy() <= 0 {
		t.Fatal("Disturb did not add energy")
	}
	g.Step(cfg.Physics.DT)
	if h, _ := g.WaterHeights(); floatsMaxAbs(h) == 0 {
		t.Fatal("surface did not move after a disturbance")
	}
}

func TestAgentsNearSurfaceDisturbWater(t *testing.T) {
	cfg := testConfig(t)
	cfg.Flock.Count = 0
	g := newTestGame(t, cfg, Options{})
	surface := cfg.Derived.SurfaceY

	g.agentPos = []r3.Vec{
		{Y: surface - cfg.Water.SurfaceBand*0.5},
		{Y: surface - cfg.Water.SurfaceBand*2},
		{Y: -surface},
	}
	if n := g.disturbWaterFromAgents(); n != 1 {
		t.Errorf("disturbWaterFromAgents() = %d, want 1", n)
	}
	if g.WaterEnergy() <= 0 {
		t.Error("near-surface agent did not disturb the water")
	}
}

func TestDeformSand(t *testing.T) {
	cfg := testConfig(t)
	g := newTestGame(t, cfg, Options{})

	before := g.SandHeightAt(0, 0)
	g.DeformSand(0, 0, 0.2, 0.5)
	after := g.SandHeightAt(0, 0)
	if after >= before {
		t.Fatalf("sand height %v -> %v, want a dent", before, after)
	}
	for i := 0; i < 600; i++ {
		g.Step(cfg.Physics.DT)
	}
	if got := g.SandHeightAt(0, 0); got <= after {
		t.Errorf("sand did not relax: %v -> %v", after, got)
	}
}

func TestOutputDirWritesTelemetry(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()

	var windows []telemetry.WindowStats
	g, err := NewGame(cfg, Options{
		Seed:           3,
		OutputDir:      dir,
		StatsWindowSec: 0.1,
		StepsPerUpdate: 6,
		Population:     -1,
		StatsCallback:  func(s telemetry.WindowStats) { windows = append(windows, s) },
	})
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	for i := 0; i < 3; i++ {
		g.UpdateHeadless()
	}
	g.Unload()

	if g.Tick() != 18 {
		t.Errorf("Tick() = %d, want 18", g.Tick())
	}
	if len(windows) != 3 {
		t.Fatalf("got %d windows, want 3", len(windows))
	}
	if windows[0].FishCount != cfg.Flock.Count {
		t.Errorf("FishCount = %d, want %d", windows[0].FishCount, cfg.Flock.Count)
	}

	data, err := os.ReadFile(filepath.Join(dir, "telemetry.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Errorf("telemetry.csv has %d lines, want header + 3", len(lines))
	}
	if !strings.HasPrefix(lines[0], "window_end") {
		t.Errorf("unexpected header %q", lines[0])
	}
	for _, name := range []string{"perf.csv", "bookmarks.csv", "config.yaml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func floatsMaxAbs(v []float64) float64 {
	var m float64
	for _, x := range v {
		m = math.Max(m, math.Abs(x))
	}
	return m
}

func BenchmarkStep(b *testing.B) {
	cfg, err := config.Defaults()
	if err != nil {
		b.Fatal(err)
	}
	g, err := NewGame(cfg, Options{Seed: 1, Population: -1})
	if err != nil {
		b.Fatal(err)
	}
	defer g.Unload()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Step(cfg.Physics.DT)
	}
}

func TestParallelKelpMatchesSerial(t *testing.T) {
	cfg := testConfig(t)
	cfg.Kelp.Count = parallelThreshold + 7

	run := func(workers int) *Game {
		g := newTestGame(t, cfg, Options{Seed: 11, Workers: workers})
		for i := 0; i < 90; i++ {
			g.Step(cfg.Physics.DT)
		}
		return g
	}
	serial, par := run(1), run(4)

	for i := 0; i < serial.kelp.Len(); i++ {
		if !reflect.DeepEqual(serial.kelp.Chain(i).Points, par.kelp.Chain(i).Points) {
			t.Fatalf("kelp %d diverged between serial and parallel updates", i)
		}
	}
	if !par.parallel.running {
		t.Error("worker pool was never started")
	}
}
