// Package game owns the simulators and advances them in a fixed tick order.
package game

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/aquarium/config"
	"github.com/pthm-cable/aquarium/geometry"
	"github.com/pthm-cable/aquarium/systems"
	"github.com/pthm-cable/aquarium/telemetry"
)

// Options configures a Game beyond what the config file holds.
type Options struct {
	Seed           int64
	LogStats       bool
	StatsWindowSec float64 // 0 = use config
	OutputDir      string
	StepsPerUpdate int
	Population     int // initial fish count; < 0 = use config
	Workers        int // kelp update goroutines; 0 = GOMAXPROCS

	// StatsCallback, if set, receives every flushed telemetry window.
	StatsCallback func(telemetry.WindowStats)
}

// AgentTransform is what a renderer needs to draw one fish.
type AgentTransform struct {
	Position    r3.Vec
	Velocity    r3.Vec
	Orientation mgl64.Quat // rotates the model snout axis onto the heading
	Phase       float64    // swim animation offset, radians
}

// noPending marks the absence of a queued population edit.
const noPending = -1

// Game owns every simulator and advances them in a fixed order.
type Game struct {
	cfg     *config.Config
	world   *ecs.World
	rng     *rand.Rand
	rngSeed int64

	flock *systems.FlockSystem
	kelp  *systems.KelpSystem
	water *systems.WaterSystem
	sand  *systems.SandSystem

	parallel *parallelState

	creature   *geometry.Mesh
	kelpMeshes []geometry.Submesh

	tick    int32
	simTime float64

	pendingPopulation int
	stepsPerUpdate    int

	// Per-tick snapshot handed to kelp and water.
	agentPos []r3.Vec
	speeds   []float64

	// Telemetry
	perfCollector    *telemetry.PerfCollector
	collector        *telemetry.Collector
	bookmarkDetector *telemetry.BookmarkDetector
	outputManager    *telemetry.OutputManager
	logStats         bool
	statsCallback    func(telemetry.WindowStats)
}

// NewGame validates cfg, builds the creature mesh and creates every simulator.
func NewGame(cfg *config.Config, opts Options) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	shape, res, err := creatureShape(cfg.Creature)
	if err != nil {
		return nil, fmt.Errorf("creature: %w", err)
	}
	mesh, err := geometry.BuildCreature(shape, res)
	if err != nil {
		return nil, fmt.Errorf("building creature mesh: %w", err)
	}

	stepsPerUpdate := opts.StepsPerUpdate
	if stepsPerUpdate < 1 {
		stepsPerUpdate = 1
	}
	statsWindow := cfg.Telemetry.StatsWindow
	if opts.StatsWindowSec > 0 {
		statsWindow = opts.StatsWindowSec
	}

	world := ecs.NewWorld()
	rng := rand.New(rand.NewSource(opts.Seed))

	g := &Game{
		cfg:               cfg,
		world:             world,
		rng:               rng,
		rngSeed:           opts.Seed,
		creature:          mesh,
		pendingPopulation: noPending,
		stepsPerUpdate:    stepsPerUpdate,
		perfCollector:     telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
		collector:         telemetry.NewCollector(statsWindow, cfg.Physics.DT),
		bookmarkDetector:  telemetry.NewBookmarkDetector(10),
		logStats:          opts.LogStats,
		statsCallback:     opts.StatsCallback,
	}

	g.flock = systems.NewFlockSystem(world, flockParams(cfg), rng)
	g.water = systems.NewWaterSystem(cfg.Water.Resolution, cfg.Tank.Width, cfg.Tank.Depth, cfg.Water.WaveSpeed, cfg.Water.Damping)
	g.sand = systems.NewSandSystem(sandParams(cfg), cfg.Tank.Width, cfg.Tank.Depth, cfg.Derived.FloorY, opts.Seed)
	g.kelp = systems.NewKelpSystem(kelpParams(cfg), g.kelpBases(), rng)
	g.parallel = newParallelState(g.kelp, opts.Workers)
	g.rebuildKelpMeshes()

	population := cfg.Flock.Count
	if opts.Population >= 0 {
		population = g.clampPopulation(opts.Population)
	}
	g.flock.Resize(population)

	g.outputManager, err = telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := g.outputManager.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config snapshot", "error", err)
	}

	slog.Info("creature mesh built",
		"vertices", mesh.VertexCount(),
		"triangles", mesh.TriangleCount(),
		"fins", len(shape.Fins),
	)
	return g, nil
}

// kelpBases scatters kelp across the floor inside the motion bounds, each
// base resting on the sand surface.
func (g *Game) kelpBases() []r3.Vec {
	bases := make([]r3.Vec, g.cfg.Kelp.Count)
	for i := range bases {
		x := (g.rng.Float64()*2 - 1) * g.cfg.Derived.BoundsX
		z := (g.rng.Float64()*2 - 1) * g.cfg.Derived.BoundsZ
		bases[i] = r3.Vec{X: x, Y: g.sand.HeightAt(x, z), Z: z}
	}
	return bases
}

// Step advances the simulation by dt seconds, clamped to [0, max_dt].
//
// Order: pending population edit, flock, kelp (against the flock positions
// after this tick's move), water (agent disturbance, then the wave step),
// sand, telemetry.
func (g *Game) Step(dt float64) {
	if dt < 0 || math.IsNaN(dt) {
		dt = 0
	}
	dt = math.Min(dt, g.cfg.Physics.MaxDT)

	g.perfCollector.StartTick()

	g.perfCollector.StartPhase(telemetry.PhasePopulation)
	g.applyPendingPopulation()

	g.perfCollector.StartPhase(telemetry.PhaseFlock)
	fs := g.flock.Update(dt)
	g.collector.RecordFlock(fs.Retargets, fs.Bounces)
	g.agentPos = g.flock.Positions(g.agentPos[:0])

	t := g.simTime + dt

	g.perfCollector.StartPhase(telemetry.PhaseKelp)
	ks := g.parallel.updateKelp(dt, t, g.agentPos)
	g.collector.RecordKelp(ks.Pushes, ks.MaxJointError)
	g.rebuildKelpMeshes()

	g.perfCollector.StartPhase(telemetry.PhaseWater)
	g.collector.RecordDisturbances(g.disturbWaterFromAgents())
	g.water.Update(dt)

	g.perfCollector.StartPhase(telemetry.PhaseSand)
	g.sand.Update(dt)

	g.tick++
	g.simTime = t

	g.perfCollector.StartPhase(telemetry.PhaseTelemetry)
	g.flushTelemetry()

	g.perfCollector.EndTick()
}

// UpdateHeadless runs StepsPerUpdate ticks of physics.dt.
func (g *Game) UpdateHeadless() {
	for i := 0; i < g.stepsPerUpdate; i++ {
		g.Step(g.cfg.Physics.DT)
	}
}

// disturbWaterFromAgents lets fish near the surface push it up, harder the
// closer they swim. Returns the number of impulses applied.
func (g *Game) disturbWaterFromAgents() int {
	band := g.cfg.Water.SurfaceBand
	strength := g.cfg.Water.AgentDisturbance
	if band <= 0 || strength == 0 {
		return 0
	}
	n := 0
	for _, p := range g.agentPos {
		depth := g.cfg.Derived.SurfaceY - p.Y
		if depth < 0 || depth >= band {
			continue
		}
		g.water.Disturb(p.X, p.Z, strength*(1-depth/band))
		n++
	}
	return n
}

func (g *Game) rebuildKelpMeshes() {
	g.kelpMeshes = g.kelpMeshes[:0]
	for i := 0; i < g.kelp.Len(); i++ {
		g.kelpMeshes = append(g.kelpMeshes, g.kelp.Ribbon(i))
	}
}

func (g *Game) clampPopulation(n int) int {
	return max(g.cfg.Flock.MinCount, min(n, g.cfg.Flock.MaxCount))
}

// SetPopulation queues a fish count change for the next tick boundary and
// returns the count that will be applied after clamping to the configured
// range. A later call before the next tick replaces an earlier one.
func (g *Game) SetPopulation(n int) int {
	n = g.clampPopulation(n)
	g.pendingPopulation = n
	return n
}

func (g *Game) applyPendingPopulation() {
	if g.pendingPopulation == noPending {
		return
	}
	n := g.pendingPopulation
	g.pendingPopulation = noPending
	if n == g.flock.Len() {
		return
	}
	from := g.flock.Len()
	g.flock.Resize(n)
	g.collector.RecordPopulationChange()
	slog.Info("population changed", "tick", g.tick, "from", from, "to", n)
}

// Disturb adds an impulse to the water surface above (x, z).
func (g *Game) Disturb(x, z, strength float64) {
	g.water.Disturb(x, z, strength)
	g.collector.RecordDisturbances(1)
}

// DeformSand presses a dent into the floor at (x, z).
func (g *Game) DeformSand(x, z, strength, radius float64) {
	if g.sand.Deform(x, z, strength, radius) > 0 {
		g.collector.RecordDeformation()
	}
}

// CreatureMesh returns the mesh built at startup. Shared by every fish.
func (g *Game) CreatureMesh() *geometry.Mesh { return g.creature }

// Agents returns the current transform of every fish in creation order.
func (g *Game) Agents() []AgentTransform {
	out := make([]AgentTransform, g.flock.Len())
	for i := range out {
		a := g.flock.Agent(i)
		out[i] = AgentTransform{
			Position:    a.Position,
			Velocity:    a.Velocity,
			Orientation: a.Heading,
			Phase:       a.Phase,
		}
	}
	return out
}

// KelpMeshes returns the kelp ribbons rebuilt on the last tick. Read only.
func (g *Game) KelpMeshes() []geometry.Submesh { return g.kelpMeshes }

// WaterHeights returns the surface heights, row-major by Z, and the grid
// resolution. Read only.
func (g *Game) WaterHeights() ([]float64, int) { return g.water.Heights(), g.water.Resolution() }

// SandHeights returns the floor heights relative to the tank bottom,
// row-major by Z, and the grid resolution. Read only.
func (g *Game) SandHeights() ([]float64, int) { return g.sand.Heights(), g.sand.Resolution() }

// SandHeightAt returns the world height of the floor under (x, z).
func (g *Game) SandHeightAt(x, z float64) float64 { return g.sand.HeightAt(x, z) }

// WaterEnergy returns the current surface energy.
func (g *Game) WaterEnergy() float64 { return g.water.Energy() }

// Population returns the live fish count.
func (g *Game) Population() int { return g.flock.Len() }

// Tick returns the current simulation tick.
func (g *Game) Tick() int32 { return g.tick }

// SimTime returns the simulated seconds elapsed.
func (g *Game) SimTime() float64 { return g.simTime }

// Seed returns the RNG seed the game was created with.
func (g *Game) Seed() int64 { return g.rngSeed }

// Unload stops the worker pool and closes outputs.
func (g *Game) Unload() {
	g.parallel.stopWorkers()
	if g.logStats {
		g.logPerfStats()
	}
	if err := g.outputManager.Close(); err != nil {
		slog.Error("failed to close output", "error", err)
	}
}
