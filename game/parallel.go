package game

import (
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/aquarium/systems"
)

// parallelThreshold is the minimum kelp chain count to use parallel processing.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 32

// workChunk represents a range of kelp chains for a worker to process.
type workChunk struct {
	start, end int
	dt, t      float64
}

// parallelState holds the worker pool for kelp updates. Each worker writes
// only its own result slot; the agent snapshot is read-only while chunks run.
type parallelState struct {
	kelp    *systems.KelpSystem
	agents  []r3.Vec
	results []systems.KelpStats

	numWorkers int

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan int       // workers report their index on completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

func newParallelState(kelp *systems.KelpSystem, numWorkers int) *parallelState {
	if numWorkers < 1 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	return &parallelState{
		kelp:       kelp,
		numWorkers: numWorkers,
		results:    make([]systems.KelpStats, numWorkers),
	}
}

// startWorkers launches persistent worker goroutines.
func (p *parallelState) startWorkers() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan int, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// stopWorkers signals all workers to exit and waits for them.
func (p *parallelState) stopWorkers() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *parallelState) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			st := p.kelp.UpdateRange(chunk.start, chunk.end, chunk.dt, chunk.t, p.agents)
			res := &p.results[id]
			res.Pushes += st.Pushes
			res.MaxJointError = math.Max(res.MaxJointError, st.MaxJointError)
			p.doneChan <- id
		}
	}
}

// updateKelp advances every chain, splitting the work across the pool once
// there are enough chains to pay for the hand-off.
func (p *parallelState) updateKelp(dt, t float64, agents []r3.Vec) systems.KelpStats {
	n := p.kelp.Len()
	if n < parallelThreshold || p.numWorkers == 1 {
		return p.kelp.Update(dt, t, agents)
	}
	if !p.running {
		p.startWorkers()
	}

	p.agents = agents
	for i := range p.results {
		p.results[i] = systems.KelpStats{}
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers
	chunksDispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}
		p.workChan <- workChunk{start: start, end: end, dt: dt, t: t}
		chunksDispatched++
	}
	for i := 0; i < chunksDispatched; i++ {
		<-p.doneChan
	}
	p.agents = nil

	var stats systems.KelpStats
	for _, r := range p.results {
		stats.Pushes += r.Pushes
		stats.MaxJointError = math.Max(stats.MaxJointError, r.MaxJointError)
	}
	return stats
}
