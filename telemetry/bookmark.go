package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkWaterStorm      BookmarkType = "water_storm"
	BookmarkCrowding        BookmarkType = "crowding"
	BookmarkPopulationShift BookmarkType = "population_shift"
	BookmarkSandScarred     BookmarkType = "sand_scarred"
	BookmarkCalmWater       BookmarkType = "calm_water"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Tick        int32        `csv:"tick"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector flags windows that differ sharply from recent history.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	calmWindows int // consecutive windows with near-flat water
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark
	history := bd.getHistory()

	checks := []func(WindowStats, []WindowStats) *Bookmark{
		bd.checkWaterStorm,
		bd.checkCrowding,
		bd.checkPopulationShift,
		bd.checkSandScarred,
		bd.checkCalmWater,
	}
	for _, check := range checks {
		if b := check(stats, history); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	bd.addToHistory(stats)
	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

func meanOf(history []WindowStats, field func(WindowStats) float64) float64 {
	if len(history) == 0 {
		return 0
	}
	var sum float64
	for _, h := range history {
		sum += field(h)
	}
	return sum / float64(len(history))
}

// checkWaterStorm fires when surface energy is more than 3x the recent average.
func (bd *BookmarkDetector) checkWaterStorm(stats WindowStats, history []WindowStats) *Bookmark {
	if len(history) < 3 {
		return nil
	}
	avg := meanOf(history, func(w WindowStats) float64 { return w.WaterEnergy })
	if avg <= 0 || stats.WaterEnergy <= avg*3 || stats.WaterEnergy < 1e-3 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkWaterStorm,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("Water energy %.4f is %.1fx average (%.4f)", stats.WaterEnergy, stats.WaterEnergy/avg, avg),
	}
}

// checkCrowding fires when wall bounces per fish double against history.
func (bd *BookmarkDetector) checkCrowding(stats WindowStats, history []WindowStats) *Bookmark {
	if len(history) < 3 || stats.FishCount == 0 {
		return nil
	}
	perFish := func(w WindowStats) float64 {
		if w.FishCount == 0 {
			return 0
		}
		return float64(w.Bounces) / float64(w.FishCount)
	}
	avg := meanOf(history, perFish)
	cur := perFish(stats)
	if avg <= 0 || cur <= avg*2 || stats.Bounces < 10 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkCrowding,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("Bounces per fish %.2f is %.1fx average (%.2f)", cur, cur/avg, avg),
	}
}

// checkPopulationShift fires when the fish count moved by more than 30%
// since the previous window.
func (bd *BookmarkDetector) checkPopulationShift(stats WindowStats, history []WindowStats) *Bookmark {
	if len(history) == 0 {
		return nil
	}
	prevIdx := (bd.historyIdx - 1 + bd.historySize) % bd.historySize
	prev := bd.history[prevIdx].FishCount
	if prev == 0 {
		return nil
	}
	change := float64(stats.FishCount-prev) / float64(prev)
	if change > -0.3 && change < 0.3 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkPopulationShift,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("Fish count changed %+.0f%% from %d to %d", change*100, prev, stats.FishCount),
	}
}

// checkSandScarred fires on the first window whose sand displacement is
// twice the recent average.
func (bd *BookmarkDetector) checkSandScarred(stats WindowStats, history []WindowStats) *Bookmark {
	if stats.Deformations == 0 || stats.SandDisplacement <= 0 {
		return nil
	}
	avg := meanOf(history, func(w WindowStats) float64 { return w.SandDisplacement })
	if len(history) > 0 && stats.SandDisplacement <= avg*2 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkSandScarred,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("Sand displaced %.3f after %d deformations", stats.SandDisplacement, stats.Deformations),
	}
}

// checkCalmWater fires once after five consecutive windows of near-flat water.
func (bd *BookmarkDetector) checkCalmWater(stats WindowStats, _ []WindowStats) *Bookmark {
	if stats.WaterMaxHeight < 1e-3 {
		bd.calmWindows++
	} else {
		bd.calmWindows = 0
	}
	if bd.calmWindows != 5 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkCalmWater,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("Water surface calm for 5 windows (max height %.5f)", stats.WaterMaxHeight),
	}
}
