package telemetry

import "testing"

func hasBookmark(bookmarks []Bookmark, typ BookmarkType) bool {
	for _, bm := range bookmarks {
		if bm.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_WaterStorm(t *testing.T) {
	bd := NewBookmarkDetector(10)
	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{WindowEndTick: int32(i * 600), FishCount: 40, WaterEnergy: 0.01, WaterMaxHeight: 0.01})
	}

	bookmarks := bd.Check(WindowStats{WindowEndTick: 3000, FishCount: 40, WaterEnergy: 0.05, WaterMaxHeight: 0.05})
	if !hasBookmark(bookmarks, BookmarkWaterStorm) {
		t.Error("expected water_storm bookmark")
	}

	// Within the normal range nothing fires.
	bookmarks = bd.Check(WindowStats{WindowEndTick: 3600, FishCount: 40, WaterEnergy: 0.012, WaterMaxHeight: 0.01})
	if hasBookmark(bookmarks, BookmarkWaterStorm) {
		t.Error("unexpected water_storm bookmark")
	}
}

func TestBookmarkDetector_Crowding(t *testing.T) {
	bd := NewBookmarkDetector(10)
	for i := 0; i < 4; i++ {
		bd.Check(WindowStats{WindowEndTick: int32(i * 600), FishCount: 40, Bounces: 20})
	}
	bookmarks := bd.Check(WindowStats{WindowEndTick: 2400, FishCount: 40, Bounces: 90})
	if !hasBookmark(bookmarks, BookmarkCrowding) {
		t.Error("expected crowding bookmark")
	}
}

func TestBookmarkDetector_PopulationShift(t *testing.T) {
	bd := NewBookmarkDetector(10)
	bd.Check(WindowStats{WindowEndTick: 600, FishCount: 100})

	if bookmarks := bd.Check(WindowStats{WindowEndTick: 1200, FishCount: 90}); hasBookmark(bookmarks, BookmarkPopulationShift) {
		t.Error("10% change should not be bookmarked")
	}
	if bookmarks := bd.Check(WindowStats{WindowEndTick: 1800, FishCount: 40}); !hasBookmark(bookmarks, BookmarkPopulationShift) {
		t.Error("expected population_shift bookmark for a 55% drop")
	}
}

func TestBookmarkDetector_SandScarred(t *testing.T) {
	bd := NewBookmarkDetector(10)
	bookmarks := bd.Check(WindowStats{WindowEndTick: 600, Deformations: 2, SandDisplacement: 0.4})
	if !hasBookmark(bookmarks, BookmarkSandScarred) {
		t.Error("expected sand_scarred bookmark on first deformation")
	}
	bookmarks = bd.Check(WindowStats{WindowEndTick: 1200, Deformations: 1, SandDisplacement: 0.5})
	if hasBookmark(bookmarks, BookmarkSandScarred) {
		t.Error("similar displacement should not re-trigger")
	}
}

func TestBookmarkDetector_CalmWaterFiresOnce(t *testing.T) {
	bd := NewBookmarkDetector(10)
	fired := 0
	for i := 0; i < 12; i++ {
		bookmarks := bd.Check(WindowStats{WindowEndTick: int32(i * 600), FishCount: 10})
		if hasBookmark(bookmarks, BookmarkCalmWater) {
			fired++
			if i != 4 {
				t.Errorf("calm_water fired at window %d, want 4", i)
			}
		}
	}
	if fired != 1 {
		t.Errorf("calm_water fired %d times, want 1", fired)
	}
}
