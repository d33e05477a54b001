package stats

import (
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGameStats(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	Convey("Given a few games", t, func() {
		s := NewGameStats()
		for i, score := range []int{1, 5, 3, 0} {
			at := start.Add(time.Duration(i) * time.Minute)
			s.AddGame(score, 10*(i+1), at, at.Add(time.Second))
		}

		Convey("The summary covers them all", func() {
			sum := s.Summary()
			So(sum.Games, ShouldEqual, 4)
			So(sum.AverageScore, ShouldAlmostEqual, 2.25)
			So(sum.MedianScore, ShouldAlmostEqual, 2)
			So(sum.MaxScore, ShouldEqual, 5)
			So(sum.AverageSteps, ShouldAlmostEqual, 25)
		})

		Convey("They survive a save and load", func() {
			path := filepath.Join(t.TempDir(), "data", "stats.json")
			So(s.Save(path), ShouldBeNil)
			loaded := NewGameStats()
			So(loaded.Load(path), ShouldBeNil)
			So(loaded.Summary(), ShouldResemble, s.Summary())
		})
	})

	Convey("An empty history summarises to zero", t, func() {
		So(NewGameStats().Summary(), ShouldResemble, Summary{})
	})

	Convey("Loading a missing file keeps the stats empty", t, func() {
		s := NewGameStats()
		So(s.Load(filepath.Join(t.TempDir(), "none.json")), ShouldBeNil)
		So(s.Records(), ShouldBeEmpty)
	})

	Convey("Every GroupSize games fold into one record", t, func() {
		s := NewGameStats()
		total := GroupSize*2 + 7
		for i := 0; i < total; i++ {
			at := start.Add(time.Duration(i) * time.Second)
			s.AddGame(i%10, 1, at, at)
		}
		records := s.Records()
		So(records, ShouldHaveLength, 2+7)
		So(records[0].Level, ShouldEqual, 1)
		So(records[0].GamesCount, ShouldEqual, GroupSize)
		So(records[0].AverageScore, ShouldAlmostEqual, 4.5)
		So(records[0].MaxScore, ShouldEqual, 9)
		So(records[0].MinScore, ShouldEqual, 0)
		So(records[0].MedianScore, ShouldAlmostEqual, 4.5)

		sum := s.Summary()
		So(sum.Games, ShouldEqual, total)
		So(sum.MaxScore, ShouldEqual, 9)
	})
}
