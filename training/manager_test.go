package training

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"snake-dqn/agent"
	"snake-dqn/config"
	"snake-dqn/game"
	"snake-dqn/qlearning"
	"snake-dqn/stats"

	. "github.com/smartystreets/goconvey/convey"
)

func newManager(cfg config.Training) *Manager {
	agentCfg := config.Defaults().Agent
	agentCfg.Model = qlearning.ModelQTable
	agentCfg.LearningRate = 0.1
	agentCfg.BatchSize = 32
	agentCfg.MaxMemory = 1000

	a, err := agent.New(agentCfg, 3)
	if err != nil {
		panic(err)
	}
	g := game.NewGame(6, 6, 3)
	g.Tick = time.Millisecond
	return NewManager(g, a, stats.NewGameStats(), cfg)
}

func TestTrain(t *testing.T) {
	Convey("Given a headless manager", t, func() {
		dir := t.TempDir()
		m := newManager(config.Training{
			WeightsFile: filepath.Join(dir, "model", "weights.json"),
			StatsFile:   filepath.Join(dir, "model", "stats.json"),
			SaveEvery:   2,
		})

		Convey("Train plays exactly the requested episodes", func() {
			sum, err := m.Train(context.Background(), 5)
			So(err, ShouldBeNil)
			So(sum.Games, ShouldEqual, 5)
			So(sum.Stats.Games, ShouldEqual, 5)
			So(sum.Record, ShouldEqual, sum.Stats.MaxScore)
			So(sum.ID, ShouldEqual, m.game.UUID)

			Convey("And writes weights and stats", func() {
				_, err := os.Stat(m.cfg.WeightsFile)
				So(err, ShouldBeNil)
				loaded := stats.NewGameStats()
				So(loaded.Load(m.cfg.StatsFile), ShouldBeNil)
				So(loaded.Summary().Games, ShouldEqual, 5)
			})

			Convey("A second call continues from there", func() {
				sum, err := m.Train(context.Background(), 2)
				So(err, ShouldBeNil)
				So(sum.Games, ShouldEqual, 7)
			})
		})

		Convey("A cancelled context stops training", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			sum, err := m.Train(ctx, 5)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(sum.Games, ShouldEqual, 0)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a manager with a short delay", t, func() {
		m := newManager(config.Training{})
		m.SetDelay(time.Millisecond)
		So(m.Delay(), ShouldEqual, time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- m.Run(ctx) }()

		Convey("It publishes snapshots until cancelled", func() {
			seen := 0
			timeout := time.After(5 * time.Second)
			for seen < 20 {
				select {
				case s := <-m.Snapshots():
					So(s.GridWidth, ShouldEqual, 6)
					So(s.Snake, ShouldNotBeEmpty)
					seen++
				case <-timeout:
					t.Fatal("no snapshots")
				}
			}

			m.SetDelay(2 * time.Millisecond)
			So(m.Summary().Delay, ShouldAlmostEqual, 0.002)

			cancel()
			select {
			case err := <-done:
				So(err, ShouldBeNil)
			case <-time.After(5 * time.Second):
				t.Fatal("Run did not stop")
			}
			So(m.Summary().Memory, ShouldBeGreaterThanOrEqualTo, 19)
		})

		Reset(cancel)
	})

	Convey("Negative delays are clamped", t, func() {
		m := newManager(config.Training{})
		m.SetDelay(-time.Second)
		So(m.Delay(), ShouldEqual, 0)
	})
}
