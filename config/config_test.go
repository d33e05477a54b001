package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

func newFlags(args ...string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	if err := fs.Parse(args); err != nil {
		panic(err)
	}
	return fs
}

func TestLoad(t *testing.T) {
	Convey("Without flags the defaults apply", t, func() {
		cfg, err := Load(nil)
		So(err, ShouldBeNil)
		want := Defaults()
		want.Training.WeightsFile = filepath.Join("model", "dqn_weights.gob")
		So(*cfg, ShouldResemble, want)
		So(cfg.Agent.RewardAway, ShouldEqual, -1.5)
		So(cfg.Game.Tick, ShouldEqual, 30*time.Millisecond)
	})

	Convey("Flags override defaults", t, func() {
		cfg, err := Load(newFlags("--width=12", "--tick=5ms", "--model=qtable", "--headless", "--episodes=7", "--seed=3"))
		So(err, ShouldBeNil)
		So(cfg.Game.Width, ShouldEqual, 12)
		So(cfg.Game.Height, ShouldEqual, 19)
		So(cfg.Game.Tick, ShouldEqual, 5*time.Millisecond)
		So(cfg.Game.Seed, ShouldEqual, 3)
		So(cfg.Agent.Model, ShouldEqual, "qtable")
		So(cfg.Training.Headless, ShouldBeTrue)
		So(cfg.Training.Episodes, ShouldEqual, 7)
		So(cfg.Training.WeightsFile, ShouldEqual, filepath.Join("model", "qtable.json"))
	})

	Convey("An explicit weights file is kept whatever the model", t, func() {
		cfg, err := Load(newFlags("--model=qtable", "--weights=w.bin"))
		So(err, ShouldBeNil)
		So(cfg.Training.WeightsFile, ShouldEqual, "w.bin")
	})

	Convey("Given a config file", t, func() {
		path := filepath.Join(t.TempDir(), "snake.yaml")
		content := "game:\n  width: 40\n  tick: 100ms\nagent:\n  reward_away: -1\n  batch_size: 64\n"
		So(os.WriteFile(path, []byte(content), 0644), ShouldBeNil)

		Convey("Its values replace the defaults", func() {
			cfg, err := Load(newFlags("--config", path))
			So(err, ShouldBeNil)
			So(cfg.Game.Width, ShouldEqual, 40)
			So(cfg.Game.Tick, ShouldEqual, 100*time.Millisecond)
			So(cfg.Agent.RewardAway, ShouldEqual, -1)
			So(cfg.Agent.BatchSize, ShouldEqual, 64)
			So(cfg.Agent.Gamma, ShouldEqual, 0.9)
		})

		Convey("Changed flags still win over the file", func() {
			cfg, err := Load(newFlags("--config", path, "--width=8"))
			So(err, ShouldBeNil)
			So(cfg.Game.Width, ShouldEqual, 8)
		})
	})

	Convey("A missing config file is an error", t, func() {
		_, err := Load(newFlags("--config", filepath.Join(t.TempDir(), "missing.yaml")))
		So(err, ShouldNotBeNil)
	})

	Convey("Invalid settings are rejected", t, func() {
		_, err := Load(newFlags("--width=1"))
		So(err, ShouldNotBeNil)
		_, err = Load(newFlags("--model=forest"))
		So(err, ShouldNotBeNil)
		_, err = Load(newFlags("--width=200", "--height=100"))
		So(err, ShouldNotBeNil)
	})
}

func TestCheckGrid(t *testing.T) {
	Convey("Given the default cell limit", t, func() {
		g := Defaults().Game

		Convey("Grids up to the limit pass", func() {
			So(g.CheckGrid(2, 2), ShouldBeNil)
			So(g.CheckGrid(100, 100), ShouldBeNil)
		})

		Convey("Larger grids are rejected without overflowing", func() {
			So(g.CheckGrid(101, 100), ShouldNotBeNil)
			So(g.CheckGrid(50000, 50000), ShouldNotBeNil)
			So(g.CheckGrid(1<<32, 1<<32), ShouldNotBeNil)
		})

		Convey("So are degenerate ones", func() {
			So(g.CheckGrid(1, 5), ShouldNotBeNil)
			So(g.CheckGrid(5, 0), ShouldNotBeNil)
		})

		Convey("A zero limit disables the upper bound", func() {
			g.MaxCells = 0
			So(g.CheckGrid(500, 500), ShouldBeNil)
		})
	})
}

func TestYAML(t *testing.T) {
	Convey("The rendered config reads back to the same values", t, func() {
		cfg := Defaults()
		data, err := cfg.YAML()
		So(err, ShouldBeNil)
		So(string(data), ShouldContainSubstring, "reward_away: -1.5")

		var back Config
		So(yaml.Unmarshal(data, &back), ShouldBeNil)
		So(back, ShouldResemble, cfg)
	})
}
