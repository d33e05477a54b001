package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"snake-dqn/agent"
	"snake-dqn/config"
	"snake-dqn/game"
	"snake-dqn/server"
	"snake-dqn/stats"
	"snake-dqn/training"

	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	config.Flags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if show, _ := fs.GetBool("print-config"); show {
		out, err := cfg.YAML()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		fmt.Print(string(out))
		return
	}
	if cfg.Game.Seed == 0 {
		cfg.Game.Seed = uint64(time.Now().UnixNano())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Training.Headless {
		err = train(ctx, cfg)
	} else {
		err = server.New(*cfg).ListenAndServe(ctx)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// train runs headless episodes, resuming from saved weights and stats when present.
func train(ctx context.Context, cfg *config.Config) error {
	g := game.NewGame(cfg.Game.Width, cfg.Game.Height, cfg.Game.Seed)
	g.Tick = cfg.Game.Tick

	a, err := agent.New(cfg.Agent, agent.DeriveSeed(cfg.Game.Seed))
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.Training.WeightsFile); err == nil {
		if err := a.Model.LoadWeights(cfg.Training.WeightsFile); err != nil {
			return err
		}
	}

	st := stats.NewGameStats()
	if cfg.Training.StatsFile != "" {
		if err := st.Load(cfg.Training.StatsFile); err != nil {
			return err
		}
	}

	m := training.NewManager(g, a, st, cfg.Training)
	log.Printf("training %d episodes on a %dx%d grid with %s", cfg.Training.Episodes, cfg.Game.Width, cfg.Game.Height, cfg.Agent.Model)
	sum, err := m.Train(ctx, cfg.Training.Episodes)
	if err == context.Canceled {
		log.Printf("interrupted, saving")
		err = m.Save()
	}
	if err != nil {
		return err
	}
	log.Printf("done: games %d, record %d, average %.2f", sum.Games, sum.Record, sum.Stats.AverageScore)
	return nil
}
