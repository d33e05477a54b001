// Package training runs the tick loop of one game and its learning agent.
package training

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"snake-dqn/agent"
	"snake-dqn/config"
	"snake-dqn/game"
	"snake-dqn/stats"

	"github.com/pkg/errors"
)

// Manager owns a Game and a SnakeAgent. Only the goroutine inside Run or
// Train mutates them; the other methods are safe to call concurrently.
type Manager struct {
	ID string

	game  *game.Game
	agent *agent.SnakeAgent
	stats *stats.GameStats
	cfg   config.Training

	delay     atomic.Int64
	snapshots chan game.Snapshot

	mutex        sync.RWMutex
	episodeStart time.Time
}

// Summary is a read-only view of a manager's progress.
type Summary struct {
	ID      string        `json:"id"`
	Games   int           `json:"games"`
	Record  int           `json:"record"`
	Score   int           `json:"score"`
	Average float64       `json:"average"`
	Epsilon float64       `json:"epsilon"`
	Memory  int           `json:"memory"`
	Delay   float64       `json:"delay"`
	Stats   stats.Summary `json:"stats"`
}

// NewManager pairs g and a. A nil st starts fresh statistics.
func NewManager(g *game.Game, a *agent.SnakeAgent, st *stats.GameStats, cfg config.Training) *Manager {
	if st == nil {
		st = stats.NewGameStats()
	}
	m := &Manager{
		ID:           g.UUID,
		game:         g,
		agent:        a,
		stats:        st,
		cfg:          cfg,
		snapshots:    make(chan game.Snapshot, 1),
		episodeStart: time.Now(),
	}
	m.delay.Store(int64(g.Tick))
	return m
}

// SetDelay changes the pause between ticks of Run. It applies from the next tick.
func (m *Manager) SetDelay(d time.Duration) {
	if d < 0 {
		d = 0
	}
	m.delay.Store(int64(d))
}

// Delay is the current pause between ticks.
func (m *Manager) Delay() time.Duration {
	return time.Duration(m.delay.Load())
}

// Snapshots carries the latest game state after every tick of Run.
// A slow reader only misses intermediate states.
func (m *Manager) Snapshots() <-chan game.Snapshot {
	return m.snapshots
}

// Snapshot returns the current game state.
func (m *Manager) Snapshot() game.Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	s := m.game.Snapshot()
	s.Tick = m.Delay().Seconds()
	return s
}

// Summary reports the progress of the agent and its game.
func (m *Manager) Summary() Summary {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return Summary{
		ID:      m.ID,
		Games:   m.agent.Games,
		Record:  m.agent.Record,
		Score:   m.game.Score(),
		Average: m.agent.AverageScore(),
		Epsilon: m.agent.Epsilon(),
		Memory:  m.agent.Memory.Len(),
		Delay:   m.Delay().Seconds(),
		Stats:   m.stats.Summary(),
	}
}

func (m *Manager) games() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.agent.Games
}

// tick advances the game one step and does the episode bookkeeping.
func (m *Manager) tick() (agent.Outcome, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	out, err := m.agent.Step(m.game)
	if err != nil {
		return out, errors.Wrap(err, "agent step")
	}
	if out.Done {
		now := time.Now()
		m.stats.AddGame(out.Score, out.Steps, m.episodeStart, now)
		m.episodeStart = now
		if m.cfg.SaveEvery > 0 && m.agent.Games%m.cfg.SaveEvery == 0 {
			if err := m.save(); err != nil {
				log.Printf("failed to save at episode %d: %v", m.agent.Games, err)
			} else {
				log.Printf("saved at episode %d", m.agent.Games)
			}
		}
	}
	return out, nil
}

func (m *Manager) publish() {
	s := m.Snapshot()
	select {
	case m.snapshots <- s:
		return
	default:
	}
	// Drop the stale state and retry; Run is the only sender.
	select {
	case <-m.snapshots:
	default:
	}
	select {
	case m.snapshots <- s:
	default:
	}
}

// Run ticks until ctx is done, waiting Delay minus the time spent on each
// tick. On cancellation it saves and returns; a step error stops the loop.
func (m *Manager) Run(ctx context.Context) error {
	m.publish()
	for {
		select {
		case <-ctx.Done():
			return m.Save()
		default:
		}

		start := time.Now()
		if _, err := m.tick(); err != nil {
			return err
		}
		m.publish()

		wait := m.Delay() - time.Since(start)
		if wait <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return m.Save()
		case <-time.After(wait):
		}
	}
}

// Train plays the given number of further episodes without pausing, then saves.
func (m *Manager) Train(ctx context.Context, episodes int) (Summary, error) {
	target := m.games() + episodes
	for m.games() < target {
		if err := ctx.Err(); err != nil {
			return m.Summary(), err
		}
		if _, err := m.tick(); err != nil {
			return m.Summary(), err
		}
	}
	if err := m.Save(); err != nil {
		return m.Summary(), err
	}
	return m.Summary(), nil
}

// Save writes the model weights and statistics to the configured files.
// Empty paths are skipped.
func (m *Manager) Save() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.save()
}

func (m *Manager) save() error {
	if m.cfg.WeightsFile != "" {
		if err := m.agent.Model.SaveWeights(m.cfg.WeightsFile); err != nil {
			return err
		}
	}
	if m.cfg.StatsFile != "" {
		if err := m.stats.Save(m.cfg.StatsFile); err != nil {
			return err
		}
	}
	return nil
}
