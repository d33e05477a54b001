// Package agent drives a game with a Q-learning agent: it encodes the board,
// picks relative moves, shapes rewards and trains from experience replay.
package agent

import (
	"log"

	"snake-dqn/config"
	"snake-dqn/game"
	"snake-dqn/game/types"
	"snake-dqn/qlearning"

	"golang.org/x/exp/rand"
)

// SnakeAgent learns to play one game at a time. Its model, memory and
// counters outlive game resets.
type SnakeAgent struct {
	Model   qlearning.Approximator
	Trainer *qlearning.Trainer
	Memory  *qlearning.ReplayBuffer
	Policy  *qlearning.EpsilonGreedy
	Reward  *RewardFunction

	BatchSize int

	// Games counts finished episodes, Record is the best score among them.
	Games      int
	Record     int
	totalScore int

	rng *rand.Rand
}

// Outcome describes one Step.
type Outcome struct {
	Action []float64
	Reward float64
	Done   bool
	// Score and Steps are taken before a terminal step resets the game.
	Score int
	Steps int
}

// DeriveSeed gives the agent a random stream apart from the one of the
// game seeded with seed.
func DeriveSeed(seed uint64) uint64 {
	return seed ^ 0x9e3779b97f4a7c15
}

// New builds an agent with the approximator named in cfg.Model.
func New(cfg config.Agent, seed uint64) (*SnakeAgent, error) {
	model, err := qlearning.NewModel(cfg.Model, qlearning.DQNConfig{
		Inputs:       StateSize,
		Hidden:       cfg.Hidden,
		Outputs:      qlearning.NumActions,
		LearningRate: cfg.LearningRate,
		MaxBatch:     cfg.BatchSize,
	})
	if err != nil {
		return nil, err
	}
	return NewWithModel(model, cfg, seed), nil
}

// NewWithModel builds an agent around an existing approximator.
func NewWithModel(model qlearning.Approximator, cfg config.Agent, seed uint64) *SnakeAgent {
	rng := rand.New(rand.NewSource(seed))
	return &SnakeAgent{
		Model:     model,
		Trainer:   qlearning.NewTrainer(model, cfg.Gamma),
		Memory:    qlearning.NewReplayBuffer(cfg.MaxMemory),
		Policy:    qlearning.NewEpsilonGreedy(cfg.EpsilonStart, cfg.EpsilonDecay, cfg.EpsilonMin, rng),
		Reward:    NewRewardFunction(cfg),
		BatchSize: cfg.BatchSize,
		rng:       rng,
	}
}

// GetState encodes g as the model input.
func (a *SnakeAgent) GetState(g *game.Game) []float64 {
	return GetState(g)
}

// GetAction returns a one-hot move: straight, turn right or turn left.
func (a *SnakeAgent) GetAction(state []float64) ([]float64, error) {
	return a.Policy.Select(a.Model, state, a.Games)
}

// Epsilon is the current exploration rate.
func (a *SnakeAgent) Epsilon() float64 {
	return a.Policy.Epsilon(a.Games)
}

// CalculateReward scores the step g just took.
func (a *SnakeAgent) CalculateReward(g *game.Game, done bool) float64 {
	return a.Reward.Calculate(g, done)
}

// TrainShortMemory fits the model on a single transition.
func (a *SnakeAgent) TrainShortMemory(tr qlearning.Transition) error {
	_, err := a.Trainer.TrainStep(tr)
	return err
}

// Remember stores a transition for replay.
func (a *SnakeAgent) Remember(tr qlearning.Transition) {
	a.Memory.Add(tr)
}

// TrainLongMemory replays a random batch from memory, or all of it when
// it holds no more than BatchSize transitions.
func (a *SnakeAgent) TrainLongMemory() error {
	_, err := a.Trainer.TrainBatch(a.Memory.Sample(a.BatchSize, a.rng))
	return err
}

// AverageScore is the mean score over finished episodes.
func (a *SnakeAgent) AverageScore() float64 {
	if a.Games == 0 {
		return 0
	}
	return float64(a.totalScore) / float64(a.Games)
}

// Absolute turns a relative move into a heading.
func Absolute(heading types.Direction, action []float64) types.Direction {
	switch qlearning.Greedy(action) {
	case qlearning.TurnRight:
		return heading.TurnRight()
	case qlearning.TurnLeft:
		return heading.TurnLeft()
	default:
		return heading
	}
}

// Step plays and learns from one tick of g. When the tick ends the
// episode the agent replays its memory, updates its counters and resets g.
func (a *SnakeAgent) Step(g *game.Game) (Outcome, error) {
	state := a.GetState(g)
	action, err := a.GetAction(state)
	if err != nil {
		return Outcome{}, err
	}
	if err := g.QueueChange(Absolute(g.Heading(), action)); err != nil {
		return Outcome{}, err
	}
	a.Reward.Observe(g)
	g.Step()

	next := a.GetState(g)
	done := !g.Running()
	reward := a.CalculateReward(g, done)
	out := Outcome{Action: action, Reward: reward, Done: done, Score: g.Score(), Steps: g.Steps()}

	tr := qlearning.Transition{State: state, Action: action, Reward: reward, NextState: next, Done: done}
	if err := a.TrainShortMemory(tr); err != nil {
		return out, err
	}
	a.Remember(tr)

	if !done {
		return out, nil
	}
	if err := a.TrainLongMemory(); err != nil {
		return out, err
	}
	a.Games++
	a.totalScore += out.Score
	if out.Score > a.Record {
		a.Record = out.Score
	}
	log.Printf("game: %d, score: %d, record: %d, average: %.2f", a.Games, out.Score, a.Record, a.AverageScore())

	g.Reset()
	a.Reward.Reset(g)
	return out, nil
}
