package agent

import (
	"snake-dqn/config"
	"snake-dqn/game"
	"snake-dqn/game/types"
)

// RewardFunction shapes rewards from the head-to-food distance. It keeps
// the previous distance and snake length between calls, so one instance
// must follow a single game.
type RewardFunction struct {
	Closer float64
	Away   float64
	Food   float64
	Death  float64

	prevDistance int
	known        bool
	// prevLength is the snake length before the step, 0 until recorded.
	prevLength int
}

// NewRewardFunction takes the reward values from cfg.
func NewRewardFunction(cfg config.Agent) *RewardFunction {
	return &RewardFunction{
		Closer: cfg.RewardCloser,
		Away:   cfg.RewardAway,
		Food:   cfg.RewardFood,
		Death:  cfg.RewardDeath,
	}
}

// Observe records the snake length of g before it steps.
func (r *RewardFunction) Observe(g *game.Game) {
	r.prevLength = g.Snake().Len()
}

// Calculate scores the step that just happened. done marks a terminal step.
// Food is only detected against a length recorded by Observe, Reset or a
// previous call.
func (r *RewardFunction) Calculate(g *game.Game, done bool) float64 {
	snake := g.Snake()
	distance := types.Manhattan(snake.Head(), g.Food())

	var reward float64
	if r.known {
		switch {
		case distance < r.prevDistance:
			reward += r.Closer
		case distance > r.prevDistance:
			reward += r.Away
		}
	}
	r.prevDistance, r.known = distance, true

	// The food moved; distances to the old cell mean nothing now.
	if (r.prevLength > 0 && snake.Len() > r.prevLength) || snake.Grow {
		reward += r.Food
		r.known = false
	}
	r.prevLength = snake.Len()

	if done {
		reward += r.Death
		r.known = false
	}
	return reward
}

// Reset forgets the previous distance and takes the length from g.
func (r *RewardFunction) Reset(g *game.Game) {
	r.known = false
	r.prevLength = g.Snake().Len()
}
