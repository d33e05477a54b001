package qlearning

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
)

// Relative moves, indexed as in the one-hot action vector.
const (
	Straight = iota
	TurnRight
	TurnLeft
	NumActions
)

// Default exploration schedule.
const (
	InitialEpsilon = 0.4
	EpsilonDecay   = 0.005
	MinEpsilon     = 0.0
)

// OneHot encodes move as a NumActions vector.
func OneHot(move int) []float64 {
	v := make([]float64, NumActions)
	v[move] = 1
	return v
}

// EpsilonGreedy picks a random move with probability Epsilon(episodes),
// otherwise the move with the highest predicted value.
type EpsilonGreedy struct {
	Initial float64
	Decay   float64
	Min     float64

	rng *rand.Rand
}

// NewEpsilonGreedy draws random moves from rng.
func NewEpsilonGreedy(initial, decay, minimum float64, rng *rand.Rand) *EpsilonGreedy {
	return &EpsilonGreedy{Initial: initial, Decay: decay, Min: minimum, rng: rng}
}

// Epsilon decays linearly with the number of finished episodes.
func (p *EpsilonGreedy) Epsilon(episodes int) float64 {
	eps := p.Initial - float64(episodes)*p.Decay
	if eps < p.Min {
		return p.Min
	}
	return eps
}

// Select returns the chosen move as a one-hot vector.
func (p *EpsilonGreedy) Select(model Approximator, state []float64, episodes int) ([]float64, error) {
	if p.rng.Float64() < p.Epsilon(episodes) {
		return OneHot(p.rng.Intn(NumActions)), nil
	}
	q, err := model.Predict([][]float64{state})
	if err != nil {
		return nil, err
	}
	return OneHot(Greedy(q[0])), nil
}

// Greedy returns the index of the largest value; ties go to the lowest index.
func Greedy(q []float64) int {
	return floats.MaxIdx(q)
}
