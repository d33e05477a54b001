package qlearning

import (
	"errors"

	"gonum.org/v1/gonum/floats"
)

// DefaultGamma is the discount applied to the next state's value.
const DefaultGamma = 0.9

var (
	// ErrBatchTooLarge is returned when a fit batch exceeds the model capacity.
	ErrBatchTooLarge = errors.New("batch too large")
	// ErrShapeMismatch is returned for vectors or weights of the wrong size.
	ErrShapeMismatch = errors.New("shape mismatch")
)

// Approximator maps states to one value per move and can be fitted
// toward target values.
type Approximator interface {
	// Predict returns one row of NumActions values per state.
	Predict(states [][]float64) ([][]float64, error)
	// Fit performs one optimisation step and returns the loss before it.
	Fit(states, targets [][]float64) (float64, error)
	SaveWeights(filename string) error
	LoadWeights(filename string) error
}

// Trainer applies the Q-learning update to an approximator.
type Trainer struct {
	Model Approximator
	Gamma float64
}

// NewTrainer discounts future values by gamma.
func NewTrainer(model Approximator, gamma float64) *Trainer {
	return &Trainer{Model: model, Gamma: gamma}
}

// TrainStep updates the model on a single transition.
func (t *Trainer) TrainStep(tr Transition) (float64, error) {
	return t.TrainBatch([]Transition{tr})
}

// TrainBatch moves the value of each taken action toward
// r + gamma * max Q(s'), or r alone on terminal transitions.
// Other actions keep their current prediction as target.
func (t *Trainer) TrainBatch(batch []Transition) (float64, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	states := make([][]float64, len(batch))
	nextStates := make([][]float64, len(batch))
	for i, tr := range batch {
		states[i] = tr.State
		nextStates[i] = tr.NextState
	}

	targets, err := t.Model.Predict(states)
	if err != nil {
		return 0, err
	}
	next, err := t.Model.Predict(nextStates)
	if err != nil {
		return 0, err
	}

	for i, tr := range batch {
		q := tr.Reward
		if !tr.Done {
			q += t.Gamma * floats.Max(next[i])
		}
		targets[i][floats.MaxIdx(tr.Action)] = q
	}
	return t.Model.Fit(states, targets)
}
