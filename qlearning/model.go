package qlearning

import (
	"fmt"
	"path/filepath"
)

// Model kinds accepted by NewModel.
const (
	ModelDQN    = "dqn"
	ModelQTable = "qtable"
)

// NewModel builds the approximator named by kind.
func NewModel(kind string, cfg DQNConfig) (Approximator, error) {
	switch kind {
	case ModelDQN, "":
		return NewDQN(cfg), nil
	case ModelQTable:
		return NewQTable(cfg.LearningRate), nil
	}
	return nil, fmt.Errorf("unknown model %q", kind)
}

// DefaultWeightsFile is where weights of the given kind are kept unless
// another file is configured.
func DefaultWeightsFile(kind string) string {
	if kind == ModelQTable {
		return filepath.Join("model", "qtable.json")
	}
	return filepath.Join("model", "dqn_weights.gob")
}
