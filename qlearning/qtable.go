package qlearning

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// QTable is a tabular approximator: one row of action values per distinct
// state vector. Unseen states predict zero.
type QTable struct {
	LearningRate float64

	mu    sync.Mutex
	table map[string][]float64
}

// NewQTable creates an empty table. Each Fit moves Q(s,.) a learningRate
// fraction of the way toward the target.
func NewQTable(learningRate float64) *QTable {
	return &QTable{
		LearningRate: learningRate,
		table:        make(map[string][]float64),
	}
}

func stateKey(state []float64) string {
	var sb strings.Builder
	for i, v := range state {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(v, 'g', 6, 64))
	}
	return sb.String()
}

// Predict returns the stored values, zeros for unseen states.
func (q *QTable) Predict(states [][]float64) ([][]float64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([][]float64, len(states))
	for i, s := range states {
		out[i] = make([]float64, NumActions)
		if row, ok := q.table[stateKey(s)]; ok {
			copy(out[i], row)
		}
	}
	return out, nil
}

// Fit moves each stored value toward its target by LearningRate.
func (q *QTable) Fit(states, targets [][]float64) (float64, error) {
	if len(states) != len(targets) {
		return 0, errors.Wrapf(ErrShapeMismatch, "%d states, %d targets", len(states), len(targets))
	}
	if len(states) == 0 {
		return 0, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	var loss float64
	for i, s := range states {
		if len(targets[i]) != NumActions {
			return 0, errors.Wrapf(ErrShapeMismatch, "target %d has %d values", i, len(targets[i]))
		}
		key := stateKey(s)
		row, ok := q.table[key]
		if !ok {
			row = make([]float64, NumActions)
			q.table[key] = row
		}
		// Q(s,a) = Q(s,a) + alpha * (target - Q(s,a))
		for a, target := range targets[i] {
			diff := target - row[a]
			loss += diff * diff
			row[a] += q.LearningRate * diff
		}
	}
	return loss / float64(len(states)*NumActions), nil
}

// Len is the number of states seen so far.
func (q *QTable) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.table)
}

type qtableState struct {
	LearningRate float64              `json:"learning_rate"`
	QTable       map[string][]float64 `json:"qtable"`
}

// SaveWeights writes the table as JSON.
func (q *QTable) SaveWeights(filename string) error {
	q.mu.Lock()
	data, err := json.MarshalIndent(qtableState{LearningRate: q.LearningRate, QTable: q.table}, "", "  ")
	q.mu.Unlock()
	if err != nil {
		return errors.Wrap(err, "error marshaling QTable")
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "failed to create data directory")
		}
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return errors.Wrap(err, "error writing QTable to file")
	}
	return nil
}

// LoadWeights replaces the table with one written by SaveWeights.
func (q *QTable) LoadWeights(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrap(err, "error reading QTable file")
	}
	var state qtableState
	if err := json.Unmarshal(data, &state); err != nil {
		return errors.Wrap(err, "error unmarshaling QTable")
	}
	for key, row := range state.QTable {
		if len(row) != NumActions {
			return errors.Wrapf(ErrShapeMismatch, "state %q has %d values", key, len(row))
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if state.QTable == nil {
		state.QTable = make(map[string][]float64)
	}
	q.table = state.QTable
	return nil
}
