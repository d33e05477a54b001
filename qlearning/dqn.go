package qlearning

import (
	"encoding/gob"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func init() {
	gob.Register(&tensor.Dense{})
	gob.Register(map[string]*tensor.Dense{})
}

// Network defaults.
const (
	InputFeatures   = 13
	HiddenLayerSize = 256
	OutputActions   = NumActions
	LearningRate    = 0.001
	GradientClip    = 5.0
	BatchSize       = 1000
)

// DQNConfig sizes the network.
type DQNConfig struct {
	Inputs       int
	Hidden       int
	Outputs      int
	LearningRate float64
	// MaxBatch is the largest batch Fit accepts.
	MaxBatch int
}

// DefaultDQNConfig is the 13-256-3 network used by the agent.
func DefaultDQNConfig() DQNConfig {
	return DQNConfig{
		Inputs:       InputFeatures,
		Hidden:       HiddenLayerSize,
		Outputs:      OutputActions,
		LearningRate: LearningRate,
		MaxBatch:     BatchSize,
	}
}

// DQN is a two layer perceptron, ReLU hidden layer, linear output,
// trained with Adam on the mean squared error.
//
// Each graph is compiled for a fixed number of rows; batches are padded up
// to the nearest compiled size and the padding is masked out of the loss.
// All graphs share the weight tensors held in weights.
type DQN struct {
	cfg     DQNConfig
	weights map[string]*tensor.Dense
	solver  gorgonia.Solver

	mu       sync.Mutex
	forwards map[int]*network
	trainers map[int]*network
}

// network is one compiled graph.
type network struct {
	rows int
	g    *gorgonia.ExprGraph
	x    *gorgonia.Node
	y    *gorgonia.Node
	mask *gorgonia.Node

	learnables gorgonia.Nodes
	names      []string

	predVal gorgonia.Value
	lossVal gorgonia.Value
	vm      gorgonia.VM
}

var weightNames = []string{"w1", "b1", "w2", "b2"}

// NewDQN initializes Glorot weights and zero biases.
func NewDQN(cfg DQNConfig) *DQN {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = BatchSize
	}
	glorot := gorgonia.GlorotU(1.0)
	weights := map[string]*tensor.Dense{
		"w1": tensor.New(tensor.WithShape(cfg.Inputs, cfg.Hidden),
			tensor.WithBacking(glorot(tensor.Float64, cfg.Inputs, cfg.Hidden))),
		"b1": tensor.New(tensor.WithShape(1, cfg.Hidden), tensor.Of(tensor.Float64)),
		"w2": tensor.New(tensor.WithShape(cfg.Hidden, cfg.Outputs),
			tensor.WithBacking(glorot(tensor.Float64, cfg.Hidden, cfg.Outputs))),
		"b2": tensor.New(tensor.WithShape(1, cfg.Outputs), tensor.Of(tensor.Float64)),
	}

	return &DQN{
		cfg:      cfg,
		weights:  weights,
		solver:   gorgonia.NewAdamSolver(gorgonia.WithLearnRate(cfg.LearningRate), gorgonia.WithClip(GradientClip)),
		forwards: make(map[int]*network),
		trainers: make(map[int]*network),
	}
}

// build compiles a graph for rows inputs, with a masked MSE cost when train is set.
func (dqn *DQN) build(rows int, train bool) (*network, error) {
	g := gorgonia.NewGraph()
	n := &network{rows: rows, g: g}

	n.x = gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(rows, dqn.cfg.Inputs),
		gorgonia.WithName("x"))

	params := make(map[string]*gorgonia.Node, len(weightNames))
	for _, name := range weightNames {
		params[name] = gorgonia.NodeFromAny(g, dqn.weights[name], gorgonia.WithName(name))
		n.learnables = append(n.learnables, params[name])
		n.names = append(n.names, name)
	}

	// Broadcast a (1, k) bias over the rows with a ones column.
	expandBias := func(bias *gorgonia.Node) (*gorgonia.Node, error) {
		backing := make([]float64, rows)
		for i := range backing {
			backing[i] = 1.0
		}
		ones := gorgonia.NodeFromAny(g, tensor.New(tensor.WithShape(rows, 1), tensor.WithBacking(backing)))
		return gorgonia.Mul(ones, bias)
	}

	h1, err := gorgonia.Mul(n.x, params["w1"])
	if err != nil {
		return nil, err
	}
	bias1, err := expandBias(params["b1"])
	if err != nil {
		return nil, err
	}
	if h1, err = gorgonia.Add(h1, bias1); err != nil {
		return nil, err
	}
	if h1, err = gorgonia.Rectify(h1); err != nil {
		return nil, err
	}

	out, err := gorgonia.Mul(h1, params["w2"])
	if err != nil {
		return nil, err
	}
	bias2, err := expandBias(params["b2"])
	if err != nil {
		return nil, err
	}
	pred, err := gorgonia.Add(out, bias2)
	if err != nil {
		return nil, err
	}
	gorgonia.Read(pred, &n.predVal)

	if !train {
		n.vm = gorgonia.NewTapeMachine(g)
		return n, nil
	}

	n.y = gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(rows, dqn.cfg.Outputs),
		gorgonia.WithName("y"))
	n.mask = gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(rows, dqn.cfg.Outputs),
		gorgonia.WithName("mask"))

	diff, err := gorgonia.Sub(pred, n.y)
	if err != nil {
		return nil, err
	}
	sq, err := gorgonia.Square(diff)
	if err != nil {
		return nil, err
	}
	masked, err := gorgonia.HadamardProd(sq, n.mask)
	if err != nil {
		return nil, err
	}
	loss, err := gorgonia.Sum(masked)
	if err != nil {
		return nil, err
	}
	gorgonia.Read(loss, &n.lossVal)

	if _, err = gorgonia.Grad(loss, n.learnables...); err != nil {
		return nil, err
	}
	n.vm = gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(n.learnables...))
	return n, nil
}

// graphFor returns the smallest compiled size able to hold rows.
func (dqn *DQN) graphFor(rows int, train bool) (*network, error) {
	size := dqn.cfg.MaxBatch
	if rows == 1 {
		size = 1
	}
	cache := dqn.forwards
	if train {
		cache = dqn.trainers
	}
	if n, ok := cache[size]; ok {
		return n, nil
	}
	n, err := dqn.build(size, train)
	if err != nil {
		return nil, errors.Wrapf(err, "build graph for %d rows", size)
	}
	cache[size] = n
	return n, nil
}

// pull copies the shared weights into the graph when its nodes hold their own values.
func (dqn *DQN) pull(n *network) {
	for i, node := range n.learnables {
		master := dqn.weights[n.names[i]]
		if v, ok := node.Value().(*tensor.Dense); ok && v != master {
			copy(v.Data().([]float64), master.Data().([]float64))
		}
	}
}

// push copies updated graph weights back into the shared tensors.
func (dqn *DQN) push(n *network) {
	for i, node := range n.learnables {
		master := dqn.weights[n.names[i]]
		if v, ok := node.Value().(*tensor.Dense); ok && v != master {
			copy(master.Data().([]float64), v.Data().([]float64))
		}
	}
}

func (dqn *DQN) pack(rows [][]float64, size, width int) (*tensor.Dense, error) {
	backing := make([]float64, size*width)
	for i, row := range rows {
		if len(row) != width {
			return nil, errors.Wrapf(ErrShapeMismatch, "row %d has %d values, want %d", i, len(row), width)
		}
		copy(backing[i*width:], row)
	}
	return tensor.New(tensor.WithShape(size, width), tensor.WithBacking(backing)), nil
}

func (n *network) read(count, width int) ([][]float64, error) {
	dense, ok := n.predVal.(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("invalid prediction value %T", n.predVal)
	}
	data := dense.Data().([]float64)
	out := make([][]float64, count)
	for i := range out {
		out[i] = make([]float64, width)
		copy(out[i], data[i*width:(i+1)*width])
	}
	return out, nil
}

// Predict runs the forward pass. Inputs larger than MaxBatch are split.
func (dqn *DQN) Predict(states [][]float64) ([][]float64, error) {
	dqn.mu.Lock()
	defer dqn.mu.Unlock()

	out := make([][]float64, 0, len(states))
	for start := 0; start < len(states); start += dqn.cfg.MaxBatch {
		end := min(start+dqn.cfg.MaxBatch, len(states))
		chunk, err := dqn.forward(states[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func (dqn *DQN) forward(states [][]float64) ([][]float64, error) {
	n, err := dqn.graphFor(len(states), false)
	if err != nil {
		return nil, err
	}
	x, err := dqn.pack(states, n.rows, dqn.cfg.Inputs)
	if err != nil {
		return nil, err
	}
	if err := gorgonia.Let(n.x, x); err != nil {
		return nil, errors.Wrap(err, "bind input")
	}
	dqn.pull(n)

	defer n.vm.Reset()
	if err := n.vm.RunAll(); err != nil {
		return nil, errors.Wrap(err, "forward pass")
	}
	return n.read(len(states), dqn.cfg.Outputs)
}

// Fit takes one Adam step on the mean squared error between the
// predictions for states and targets.
func (dqn *DQN) Fit(states, targets [][]float64) (float64, error) {
	if len(states) != len(targets) {
		return 0, errors.Wrapf(ErrShapeMismatch, "%d states, %d targets", len(states), len(targets))
	}
	if len(states) == 0 {
		return 0, nil
	}
	if len(states) > dqn.cfg.MaxBatch {
		return 0, errors.Wrapf(ErrBatchTooLarge, "%d > %d", len(states), dqn.cfg.MaxBatch)
	}

	dqn.mu.Lock()
	defer dqn.mu.Unlock()

	n, err := dqn.graphFor(len(states), true)
	if err != nil {
		return 0, err
	}
	x, err := dqn.pack(states, n.rows, dqn.cfg.Inputs)
	if err != nil {
		return 0, err
	}
	y, err := dqn.pack(targets, n.rows, dqn.cfg.Outputs)
	if err != nil {
		return 0, err
	}

	// Padded rows weigh nothing; valid cells average over the batch.
	weight := 1.0 / float64(len(states)*dqn.cfg.Outputs)
	maskData := make([]float64, n.rows*dqn.cfg.Outputs)
	for i := 0; i < len(states)*dqn.cfg.Outputs; i++ {
		maskData[i] = weight
	}
	mask := tensor.New(tensor.WithShape(n.rows, dqn.cfg.Outputs), tensor.WithBacking(maskData))

	for node, value := range map[*gorgonia.Node]*tensor.Dense{n.x: x, n.y: y, n.mask: mask} {
		if err := gorgonia.Let(node, value); err != nil {
			return 0, errors.Wrap(err, "bind batch")
		}
	}
	dqn.pull(n)

	defer n.vm.Reset()
	if err := n.vm.RunAll(); err != nil {
		return 0, errors.Wrap(err, "backprop")
	}
	if err := dqn.solver.Step(gorgonia.NodesToValueGrads(n.learnables)); err != nil {
		return 0, errors.Wrap(err, "solver step")
	}
	dqn.push(n)

	loss, ok := n.lossVal.Data().(float64)
	if !ok {
		return 0, fmt.Errorf("invalid loss value %T", n.lossVal)
	}
	return loss, nil
}

// SaveWeights writes the weights as a gob encoded map, creating the directory if needed.
func (dqn *DQN) SaveWeights(filename string) error {
	dqn.mu.Lock()
	defer dqn.mu.Unlock()

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "failed to create data directory")
		}
	}

	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create weights file")
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(dqn.weights); err != nil {
		return errors.Wrap(err, "failed to encode weights")
	}
	return nil
}

// LoadWeights restores weights written by SaveWeights. Every tensor must
// match this network's shape; nothing is changed otherwise.
func (dqn *DQN) LoadWeights(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open weights file")
	}
	defer f.Close()

	var weights map[string]*tensor.Dense
	if err := gob.NewDecoder(f).Decode(&weights); err != nil {
		return errors.Wrap(err, "failed to decode weights")
	}

	dqn.mu.Lock()
	defer dqn.mu.Unlock()

	for _, name := range weightNames {
		loaded, ok := weights[name]
		if !ok {
			return errors.Wrapf(ErrShapeMismatch, "missing %s", name)
		}
		if !loaded.Shape().Eq(dqn.weights[name].Shape()) {
			return errors.Wrapf(ErrShapeMismatch, "%s is %v, want %v", name, loaded.Shape(), dqn.weights[name].Shape())
		}
	}
	for _, name := range weightNames {
		copy(dqn.weights[name].Data().([]float64), weights[name].Data().([]float64))
	}
	log.Printf("loaded weights from %s", filename)
	return nil
}
