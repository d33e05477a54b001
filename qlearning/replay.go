package qlearning

import "golang.org/x/exp/rand"

// DefaultMemory is the replay capacity used by the agent.
const DefaultMemory = 100_000

// Transition is a single step in the environment. Action is one-hot.
type Transition struct {
	State     []float64
	Action    []float64
	Reward    float64
	NextState []float64
	Done      bool
}

// ReplayBuffer keeps the most recent transitions, evicting the oldest when full.
type ReplayBuffer struct {
	buffer   []Transition
	maxSize  int
	position int
	size     int
}

// NewReplayBuffer creates a buffer holding at most maxSize transitions.
func NewReplayBuffer(maxSize int) *ReplayBuffer {
	if maxSize <= 0 {
		maxSize = DefaultMemory
	}
	return &ReplayBuffer{
		buffer:  make([]Transition, 0, min(maxSize, 1024)),
		maxSize: maxSize,
	}
}

// Add appends t, overwriting the oldest transition once the buffer is full.
func (b *ReplayBuffer) Add(t Transition) {
	if len(b.buffer) < b.maxSize {
		b.buffer = append(b.buffer, t)
	} else {
		b.buffer[b.position] = t
	}
	b.position = (b.position + 1) % b.maxSize
	if b.size < b.maxSize {
		b.size++
	}
}

// Len is the number of stored transitions.
func (b *ReplayBuffer) Len() int {
	return b.size
}

// Cap is the capacity.
func (b *ReplayBuffer) Cap() int {
	return b.maxSize
}

// at returns the i-th oldest transition.
func (b *ReplayBuffer) at(i int) Transition {
	if b.size < b.maxSize {
		return b.buffer[i]
	}
	return b.buffer[(b.position+i)%b.maxSize]
}

// Items returns the contents oldest first.
func (b *ReplayBuffer) Items() []Transition {
	items := make([]Transition, b.size)
	for i := range items {
		items[i] = b.at(i)
	}
	return items
}

// Sample returns n distinct transitions chosen uniformly. When the buffer
// holds n or fewer, everything is returned in insertion order.
func (b *ReplayBuffer) Sample(n int, rng *rand.Rand) []Transition {
	if b.size <= n {
		return b.Items()
	}
	batch := make([]Transition, n)
	for i, idx := range rng.Perm(b.size)[:n] {
		batch[i] = b.at(idx)
	}
	return batch
}
