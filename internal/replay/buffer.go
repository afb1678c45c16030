package replay

import (
	"errors"
	"fmt"
	"math/rand"
)

// ErrInsufficientData is returned by Sample when fewer transitions are
// stored than requested.
var ErrInsufficientData = errors.New("replay: insufficient data")

// Transition is one stored experience: the state seen, the action taken,
// the shaped reward, and the state that followed. Terminal marks the
// last event of an episode; its next state is ignored by the learner.
type Transition struct {
	State     []float64
	Action    int
	Reward    float64
	NextState []float64
	Terminal  bool
}

// Buffer is a fixed-capacity FIFO experience store. Push appends in
// O(1) and evicts the oldest transition once the capacity is reached.
// It is owned by a single training loop and is not safe for concurrent
// use; pushed transitions transfer ownership of their slices.
type Buffer struct {
	data []Transition
	head int // index of the oldest transition
	size int
}

// NewBuffer creates a buffer that retains at most capacity transitions.
func NewBuffer(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("replay: capacity must be positive, got %d", capacity)
	}
	return &Buffer{data: make([]Transition, capacity)}, nil
}

// Push appends one transition, evicting the oldest when full.
func (b *Buffer) Push(tr Transition) {
	if b.size < len(b.data) {
		b.data[(b.head+b.size)%len(b.data)] = tr
		b.size++
		return
	}
	b.data[b.head] = tr
	b.head = (b.head + 1) % len(b.data)
}

// Len returns the number of stored transitions.
func (b *Buffer) Len() int {
	return b.size
}

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Sample draws n distinct transitions uniformly at random. The draw
// consumes the given source, so a seeded generator makes it repeatable.
func (b *Buffer) Sample(rng *rand.Rand, n int) ([]Transition, error) {
	if n <= 0 {
		return nil, fmt.Errorf("replay: sample size must be positive, got %d", n)
	}
	if b.size < n {
		return nil, fmt.Errorf("replay: have %d transitions, need %d: %w",
			b.size, n, ErrInsufficientData)
	}

	// Partial Fisher-Yates over the logical indices 0..size-1.
	idx := make([]int, b.size)
	for i := range idx {
		idx[i] = i
	}
	out := make([]Transition, n)
	for i := 0; i < n; i++ {
		j := i + rng.Intn(b.size-i)
		idx[i], idx[j] = idx[j], idx[i]
		out[i] = b.data[(b.head+idx[i])%len(b.data)]
	}
	return out, nil
}
