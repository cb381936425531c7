// Package ensemble provides the cross-replica reduction used by the
// ensemble restraint: a blocking collective sum of same-shaped histogram
// buffers across cooperating simulation replicas.
package ensemble

import (
	"fmt"
	"sync"

	"github.com/kassonlab/brer-md/internal/window"
)

// ReduceFn sums send element-wise across all cooperating replicas and
// writes the result into recv. It blocks until every replica has reached
// the call; there is no timeout or cancellation, and a failure is fatal to
// the caller's run.
type ReduceFn func(send, recv *window.Matrix) error

// LocalEnsemble is an in-process ensemble of replicas sharing one address
// space, each driven by its own goroutine. Every member contributes one
// buffer per round; all members block until the round is complete and then
// observe the same element-wise sum.
type LocalEnsemble struct {
	size       int
	rows, cols int

	mu      sync.Mutex
	current *round
}

type round struct {
	sum     []float64
	arrived int
	done    chan struct{}
}

func NewLocalEnsemble(size, rows, cols int) (*LocalEnsemble, error) {
	if size <= 0 {
		return nil, fmt.Errorf("ensemble size must be > 0, got %d", size)
	}
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("buffer shape must be positive, got %dx%d", rows, cols)
	}
	return &LocalEnsemble{size: size, rows: rows, cols: cols}, nil
}

func (e *LocalEnsemble) Size() int {
	return e.size
}

// Reduce contributes send to the current round and blocks until all
// members have contributed, then writes the round's sum into recv.
func (e *LocalEnsemble) Reduce(send, recv *window.Matrix) error {
	if send == nil || recv == nil {
		return fmt.Errorf("reduce requires send and receive buffers")
	}
	if send.Rows() != e.rows || send.Cols() != e.cols {
		return fmt.Errorf("send buffer is %dx%d, ensemble exchanges %dx%d",
			send.Rows(), send.Cols(), e.rows, e.cols)
	}
	if !send.SameShape(recv) {
		return fmt.Errorf("receive buffer is %dx%d, want %dx%d",
			recv.Rows(), recv.Cols(), send.Rows(), send.Cols())
	}

	e.mu.Lock()
	r := e.current
	if r == nil {
		r = &round{sum: make([]float64, e.rows*e.cols), done: make(chan struct{})}
		e.current = r
	}
	for i, v := range send.Data() {
		r.sum[i] += v
	}
	r.arrived++
	if r.arrived == e.size {
		e.current = nil
		close(r.done)
	}
	e.mu.Unlock()

	<-r.done
	copy(recv.Data(), r.sum)
	return nil
}
