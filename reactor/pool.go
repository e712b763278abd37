// File: reactor/pool.go
// Author: momentics <momentics@gmail.com>
//
// Runner pool with round-robin channel distribution.

package reactor

import (
	"sync/atomic"

	"github.com/momentics/hioload-nio/internal/concurrency"
)

// Pool owns a fixed set of runners.
type Pool struct {
	runners []*Runner
	next    atomic.Uint64
}

// NewPool creates n runners (DefaultRunnerCount if n <= 0).
func NewPool(n int, opts Options) (*Pool, error) {
	if n <= 0 {
		n = concurrency.DefaultRunnerCount()
	}
	p := &Pool{runners: make([]*Runner, 0, n)}
	for i := 0; i < n; i++ {
		r, err := NewRunner(i, opts)
		if err != nil {
			for _, created := range p.runners {
				_ = created.p.close()
			}
			return nil, err
		}
		p.runners = append(p.runners, r)
	}
	return p, nil
}

// Start starts every runner.
func (p *Pool) Start() {
	for _, r := range p.runners {
		r.Start()
	}
}

// Stop stops every runner.
func (p *Pool) Stop() {
	for _, r := range p.runners {
		r.Stop()
	}
}

// Next returns the runner for a newly accepted or connected channel.
func (p *Pool) Next() *Runner {
	i := p.next.Add(1) - 1
	return p.runners[i%uint64(len(p.runners))]
}

// Len returns the number of runners.
func (p *Pool) Len() int { return len(p.runners) }

// Runners returns the runners in index order.
func (p *Pool) Runners() []*Runner { return p.runners }
