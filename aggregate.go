package saga

import (
	"sync"

	"github.com/fortressi/saga/set"
)

// resultSet collects action outcomes by declaration index. Writers may be
// concurrent; the declaration order of the output never depends on the
// completion order.
type resultSet struct {
	mu       sync.Mutex
	outcomes []outcome
	filled   []bool
}

func newResultSet(n int) *resultSet {
	return &resultSet{
		outcomes: make([]outcome, n),
		filled:   make([]bool, n),
	}
}

func (rs *resultSet) set(o outcome) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.outcomes[o.index] = o
	rs.filled[o.index] = true
}

// get returns the outcome recorded for index.
func (rs *resultSet) get(index int) (outcome, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	return rs.outcomes[index], rs.filled[index]
}

// values returns the outputs in declaration order.
func (rs *resultSet) values() []ActionData {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	out := make([]ActionData, 0, len(rs.outcomes))
	for i, o := range rs.outcomes {
		if rs.filled[i] && o.ok() {
			out = append(out, o.output)
		}
	}
	return out
}

// failures returns the failed outcomes, lowest index first.
func (rs *resultSet) failures() []outcome {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	var failed []outcome
	for i, o := range rs.outcomes {
		if rs.filled[i] && !o.ok() {
			failed = append(failed, o)
		}
	}
	return failed
}

// succeeded returns the indices whose action succeeded.
func (rs *resultSet) succeeded() *set.Set[int] {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	s := &set.Set[int]{}
	for i, o := range rs.outcomes {
		if rs.filled[i] && o.ok() {
			s.Insert(i)
		}
	}
	return s
}

// compensationSweep accumulates compensation outcomes in arrival order.
type compensationSweep struct {
	mu      sync.Mutex
	results []ActionData
	errs    []error
}

func (c *compensationSweep) add(o outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if o.ok() {
		c.results = append(c.results, o.output)
		return
	}
	c.errs = append(c.errs, o.err)
}

// snapshot returns copies of the collected outcomes. Call it only after every
// compensation has returned.
func (c *compensationSweep) snapshot() ([]ActionData, []error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var results []ActionData
	if len(c.results) > 0 {
		results = append(results, c.results...)
	}
	var errs []error
	if len(c.errs) > 0 {
		errs = append(errs, c.errs...)
	}
	return results, errs
}
