package matching

import (
	"errors"
	"fmt"
)

// CheckInvariants verifies the cross-structure consistency rules and returns
// every violation found, joined. Nil means the state is consistent.
func (e *Engine) CheckInvariants() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error

	for a, b := range e.pairings.pairs {
		if a == b {
			errs = append(errs, fmt.Errorf("%s is paired with itself", a))
		}
		if e.pairings.pairs[b] != a {
			errs = append(errs, fmt.Errorf("pairing %s->%s has no reverse entry", a, b))
		}
		if e.queue.Contains(a) {
			errs = append(errs, fmt.Errorf("%s is both queued and paired", a))
		}
	}

	if len(e.queue.waiting) != len(e.queue.enqueueTime) {
		errs = append(errs, fmt.Errorf("queue has %d entries but %d enqueue times",
			len(e.queue.waiting), len(e.queue.enqueueTime)))
	}
	seen := make(map[string]bool, len(e.queue.waiting))
	for _, id := range e.queue.waiting {
		if seen[id] {
			errs = append(errs, fmt.Errorf("%s is queued more than once", id))
		}
		seen[id] = true
		if e.registry.IsAgent(id) {
			errs = append(errs, fmt.Errorf("agent %s is in the waiting queue", id))
		}
	}

	for id, rec := range e.registry.agents {
		paired := e.pairings.IsPaired(id)
		if rec.state.Busy() != paired {
			errs = append(errs, fmt.Errorf("agent %s is %s but paired=%t", id, rec.state, paired))
		}
	}

	return errors.Join(errs...)
}
