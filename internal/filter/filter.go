// Package filter implements the ordered rejection predicates applied to
// candidate postings before scoring. Predicates are conjunctive and
// short-circuit: the first rejecting filter records the decision and later
// filters never see the posting.
package filter

import (
	"go.uber.org/zap"

	"github.com/kpetrov/jobscout/internal/jobs"
)

// Filter is a single rejection predicate.
type Filter interface {
	Name() string
	// Reject returns a non-empty reason when the posting must be dropped.
	Reject(p *jobs.Posting) string
}

// Step describes the result of one filter over a run, in the order the
// filters were applied.
type Step struct {
	Name    string
	Initial int
	Dropped int
	Left    int
}

// Decision records which filter rejected a posting. Kept only for the
// duration of a run, for diagnostics.
type Decision struct {
	Posting *jobs.Posting
	Filter  string
	Reason  string
}

// Chain runs filters in order over a collection.
type Chain struct {
	filters []Filter
	logger  *zap.Logger
}

// NewChain builds the standard chain: category, location, seniority,
// freshness.
func NewChain(logger *zap.Logger, filters ...Filter) *Chain {
	return &Chain{filters: filters, logger: logger}
}

// Run partitions the collection into survivors (mutating ps in place) and
// decisions for the rejected. Counts are logged per step the same way for
// every filter.
func (c *Chain) Run(ps *jobs.Postings) ([]Decision, []Step) {
	var decisions []Decision

	steps := make([]Step, len(c.filters))
	for i, f := range c.filters {
		steps[i].Name = f.Name()
	}

	kept := ps.Items[:0]
	for _, p := range ps.Items {
		rejected := false
		for i, f := range c.filters {
			steps[i].Initial++
			if reason := f.Reject(p); reason != "" {
				steps[i].Dropped++
				decisions = append(decisions, Decision{Posting: p, Filter: f.Name(), Reason: reason})
				rejected = true
				break
			}
		}
		if !rejected {
			kept = append(kept, p)
		}
	}
	ps.Items = kept

	for i := range steps {
		steps[i].Left = steps[i].Initial - steps[i].Dropped
		if c.logger != nil {
			c.logger.Info("filter step",
				zap.String("name", steps[i].Name),
				zap.Int("initial", steps[i].Initial),
				zap.Int("dropped", steps[i].Dropped),
				zap.Int("left", steps[i].Left),
			)
		}
	}

	return decisions, steps
}
