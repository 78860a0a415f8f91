package achievements

import (
	"fmt"
	"time"

	"drinktab/core"
)

// Evaluator runs a fixed rule list against an evaluation context.
type Evaluator struct {
	rules []core.Rule
	now   func() time.Time
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithRules replaces the default rule set.
func WithRules(rules []core.Rule) EvaluatorOption {
	return func(e *Evaluator) { e.rules = append([]core.Rule(nil), rules...) }
}

// WithNow overrides the clock used for unlock timestamps.
func WithNow(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{rules: Default(), now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Rules returns the evaluated rules in order.
func (e *Evaluator) Rules() []core.Rule { return append([]core.Rule(nil), e.rules...) }

// Evaluate returns the badges newly satisfied by c, stamped with a single
// timestamp for the whole batch. Rules already in c.User.Unlocked are not
// checked. Any rule error aborts the batch with no partial result.
func (e *Evaluator) Evaluate(c *core.EvalContext) ([]core.Badge, error) {
	var satisfied []core.Rule
	for _, r := range e.rules {
		if _, ok := c.User.Unlocked[r.ID]; ok {
			continue
		}
		ok, err := r.Check(c)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
		if ok {
			satisfied = append(satisfied, r)
		}
	}
	if len(satisfied) == 0 {
		return nil, nil
	}
	at := e.now().UTC()
	out := make([]core.Badge, len(satisfied))
	for i, r := range satisfied {
		b := r.Badge()
		ts := at
		b.UnlockedAt = &ts
		out[i] = b
	}
	return out, nil
}
