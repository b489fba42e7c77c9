package pool

import "context"

// Mode selects how a batch's outcomes are assembled.
type Mode int

const (
	// ModeOutcomes returns every Outcome in input order.
	ModeOutcomes Mode = iota

	// ModeFailFast returns plain values and fails on the first error.
	ModeFailFast

	// ModeByInput returns a map from input to Outcome.
	ModeByInput
)

// ModeFor picks the assembly mode from the two caller flags. throws wins
// over byInput when both are set.
func ModeFor(throws, byInput bool) Mode {
	switch {
	case throws:
		return ModeFailFast
	case byInput:
		return ModeByInput
	default:
		return ModeOutcomes
	}
}

func (m Mode) String() string {
	switch m {
	case ModeFailFast:
		return "fail-fast"
	case ModeByInput:
		return "by-input"
	default:
		return "outcomes"
	}
}

// RunOrFail runs the batch and returns the values in input order. The
// first failure in input order is returned as an *AggregateError; results
// after it are discarded even though they were computed.
func RunOrFail[In, Out any](ctx context.Context, p *Pool, inputs []In, task Task[In, Out]) ([]Out, error) {
	outcomes, err := Run(ctx, p, inputs, task)
	if err != nil {
		return nil, err
	}
	return Values(outcomes)
}

// Values unwraps outcomes in order, stopping at the first failure.
func Values[Out any](outcomes []Outcome[Out]) ([]Out, error) {
	values := make([]Out, 0, len(outcomes))
	for i, o := range outcomes {
		if !o.OK {
			return nil, &AggregateError{Index: i, Err: o.Err}
		}
		values = append(values, o.Value)
	}
	return values, nil
}

// RunByInput runs the batch and keys each Outcome by its input. When an
// input appears more than once the later one, in input order, wins; each
// collision is logged.
func RunByInput[In comparable, Out any](ctx context.Context, p *Pool, inputs []In, task Task[In, Out]) (map[In]Outcome[Out], error) {
	outcomes, err := Run(ctx, p, inputs, task)
	if err != nil {
		return nil, err
	}

	byInput := make(map[In]Outcome[Out], len(inputs))
	for i, in := range inputs {
		if _, dup := byInput[in]; dup {
			p.logger.Warn("duplicate_input",
				"index", i,
				"input", in,
			)
		}
		byInput[in] = outcomes[i]
	}
	return byInput, nil
}
