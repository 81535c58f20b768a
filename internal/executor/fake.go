package executor

import (
	"context"
	"sync"
)

// Call is one recorded Run invocation.
type Call struct {
	Query  string
	Params map[string]any
}

// Fake is an in-memory Executor for tests. It records every call and
// replies with the configured result or error.
type Fake struct {
	mu     sync.Mutex
	calls  []Call
	Result *Result
	Err    error
}

// NewFake returns a Fake replying with an empty result.
func NewFake() *Fake {
	return &Fake{Result: &Result{}}
}

// Run records the call.
func (f *Fake) Run(_ context.Context, query string, params map[string]any) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := make(map[string]any, len(params))
	for k, v := range params {
		cp[k] = v
	}
	f.calls = append(f.calls, Call{Query: query, Params: cp})
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Result, nil
}

// Close is a no-op.
func (f *Fake) Close(context.Context) error { return nil }

// Calls returns the recorded calls in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

var _ Executor = (*Fake)(nil)
