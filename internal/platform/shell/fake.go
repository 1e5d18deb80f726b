package shell

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FakeExecutor answers commands from scripted rules and records every call.
// Rules match on the command line prefix; the most recently added matching
// rule wins. Unmatched commands succeed with empty output.
type FakeExecutor struct {
	mu    sync.Mutex
	rules []*FakeRule
	calls []Command
}

// FakeRule is a scripted response.
type FakeRule struct {
	prefix  string
	results []fakeResponse
	handler func(Command) (Result, error)
	hits    int
}

type fakeResponse struct {
	res Result
	err error
}

// NewFakeExecutor creates an executor with no rules.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{}
}

// On adds a rule for command lines starting with prefix (for example
// "kubectl get pods").
func (f *FakeExecutor) On(prefix string) *FakeRule {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := &FakeRule{prefix: prefix}
	f.rules = append(f.rules, r)
	return r
}

// Return queues stdout for successive matches. The last response repeats.
func (r *FakeRule) Return(stdout ...string) *FakeRule {
	for _, s := range stdout {
		r.results = append(r.results, fakeResponse{res: Result{Stdout: s}})
	}
	return r
}

// Fail queues a non-zero exit with the given stderr.
func (r *FakeRule) Fail(code int, stderr string) *FakeRule {
	r.results = append(r.results, fakeResponse{
		res: Result{Stderr: stderr, ExitCode: code},
		err: &ExitError{ExitCode: code, Stderr: stderr},
	})
	return r
}

// Do answers matches with fn.
func (r *FakeRule) Do(fn func(Command) (Result, error)) *FakeRule {
	r.handler = fn
	return r
}

// Execute implements Executor.
func (f *FakeExecutor) Execute(ctx context.Context, cmd Command) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	rule := f.match(cmd.String())
	var (
		handler func(Command) (Result, error)
		resp    *fakeResponse
	)
	if rule != nil {
		handler = rule.handler
		if len(rule.results) > 0 {
			i := min(rule.hits, len(rule.results)-1)
			resp = &rule.results[i]
		}
		rule.hits++
	}
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	switch {
	case handler != nil:
		return handler(cmd)
	case resp != nil:
		if ee, ok := resp.err.(*ExitError); ok {
			cp := *ee
			cp.Command = cmd.Name + " " + firstArg(cmd.Args)
			return resp.res, &cp
		}
		return resp.res, resp.err
	}
	return Result{}, nil
}

func (f *FakeExecutor) match(line string) *FakeRule {
	for i := len(f.rules) - 1; i >= 0; i-- {
		if strings.HasPrefix(line, f.rules[i].prefix) {
			return f.rules[i]
		}
	}
	return nil
}

// Calls returns the command lines run so far.
func (f *FakeExecutor) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.String()
	}
	return out
}

// Commands returns the recorded commands, including stdin and env.
func (f *FakeExecutor) Commands() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.calls...)
}

// Count returns how many recorded command lines start with prefix.
func (f *FakeExecutor) Count(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// Reset clears recorded calls but keeps rules.
func (f *FakeExecutor) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *FakeExecutor) String() string {
	return fmt.Sprintf("FakeExecutor(%d rules, %d calls)", len(f.rules), len(f.calls))
}
