package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/rabbitkind/internal/util/retry"
)

// Command is a single process invocation.
type Command struct {
	Name  string
	Args  []string
	Stdin []byte
	// Env entries are appended to the current process environment.
	Env []string
	Dir string
}

// Cmd builds a Command.
func Cmd(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// WithStdin returns a copy of c that feeds data on stdin.
func (c Command) WithStdin(data []byte) Command {
	c.Stdin = data
	return c
}

// WithEnv returns a copy of c with extra environment entries.
func (c Command) WithEnv(env ...string) Command {
	c.Env = append(append([]string(nil), c.Env...), env...)
	return c
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is the captured output of a finished process.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Output returns trimmed stdout.
func (r Result) Output() string {
	return strings.TrimSpace(r.Stdout)
}

// ExitError is returned when a process exits non-zero.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// IsExitCode reports whether err is an *ExitError with the given code.
func IsExitCode(err error, code int) bool {
	var ee *ExitError
	return errors.As(err, &ee) && ee.ExitCode == code
}

// Executor runs commands.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (Result, error)
}

// transientMarkers are substrings in command output that indicate the API
// server or container runtime was briefly unavailable.
var transientMarkers = []string{
	"EOF",
	"connection refused",
	"Unable to connect",
	"connection reset",
	"TLS handshake timeout",
	"i/o timeout",
}

// IsTransient reports whether command output looks like a temporary
// connectivity failure worth retrying.
func IsTransient(output string) bool {
	for _, m := range transientMarkers {
		if strings.Contains(output, m) {
			return true
		}
	}
	return false
}

// OSExecutor runs commands as child processes.
type OSExecutor struct {
	log        logr.Logger
	maxRetries int
	retryDelay time.Duration
}

// Option configures an OSExecutor.
type Option func(*OSExecutor)

// WithLogger sets the logger used for command tracing.
func WithLogger(log logr.Logger) Option {
	return func(e *OSExecutor) { e.log = log }
}

// WithRetries sets how often a transient failure is retried and the initial delay.
func WithRetries(n int, delay time.Duration) Option {
	return func(e *OSExecutor) {
		e.maxRetries = n
		e.retryDelay = delay
	}
}

// NewOSExecutor creates an executor that retries transient failures.
func NewOSExecutor(opts ...Option) *OSExecutor {
	e := &OSExecutor{
		log:        logr.Discard(),
		maxRetries: 4,
		retryDelay: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs cmd, retrying when the failure output looks transient.
func (e *OSExecutor) Execute(ctx context.Context, cmd Command) (Result, error) {
	var res Result
	err := retry.Do(ctx, func(ctx context.Context) error {
		var err error
		res, err = e.runOnce(ctx, cmd)
		return err
	},
		retry.WithMaxRetries(e.maxRetries),
		retry.WithInitialDelay(e.retryDelay),
		retry.WithMaxDelay(30*time.Second),
		retry.WithRetryIf(func(err error) bool {
			var ee *ExitError
			if !errors.As(err, &ee) {
				return false
			}
			retryable := IsTransient(ee.Stderr)
			if retryable {
				e.log.V(1).Info("retrying command after transient failure", "command", cmd.Name, "stderr", strings.TrimSpace(ee.Stderr))
			}
			return retryable
		}),
	)
	if err != nil {
		var ee *ExitError
		if errors.As(err, &ee) {
			return res, ee
		}
		return res, err
	}
	return res, nil
}

func (e *OSExecutor) runOnce(ctx context.Context, cmd Command) (Result, error) {
	// #nosec G204 - command names and arguments are built by this program, not taken from user input
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	if cmd.Stdin != nil {
		c.Stdin = bytes.NewReader(cmd.Stdin)
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	e.log.V(2).Info("command finished", "command", cmd.Name, "args", cmd.Args, "duration", time.Since(start).Round(time.Millisecond).String())

	if err == nil {
		return res, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		if ctx.Err() != nil {
			return res, fmt.Errorf("%s: %w", cmd.String(), ctx.Err())
		}
		return res, &ExitError{Command: cmd.Name + " " + firstArg(cmd.Args), ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return res, fmt.Errorf("failed to run %s: %w", cmd.Name, err)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
