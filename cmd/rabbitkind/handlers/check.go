package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/imamik/rabbitkind/internal/amqpcheck"
	"github.com/imamik/rabbitkind/internal/logging"
	"github.com/imamik/rabbitkind/internal/stack"
	"github.com/imamik/rabbitkind/internal/util/netutil"
)

// CheckOptions are the check command's flags.
type CheckOptions struct {
	amqpcheck.Options

	ConfigPath string
	// FromReport takes the server port and default-user credentials from
	// the last apply report.
	FromReport bool
	// LDAPUser takes the named directory user's password from the report.
	LDAPUser string
	// PortSet is true when --port was given explicitly.
	PortSet bool
	// Wait polls until the server port accepts TCP connections, up to this long.
	Wait time.Duration
}

var (
	// newChecker creates the AMQP checker (for testing injection).
	newChecker = func(ctx context.Context) *amqpcheck.Checker {
		return amqpcheck.New(stdout, amqpcheck.WithLogger(logging.FromContext(ctx)))
	}

	// waitForPort blocks until a TCP port accepts connections.
	waitForPort = netutil.WaitForPort

	// stdinIsTerminal reports whether a password can be prompted for.
	stdinIsTerminal = func() bool {
		return term.IsTerminal(int(os.Stdin.Fd())) // #nosec G115 -- file descriptors fit in int
	}

	// readPassword reads a password without echo.
	readPassword = func() (string, error) {
		_, _ = fmt.Fprint(os.Stderr, "Password: ")
		data, err := term.ReadPassword(int(os.Stdin.Fd())) // #nosec G115 -- file descriptors fit in int
		_, _ = fmt.Fprintln(os.Stderr)
		return string(data), err
	}
)

// Check connects to RabbitMQ and optionally sends or receives messages.
func Check(ctx context.Context, opts CheckOptions) error {
	o := opts.Options

	if opts.FromReport || opts.LDAPUser != "" {
		if err := fillFromReport(&o, opts); err != nil {
			return err
		}
	}

	if o.Password == "" && stdinIsTerminal() {
		pw, err := readPassword()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		o.Password = pw
	}

	if opts.Wait > 0 {
		logging.FromContext(ctx).Info("waiting for server port", "server", o.Host, "port", o.Port, "timeout", opts.Wait.String())
		if err := waitForPort(ctx, o.Host, o.Port, opts.Wait, netutil.DefaultPollInterval); err != nil {
			return err
		}
	}

	res, err := newChecker(ctx).Run(ctx, o)
	if err != nil {
		return err
	}
	logging.FromContext(ctx).V(1).Info("check finished", "sent", res.Sent, "received", res.Received)
	return nil
}

// fillFromReport completes connection settings from the last apply.
func fillFromReport(o *amqpcheck.Options, opts CheckOptions) error {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	report, err := loadPriorReport(cfg)
	if err != nil {
		return err
	}
	if report == nil {
		return fmt.Errorf("no report at %s; run 'rabbitkind apply' first", cfg.Output.ReportPath)
	}
	outputs := report.Outputs()

	if !opts.PortSet {
		if cfg.Kind.AMQPHostPort == 0 {
			return errors.New("kind.amqpHostPort is not set, so the cluster's AMQP port is not published on the host; pass --server and --port")
		}
		o.Port = cfg.Kind.AMQPHostPort
	}

	if opts.LDAPUser != "" {
		creds, ok := outputs[stack.LDAPCredentials]
		if !ok {
			return fmt.Errorf("report has no %s output", stack.LDAPCredentials)
		}
		pw := creds.Value(stack.ValueUserPasswordPrefix + opts.LDAPUser)
		if pw == "" {
			return fmt.Errorf("no password for directory user %q in report", opts.LDAPUser)
		}
		o.Username = opts.LDAPUser
		o.Password = pw
		return nil
	}

	creds, ok := outputs[stack.RabbitMQCredentials]
	if !ok {
		return fmt.Errorf("report has no %s output", stack.RabbitMQCredentials)
	}
	if o.Username == "" {
		o.Username = creds.Value(stack.ValueUsername)
	}
	if o.Password == "" {
		o.Password = creds.Value(stack.ValuePassword)
	}
	return nil
}
