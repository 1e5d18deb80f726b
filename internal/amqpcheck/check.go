// Package amqpcheck verifies that a RabbitMQ server accepts connections and
// can optionally publish or consume messages on a queue.
package amqpcheck

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-logr/logr"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/imamik/rabbitkind/internal/util/retry"
)

const consumerTag = "rabbitkind-check"

// Connection is the part of an AMQP connection the checker uses.
type Connection interface {
	Channel() (Channel, error)
	Close() error
}

// Channel is the part of an AMQP channel the checker uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Cancel(consumer string, noWait bool) error
	Close() error
}

// Dialer opens a connection.
type Dialer func(url string, cfg amqp.Config) (Connection, error)

// Result counts what a run did.
type Result struct {
	Sent     int
	Received int
}

// Checker runs connection checks.
type Checker struct {
	dial  Dialer
	out   io.Writer
	log   logr.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Checker.
type Option func(*Checker)

// WithDialer replaces the network dialer.
func WithDialer(d Dialer) Option {
	return func(c *Checker) { c.dial = d }
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(c *Checker) { c.log = log }
}

// WithSleep replaces the pause function.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Checker) { c.sleep = fn }
}

// New creates a Checker printing progress to out.
func New(out io.Writer, opts ...Option) *Checker {
	c := &Checker{
		dial:  dialAMQP,
		out:   out,
		log:   logr.Discard(),
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run connects and performs the requested action. Cancelling ctx stops an
// unbounded send or receive; that is not an error.
func (c *Checker) Run(ctx context.Context, o Options) (Result, error) {
	if err := o.Validate(); err != nil {
		return Result{}, err
	}

	conn, err := c.connect(ctx, o)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = conn.Close() }()
	c.printf("Connection: OK (%s)\n", o.Redacted())

	ch, err := conn.Channel()
	if err != nil {
		return Result{}, fmt.Errorf("failed to open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	switch {
	case o.Sending():
		n, err := c.send(ctx, ch, o)
		return Result{Sent: n}, err
	case o.Receive:
		n, err := c.receive(ctx, ch, o)
		return Result{Received: n}, err
	case o.Sleep > 0:
		c.printf("Sleeping for %s to keep connection open\n", o.Sleep)
		if err := c.sleep(ctx, o.Sleep); err != nil && !isCancel(err) {
			return Result{}, err
		}
	}
	return Result{}, nil
}

func (c *Checker) connect(ctx context.Context, o Options) (Connection, error) {
	timeout := o.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cfg := amqp.Config{
		Vhost:     o.URI().Vhost,
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	}
	if o.TLS {
		serverName := o.ServerName
		if serverName == "" {
			serverName = o.Host
		}
		cfg.TLSClientConfig = &tls.Config{
			ServerName:         serverName,
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: o.Insecure, // #nosec G402 -- opt-in for self-signed test clusters
		}
	}

	var conn Connection
	err := retry.Do(ctx, func(context.Context) error {
		var dialErr error
		conn, dialErr = c.dial(o.URI().String(), cfg)
		if dialErr != nil {
			c.log.V(1).Info("connection attempt failed", "server", o.Host, "error", dialErr.Error())
		}
		return dialErr
	},
		retry.WithMaxRetries(o.ConnectRetries),
		retry.WithInitialDelay(time.Second),
		retry.WithRetryIf(func(err error) bool {
			return !errors.Is(err, amqp.ErrCredentials) && !errors.Is(err, amqp.ErrVhost)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", o.Redacted(), err)
	}
	return conn, nil
}

func (c *Checker) send(ctx context.Context, ch Channel, o Options) (int, error) {
	total := o.Count * len(o.Messages)
	if o.Count == 0 {
		c.printf("Sending messages to queue %q until interrupted\n", o.Queue)
	} else {
		c.printf("Sending %d message%s to queue %q\n", total, plural(total), o.Queue)
	}

	sent := 0
	for o.Count == 0 || sent < total {
		for _, body := range o.Messages {
			if ctx.Err() != nil {
				c.printf("Stopped sending messages.\n")
				return sent, nil
			}
			err := ch.PublishWithContext(ctx, o.Exchange, o.Queue, false, false, amqp.Publishing{
				ContentType:  "text/plain",
				DeliveryMode: amqp.Persistent,
				Timestamp:    time.Now(),
				Body:         []byte(body),
			})
			if err != nil {
				if isCancel(err) {
					c.printf("Stopped sending messages.\n")
					return sent, nil
				}
				return sent, fmt.Errorf("failed to publish message %d: %w", sent+1, err)
			}
			sent++
			c.printf("Sent message %d to %q %q: %s\n", sent, o.Exchange, o.Queue, body)

			if o.Sleep > 0 {
				if err := c.sleep(ctx, o.Sleep); err != nil {
					c.printf("Stopped sending messages.\n")
					return sent, nil
				}
			}
		}
	}
	c.printf("Sent %d message%s.\n", sent, plural(sent))
	return sent, nil
}

func (c *Checker) receive(ctx context.Context, ch Channel, o Options) (int, error) {
	if o.Count == 0 {
		c.printf("Consuming messages from queue %q until interrupted\n", o.Queue)
	} else {
		c.printf("Consuming %d message%s from queue %q\n", o.Count, plural(o.Count), o.Queue)
	}

	if err := ch.Qos(1, 0, false); err != nil {
		return 0, fmt.Errorf("failed to set prefetch: %w", err)
	}
	deliveries, err := ch.Consume(o.Queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to consume from queue %s: %w", o.Queue, err)
	}
	defer func() { _ = ch.Cancel(consumerTag, false) }()

	received := 0
	for {
		select {
		case <-ctx.Done():
			c.printf("Stopped consuming messages.\n")
			return received, nil
		case d, ok := <-deliveries:
			if !ok {
				return received, errors.New("delivery channel closed by server")
			}
			received++
			c.printf("Received message %d: %q\n", received, string(d.Body))
			if err := d.Ack(false); err != nil {
				return received, fmt.Errorf("failed to ack message %d: %w", received, err)
			}
			if o.Count > 0 && received >= o.Count {
				c.printf("Received %d message%s, stopping.\n", received, plural(received))
				return received, nil
			}
			if o.Sleep > 0 {
				if err := c.sleep(ctx, o.Sleep); err != nil {
					c.printf("Stopped consuming messages.\n")
					return received, nil
				}
			}
		}
	}
}

func (c *Checker) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type amqpConnection struct {
	conn *amqp.Connection
}

func (c amqpConnection) Channel() (Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (c amqpConnection) Close() error {
	return c.conn.Close()
}

func dialAMQP(url string, cfg amqp.Config) (Connection, error) {
	conn, err := amqp.DialConfig(url, cfg)
	if err != nil {
		return nil, err
	}
	return amqpConnection{conn: conn}, nil
}
