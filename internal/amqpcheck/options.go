package amqpcheck

import (
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultSleep is used when --sleep is given without a value.
const DefaultSleep = 10 * time.Second

// Options describe one check run.
type Options struct {
	Host     string
	Port     int
	VHost    string
	Username string
	Password string

	// TLS switches to amqps. ServerName overrides the name verified
	// against the server certificate.
	TLS        bool
	ServerName string
	// Insecure skips certificate verification.
	Insecure bool

	Queue    string
	Exchange string
	// Messages are published in order, Count times over.
	Messages []string
	Receive  bool
	// Count is the number of rounds to send or messages to receive.
	// Zero means until the context is cancelled.
	Count int
	// Sleep pauses between messages. Without a send or receive it keeps
	// the connection open for that long.
	Sleep time.Duration

	ConnectTimeout time.Duration
	ConnectRetries int
}

// Sending reports whether messages are to be published.
func (o Options) Sending() bool {
	return len(o.Messages) > 0
}

// Validate checks the option combination.
func (o Options) Validate() error {
	if o.Sending() && o.Receive {
		return errors.New("cannot both send and receive messages at the same time")
	}
	if (o.Sending() || o.Receive) && o.Queue == "" {
		return errors.New("must specify a queue when sending or receiving messages")
	}
	if o.Count < 0 {
		return errors.New("count must not be negative")
	}
	if o.Host == "" {
		return errors.New("server is required")
	}
	if o.Port <= 0 || o.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	if o.Sleep < 0 {
		return errors.New("sleep must not be negative")
	}
	return nil
}

// URI returns the connection URI. The password is included.
func (o Options) URI() amqp.URI {
	scheme := "amqp"
	if o.TLS {
		scheme = "amqps"
	}
	vhost := o.VHost
	if vhost == "" {
		vhost = "/"
	}
	return amqp.URI{
		Scheme:   scheme,
		Host:     o.Host,
		Port:     o.Port,
		Username: o.Username,
		Password: o.Password,
		Vhost:    vhost,
	}
}

// Redacted returns the connection URI with the password masked.
func (o Options) Redacted() string {
	uri := o.URI()
	if uri.Password != "" {
		uri.Password = "xxxxx"
	}
	return uri.String()
}
