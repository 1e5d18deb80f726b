package commands

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/imamik/rabbitkind/cmd/rabbitkind/handlers"
	"github.com/imamik/rabbitkind/internal/amqpcheck"
)

// Check returns the AMQP connectivity check command.
func Check() *cobra.Command {
	var opts handlers.CheckOptions
	var sleepSeconds int

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Connect to RabbitMQ and optionally send or receive messages",
		Long: `Check opens an AMQP connection, which proves that RabbitMQ authenticated
the user (against LDAP for directory users).

With -m it publishes persistent messages to the queue, repeating the list
--count times. With -r it consumes --count messages, acknowledging each.
--count 0 keeps going until interrupted. With only --sleep it holds the
connection open.

--from-report takes the default-user credentials and the published AMQP
port from the last apply; --ldap-user NAME uses that directory user's
generated password instead.

Examples:
  rabbitkind check --from-report --wait 2m
  rabbitkind check --ldap-user alice -q test -m hello -m world
  rabbitkind check -u alice -q test -r -n 0
  rabbitkind check --server rabbit.example.com --ssl --port 5671 -u admin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.ConfigPath = globals.configPath
			opts.PortSet = cmd.Flags().Changed("port")
			opts.Sleep = time.Duration(sleepSeconds) * time.Second
			return handlers.Check(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Host, "server", "localhost", "RabbitMQ host")
	f.IntVar(&opts.Port, "port", 5672, "AMQP port")
	f.StringVar(&opts.VHost, "vhost", "/", "Virtual host")
	f.BoolVar(&opts.TLS, "ssl", false, "Connect with TLS (amqps)")
	f.StringVar(&opts.ServerName, "sslserver", "", "Server name to verify the certificate against (default: --server)")
	f.BoolVar(&opts.Insecure, "insecure", false, "Skip TLS certificate verification")
	f.StringVarP(&opts.Username, "username", "u", "", "User name")
	f.StringVarP(&opts.Password, "password", "p", "", "Password (prompted for on a terminal when empty)")
	f.StringVarP(&opts.Queue, "queue", "q", "", "Queue to send to or receive from")
	f.StringVarP(&opts.Exchange, "exchange", "e", "", "Exchange to publish to (default: the default exchange)")
	f.StringArrayVarP(&opts.Messages, "message", "m", nil, "Message to send; repeat to send several")
	f.BoolVarP(&opts.Receive, "receive", "r", false, "Consume messages from the queue")
	f.IntVarP(&opts.Count, "count", "n", 1, "Rounds to send or messages to receive; 0 means until interrupted")
	f.IntVar(&sleepSeconds, "sleep", 0, "Seconds to pause between messages, or to hold the connection open (--sleep=N; bare --sleep means 10)")
	f.Lookup("sleep").NoOptDefVal = strconv.Itoa(int(amqpcheck.DefaultSleep / time.Second))
	f.DurationVar(&opts.ConnectTimeout, "connect-timeout", 10*time.Second, "Timeout for each connection attempt")
	f.IntVar(&opts.ConnectRetries, "connect-retries", 0, "Retries when the connection fails")
	f.DurationVar(&opts.Wait, "wait", 0, "Wait up to this long for the server port to open")
	f.BoolVar(&opts.FromReport, "from-report", false, "Use the default user and published port from the last apply")
	f.StringVar(&opts.LDAPUser, "ldap-user", "", "Log in as this directory user with the password from the last apply")

	cmd.MarkFlagsMutuallyExclusive("message", "receive")
	cmd.MarkFlagsMutuallyExclusive("from-report", "ldap-user")

	return cmd
}
