package testing

import (
	"slices"
	"time"

	"github.com/imamik/rabbitkind/internal/config"
)

// ConfigBuilder provides a fluent interface for building test configurations.
type ConfigBuilder struct {
	cfg *config.Config
}

// NewConfigBuilder starts from the defaults with a short readiness policy.
func NewConfigBuilder() *ConfigBuilder {
	cfg := config.Default()
	cfg.ClusterName = "test"
	cfg.Readiness.Timeout = config.Duration(10 * time.Second)
	cfg.Readiness.Interval = config.Duration(10 * time.Millisecond)
	cfg.Readiness.MaxInterval = config.Duration(50 * time.Millisecond)
	return &ConfigBuilder{cfg: cfg}
}

// WithClusterName sets the kind cluster name.
func (b *ConfigBuilder) WithClusterName(name string) *ConfigBuilder {
	b.cfg.ClusterName = name
	return b
}

// WithNamespace sets the RabbitMQ namespace.
func (b *ConfigBuilder) WithNamespace(ns string) *ConfigBuilder {
	b.cfg.Namespace = ns
	return b
}

// WithWorkers sets the number of kind worker nodes.
func (b *ConfigBuilder) WithWorkers(n int) *ConfigBuilder {
	b.cfg.Kind.Workers = n
	return b
}

// WithAMQPHostPort publishes AMQP on the given host port.
func (b *ConfigBuilder) WithAMQPHostPort(port int) *ConfigBuilder {
	b.cfg.Kind.AMQPHostPort = port
	return b
}

// WithUsers sets the seeded LDAP users.
func (b *ConfigBuilder) WithUsers(users ...string) *ConfigBuilder {
	b.cfg.LDAP.Users = slices.Clone(users)
	return b
}

// WithLDAPDomain sets the LDAP domain and derives base DN and user pattern.
func (b *ConfigBuilder) WithLDAPDomain(domain string) *ConfigBuilder {
	b.cfg.LDAP.Domain = domain
	b.cfg.LDAP.BaseDN = config.DomainToBaseDN(domain)
	b.cfg.LDAP.UserDNPattern = "cn=${username},ou=people," + b.cfg.LDAP.BaseDN
	return b
}

// WithUserDNPattern sets the LDAP user DN pattern.
func (b *ConfigBuilder) WithUserDNPattern(pattern string) *ConfigBuilder {
	b.cfg.LDAP.UserDNPattern = pattern
	return b
}

// WithRollback enables or disables rollback.
func (b *ConfigBuilder) WithRollback(enabled bool) *ConfigBuilder {
	b.cfg.Rollback = &enabled
	return b
}

// Build returns the configuration. The builder must not be reused.
func (b *ConfigBuilder) Build() *config.Config {
	return b.cfg
}

// MinimalConfig returns the defaults with cluster name "test".
func MinimalConfig() *config.Config {
	return NewConfigBuilder().Build()
}
