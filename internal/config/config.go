package config

import (
	"time"

	"github.com/imamik/rabbitkind/internal/provisioning/readiness"
	"github.com/imamik/rabbitkind/internal/util/ptr"
)

// Config is the complete desired state of a local RabbitMQ environment.
type Config struct {
	// ClusterName is the kind cluster name and the identity runs are keyed by.
	ClusterName string `yaml:"clusterName" toml:"clusterName" validate:"required,dns_label"`

	// Namespace hosts OpenLDAP and the RabbitMQ cluster.
	Namespace string `yaml:"namespace" toml:"namespace" validate:"required,dns_label"`

	Kind        KindConfig        `yaml:"kind" toml:"kind"`
	CertManager CertManagerConfig `yaml:"certManager" toml:"certManager"`
	RabbitMQ    RabbitMQConfig    `yaml:"rabbitmq" toml:"rabbitmq"`
	LDAP        LDAPConfig        `yaml:"ldap" toml:"ldap"`
	Readiness   ReadinessConfig   `yaml:"readiness" toml:"readiness"`
	Timeouts    Timeouts          `yaml:"timeouts" toml:"timeouts"`
	Output      OutputConfig      `yaml:"output" toml:"output"`

	// Rollback tears down already provisioned steps when apply fails.
	// Unset means enabled.
	Rollback *bool `yaml:"rollback,omitempty" toml:"rollback,omitempty"`
}

// KindConfig shapes the kind cluster.
type KindConfig struct {
	NodeImage string `yaml:"nodeImage" toml:"nodeImage" validate:"required"`
	Workers   int    `yaml:"workers" toml:"workers" validate:"gte=0,lte=9"`
	// AMQPHostPort publishes the RabbitMQ AMQP node port on the host. Zero
	// disables the mapping.
	AMQPHostPort int `yaml:"amqpHostPort" toml:"amqpHostPort" validate:"gte=0,lte=65535"`
}

// CertManagerConfig pins the cert-manager Helm chart.
type CertManagerConfig struct {
	RepoURL   string `yaml:"repoURL" toml:"repoURL" validate:"required,url"`
	Chart     string `yaml:"chart" toml:"chart" validate:"required"`
	Version   string `yaml:"version" toml:"version" validate:"required,chart_version"`
	Namespace string `yaml:"namespace" toml:"namespace" validate:"required,dns_label"`
}

// RabbitMQConfig describes the operators and the RabbitmqCluster.
type RabbitMQConfig struct {
	OperatorManifest string `yaml:"operatorManifest" toml:"operatorManifest" validate:"required,url"`
	TopologyManifest string `yaml:"topologyManifest" toml:"topologyManifest" validate:"required,url"`
	ClusterName      string `yaml:"clusterName" toml:"clusterName" validate:"required,dns_label"`
	Replicas         int    `yaml:"replicas" toml:"replicas" validate:"oneof=1 3 5"`
	Image            string `yaml:"image" toml:"image" validate:"required"`
}

// LDAPConfig describes the OpenLDAP directory and how RabbitMQ binds to it.
type LDAPConfig struct {
	Image        string `yaml:"image" toml:"image" validate:"required"`
	Domain       string `yaml:"domain" toml:"domain" validate:"required,fqdn"`
	BaseDN       string `yaml:"baseDN" toml:"baseDN" validate:"required,startswith=dc="`
	Organisation string `yaml:"organisation" toml:"organisation" validate:"required"`
	// UserDNPattern must contain the ${username} placeholder RabbitMQ substitutes.
	UserDNPattern string `yaml:"userDNPattern" toml:"userDNPattern" validate:"required,contains=${username}"`
	Port          int    `yaml:"port" toml:"port" validate:"min=1,max=65535"`
	// Users are seeded into the directory with generated passwords.
	Users []string `yaml:"users" toml:"users" validate:"min=1,unique,dive,dns_label"`
}

// ReadinessConfig is the polling policy applied to every readiness check.
type ReadinessConfig struct {
	Timeout     Duration `yaml:"timeout" toml:"timeout" validate:"gt=0"`
	Interval    Duration `yaml:"interval" toml:"interval" validate:"gt=0"`
	MaxInterval Duration `yaml:"maxInterval" toml:"maxInterval" validate:"gte=0"`
	Multiplier  float64  `yaml:"multiplier" toml:"multiplier" validate:"gte=0"`
	// Overrides replaces Timeout for individual steps, keyed by step id.
	Overrides map[string]Duration `yaml:"overrides,omitempty" toml:"overrides,omitempty" validate:"dive,gt=0"`
}

// OutputConfig tells where run reports and credentials are written.
type OutputConfig struct {
	// ReportPath is the local RunReport file. Extension .yaml/.yml selects
	// YAML, anything else JSON.
	ReportPath  string   `yaml:"reportPath" toml:"reportPath" validate:"required"`
	MetricsFile string   `yaml:"metricsFile,omitempty" toml:"metricsFile,omitempty"`
	S3          S3Config `yaml:"s3,omitempty" toml:"s3,omitempty"`
}

// S3Config is an optional S3-compatible bucket receiving a copy of each
// report. An empty Bucket disables the upload.
type S3Config struct {
	Bucket    string `yaml:"bucket,omitempty" toml:"bucket,omitempty"`
	Prefix    string `yaml:"prefix,omitempty" toml:"prefix,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty" toml:"endpoint,omitempty" validate:"omitempty,url"`
	Region    string `yaml:"region,omitempty" toml:"region,omitempty" validate:"required_with=Bucket"`
	AccessKey string `yaml:"accessKey,omitempty" toml:"accessKey,omitempty" validate:"required_with=SecretKey"`
	SecretKey string `yaml:"secretKey,omitempty" toml:"secretKey,omitempty" validate:"required_with=AccessKey"`
}

// Enabled reports whether reports are uploaded.
func (s S3Config) Enabled() bool { return s.Bucket != "" }

// RollbackEnabled reports whether failed applies are rolled back.
func (c *Config) RollbackEnabled() bool {
	return ptr.Deref(c.Rollback, true)
}

// Policy converts the readiness section into a poller policy.
func (r ReadinessConfig) Policy() readiness.Policy {
	return readiness.Policy{
		Timeout:     r.Timeout.Std(),
		Interval:    r.Interval.Std(),
		MaxInterval: r.MaxInterval.Std(),
		Multiplier:  r.Multiplier,
	}
}

// PolicyFor returns the readiness policy of one step, honouring overrides.
func (c *Config) PolicyFor(stepID string) readiness.Policy {
	p := c.Readiness.Policy()
	if d, ok := c.Readiness.Overrides[stepID]; ok {
		p.Timeout = d.Std()
	}
	return p
}

// RabbitMQService is the in-cluster DNS name of the AMQP service.
func (c *Config) RabbitMQService() string {
	return c.RabbitMQ.ClusterName + "." + c.Namespace + ".svc"
}

// LDAPService is the in-cluster DNS name of the OpenLDAP service.
func (c *Config) LDAPService() string {
	return "openldap." + c.Namespace + ".svc"
}

// RollbackTimeout is the budget for tearing down after a failed apply.
func (c *Config) RollbackTimeout() time.Duration {
	return c.Timeouts.Rollback.Std()
}
