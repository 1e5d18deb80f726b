package config

import (
	"path/filepath"
	"strings"
	"time"
)

// Defaults used when a field is left empty.
const (
	DefaultClusterName          = "rabbitkind"
	DefaultNamespace            = "rabbitmq"
	DefaultKindNodeImage        = "kindest/node:v1.31.2"
	DefaultCertManagerRepo      = "https://charts.jetstack.io"
	DefaultCertManagerChart     = "cert-manager"
	DefaultCertManagerVersion   = "v1.16.2"
	DefaultCertManagerNamespace = "cert-manager"
	DefaultOperatorManifest     = "https://github.com/rabbitmq/cluster-operator/releases/latest/download/cluster-operator.yml"
	DefaultTopologyManifest     = "https://github.com/rabbitmq/messaging-topology-operator/releases/latest/download/messaging-topology-operator-with-certmanager.yaml"
	DefaultRabbitMQCluster      = "rabbitmq"
	DefaultRabbitMQImage        = "rabbitmq:3.13-management"
	DefaultLDAPImage            = "osixia/openldap:1.5.0"
	DefaultLDAPDomain           = "rabbitmq.local"
	DefaultLDAPOrganisation     = "RabbitMQ"
	DefaultLDAPPort             = 389
	DefaultLDAPUser             = "user"
)

// Default returns a complete configuration for a single-node environment.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills every empty field. Explicit values are kept.
func (c *Config) applyDefaults() {
	setString(&c.ClusterName, DefaultClusterName)
	setString(&c.Namespace, DefaultNamespace)

	setString(&c.Kind.NodeImage, DefaultKindNodeImage)

	setString(&c.CertManager.RepoURL, DefaultCertManagerRepo)
	setString(&c.CertManager.Chart, DefaultCertManagerChart)
	setString(&c.CertManager.Version, DefaultCertManagerVersion)
	setString(&c.CertManager.Namespace, DefaultCertManagerNamespace)

	setString(&c.RabbitMQ.OperatorManifest, DefaultOperatorManifest)
	setString(&c.RabbitMQ.TopologyManifest, DefaultTopologyManifest)
	setString(&c.RabbitMQ.ClusterName, DefaultRabbitMQCluster)
	setString(&c.RabbitMQ.Image, DefaultRabbitMQImage)
	if c.RabbitMQ.Replicas == 0 {
		c.RabbitMQ.Replicas = 1
	}

	setString(&c.LDAP.Image, DefaultLDAPImage)
	setString(&c.LDAP.Domain, DefaultLDAPDomain)
	setString(&c.LDAP.BaseDN, DomainToBaseDN(c.LDAP.Domain))
	setString(&c.LDAP.Organisation, DefaultLDAPOrganisation)
	setString(&c.LDAP.UserDNPattern, "cn=${username},ou=people,"+c.LDAP.BaseDN)
	if c.LDAP.Port == 0 {
		c.LDAP.Port = DefaultLDAPPort
	}
	if len(c.LDAP.Users) == 0 {
		c.LDAP.Users = []string{DefaultLDAPUser}
	}

	setDuration(&c.Readiness.Timeout, 5*time.Minute)
	setDuration(&c.Readiness.Interval, 2*time.Second)
	setDuration(&c.Readiness.MaxInterval, 15*time.Second)
	if c.Readiness.Multiplier == 0 {
		c.Readiness.Multiplier = 1.5
	}

	setDuration(&c.Timeouts.Command, 5*time.Minute)
	setDuration(&c.Timeouts.Helm, 10*time.Minute)
	setDuration(&c.Timeouts.Rollback, 10*time.Minute)

	setString(&c.Output.ReportPath, filepath.Join(".rabbitkind", c.ClusterName, "report.json"))
}

// DomainToBaseDN converts "rabbitmq.local" to "dc=rabbitmq,dc=local".
func DomainToBaseDN(domain string) string {
	if domain == "" {
		return ""
	}
	parts := strings.Split(domain, ".")
	for i, p := range parts {
		parts[i] = "dc=" + p
	}
	return strings.Join(parts, ",")
}

func setString(field *string, val string) {
	if *field == "" {
		*field = val
	}
}

func setDuration(field *Duration, val time.Duration) {
	if *field == 0 {
		*field = Duration(val)
	}
}
