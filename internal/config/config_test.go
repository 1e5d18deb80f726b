package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	t.Parallel()
	cfg := Default()

	assert.Equal(t, "rabbitkind", cfg.ClusterName)
	assert.Equal(t, "rabbitmq", cfg.Namespace)
	assert.Equal(t, "dc=rabbitmq,dc=local", cfg.LDAP.BaseDN)
	assert.Equal(t, "cn=${username},ou=people,dc=rabbitmq,dc=local", cfg.LDAP.UserDNPattern)
	assert.Equal(t, []string{"user"}, cfg.LDAP.Users)
	assert.Equal(t, 1, cfg.RabbitMQ.Replicas)
	assert.Equal(t, filepath.Join(".rabbitkind", "rabbitkind", "report.json"), cfg.Output.ReportPath)
	assert.True(t, cfg.RollbackEnabled())
	assert.False(t, cfg.Output.S3.Enabled())
	require.NoError(t, cfg.Validate())
}

func TestLoadFile_YAML(t *testing.T) {
	path := writeConfig(t, "rabbitkind.yaml", `
clusterName: dev
namespace: messaging
kind:
  workers: 2
rabbitmq:
  replicas: 3
ldap:
  domain: example.org
  users: [alice, bob]
readiness:
  timeout: 90s
  interval: 1s
  overrides:
    kind-cluster: 4m
rollback: false
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.ClusterName)
	assert.Equal(t, "messaging", cfg.Namespace)
	assert.Equal(t, 2, cfg.Kind.Workers)
	assert.Equal(t, 3, cfg.RabbitMQ.Replicas)
	assert.Equal(t, "dc=example,dc=org", cfg.LDAP.BaseDN)
	assert.Equal(t, []string{"alice", "bob"}, cfg.LDAP.Users)
	assert.False(t, cfg.RollbackEnabled())
	assert.Equal(t, filepath.Join(".rabbitkind", "dev", "report.json"), cfg.Output.ReportPath)

	p := cfg.PolicyFor("openldap")
	assert.Equal(t, 90*time.Second, p.Timeout)
	assert.Equal(t, time.Second, p.Interval)
	assert.Equal(t, 15*time.Second, p.MaxInterval)
	assert.InDelta(t, 1.5, p.Multiplier, 0.0001)
	assert.Equal(t, 4*time.Minute, cfg.PolicyFor("kind-cluster").Timeout)
}

func TestLoadFile_TOML(t *testing.T) {
	path := writeConfig(t, "rabbitkind.toml", `
clusterName = "toml-dev"

[certManager]
version = "v1.15.0"

[timeouts]
helm = "3m"

[output.s3]
bucket = "reports"
region = "eu-central-1"
endpoint = "http://localhost:9000"
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "toml-dev", cfg.ClusterName)
	assert.Equal(t, "v1.15.0", cfg.CertManager.Version)
	assert.Equal(t, 3*time.Minute, cfg.Timeouts.Helm.Std())
	assert.Equal(t, 10*time.Minute, cfg.RollbackTimeout())
	assert.True(t, cfg.Output.S3.Enabled())
}

func TestLoadFile_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultClusterName, cfg.ClusterName)
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"unknown extension", "config.json", `{}`, "unsupported config file extension"},
		{"unknown yaml key", "c.yaml", "clustr: x\n", "failed to unmarshal yaml"},
		{"unknown toml key", "c.toml", "clustr = \"x\"\n", "failed to unmarshal toml"},
		{"bad duration", "c.yaml", "readiness:\n  timeout: soon\n", "invalid duration"},
		{"bad cluster name", "c.yaml", "clusterName: Not_Valid\n", "clusterName: failed dns_label"},
		{"bad replicas", "c.yaml", "rabbitmq:\n  replicas: 2\n", "rabbitmq.replicas: failed oneof"},
		{"bad chart version", "c.yaml", "certManager:\n  version: latest\n", "certManager.version: failed chart_version"},
		{"bucket without region", "c.yaml", "output:\n  s3:\n    bucket: b\n", "output.s3.region: failed required_with"},
		{"pattern without placeholder", "c.yaml", "ldap:\n  userDNPattern: cn=admin,dc=rabbitmq,dc=local\n", "ldap.userDNPattern: failed contains"},
		{"shared namespace", "c.yaml", "namespace: cert-manager\n", "namespace: failed ne=certManager.namespace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.content)
			_, err := LoadFile(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate_CollectsAllFields(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Kind.Workers = 20
	cfg.LDAP.Port = 0
	cfg.Readiness.MaxInterval = Duration(time.Second)
	cfg.Readiness.Interval = Duration(2 * time.Second)

	err := cfg.Validate()
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	var got []string
	for _, f := range verr.Fields {
		got = append(got, f.Field)
	}
	assert.ElementsMatch(t, []string{"kind.workers", "ldap.port", "readiness.maxInterval"}, got)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvTimeoutHelm, "90s")
	t.Setenv(EnvTimeoutReadiness, "7m")
	t.Setenv(EnvReadinessMultiplier, "2")
	t.Setenv(EnvTimeoutRollback, "not-a-duration")

	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Timeouts.Helm.Std())
	assert.Equal(t, 7*time.Minute, cfg.Readiness.Timeout.Std())
	assert.InDelta(t, 2.0, cfg.Readiness.Multiplier, 0.0001)
	assert.Equal(t, 10*time.Minute, cfg.Timeouts.Rollback.Std(), "invalid values keep the configured timeout")
}

func TestMarshalRoundTrip(t *testing.T) {
	t.Parallel()
	for _, format := range []Format{FormatYAML, FormatTOML} {
		data, err := Marshal(Default(), format)
		require.NoError(t, err)

		cfg, err := Parse(data, format)
		require.NoError(t, err, string(data))
		assert.Equal(t, Default().Readiness, cfg.Readiness, format)
		assert.Equal(t, Default().LDAP, cfg.LDAP, format)
	}
}

func TestDomainToBaseDN(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "dc=a,dc=b,dc=c", DomainToBaseDN("a.b.c"))
	assert.Empty(t, DomainToBaseDN(""))
}
