package stack

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"gopkg.in/ini.v1"

	"github.com/imamik/rabbitkind/internal/platform/kube"
	"github.com/imamik/rabbitkind/internal/provisioning"
	"github.com/imamik/rabbitkind/internal/provisioning/readiness"
)

const (
	amqpPort          = 5672
	allReplicasReady  = "AllReplicasReady"
	defaultUserSuffix = "-default-user"
)

// rabbitMQConfig renders the rabbitmq.conf fragment that enables LDAP
// authentication with the internal backend as fallback for the operator's
// default user.
func (s *Stack) rabbitMQConfig() (string, error) {
	f := ini.Empty()
	sec := f.Section("")
	settings := []struct{ key, value string }{
		{"auth_backends.1", "ldap"},
		{"auth_backends.2", "internal"},
		{"auth_ldap.servers.1", s.cfg.LDAPService()},
		{"auth_ldap.port", strconv.Itoa(s.cfg.LDAP.Port)},
		{"auth_ldap.user_dn_pattern", s.cfg.LDAP.UserDNPattern},
		{"auth_ldap.use_ssl", "false"},
		{"auth_ldap.log", "false"},
	}
	for _, kv := range settings {
		if _, err := sec.NewKey(kv.key, kv.value); err != nil {
			return "", fmt.Errorf("failed to set %s: %w", kv.key, err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("failed to render rabbitmq.conf: %w", err)
	}
	return buf.String(), nil
}

type rabbitMQClusterData struct {
	Name             string
	Namespace        string
	Replicas         int
	Image            string
	NodePort         int
	AdditionalConfig string
}

func (s *Stack) rabbitMQClusterManifest() ([]byte, error) {
	conf, err := s.rabbitMQConfig()
	if err != nil {
		return nil, err
	}
	data := rabbitMQClusterData{
		Name:             s.cfg.RabbitMQ.ClusterName,
		Namespace:        s.cfg.Namespace,
		Replicas:         s.cfg.RabbitMQ.Replicas,
		Image:            s.cfg.RabbitMQ.Image,
		AdditionalConfig: conf,
	}
	if s.cfg.Kind.AMQPHostPort > 0 {
		data.NodePort = amqpNodePort
	}
	return renderManifests("rabbitmq", data)
}

func (s *Stack) rabbitMQClusterRef() kube.ResourceRef {
	return kube.ResourceRef{
		APIVersion: "rabbitmq.com/v1beta1",
		Kind:       "RabbitmqCluster",
		Namespace:  s.cfg.Namespace,
		Name:       s.cfg.RabbitMQ.ClusterName,
	}
}

func (s *Stack) rabbitMQClusterStep() provisioning.Step {
	return provisioning.Step{
		ID:          RabbitMQCluster,
		Description: "RabbitmqCluster " + s.cfg.RabbitMQ.ClusterName,
		DependsOn:   []string{KindCluster, Namespace, RabbitMQOperator, OpenLDAP, LDAPCredentials},
		Create: func(ctx context.Context, sc *provisioning.StepContext) (provisioning.StepResult, error) {
			a, err := s.applier(ctx, sc)
			if err != nil {
				return provisioning.StepResult{}, err
			}
			// The RabbitmqCluster kind exists only since the operator step.
			if err := a.RefreshDiscovery(ctx); err != nil {
				return provisioning.StepResult{}, err
			}
			if err := s.applyRendered(ctx, sc, s.rabbitMQClusterManifest); err != nil {
				return provisioning.StepResult{}, err
			}
			return provisioning.StepResult{Output: s.rabbitMQClusterRef().String()}, nil
		},
		Readiness: s.ready(RabbitMQCluster, func(q kube.Querier) readiness.Probe {
			return kube.ConditionTrue(q, s.rabbitMQClusterRef(), allReplicasReady)
		}),
		Delete: func(ctx context.Context, sc *provisioning.StepContext) error {
			return s.deleteRendered(ctx, sc, s.rabbitMQClusterManifest)
		},
	}
}

func (s *Stack) rabbitMQCredentialsStep() provisioning.Step {
	return provisioning.Step{
		ID:          RabbitMQCredentials,
		Description: "RabbitMQ default user credentials",
		DependsOn:   []string{KindCluster, RabbitMQCluster},
		Create: func(ctx context.Context, sc *provisioning.StepContext) (provisioning.StepResult, error) {
			a, err := s.applier(ctx, sc)
			if err != nil {
				return provisioning.StepResult{}, err
			}
			name := s.cfg.RabbitMQ.ClusterName + defaultUserSuffix
			secret, err := a.GetSecret(ctx, s.cfg.Namespace, name)
			if err != nil {
				return provisioning.StepResult{}, fmt.Errorf("failed to read default user secret: %w", err)
			}
			user, pass := string(secret.Data[ValueUsername]), string(secret.Data[ValuePassword])
			if user == "" || pass == "" {
				return provisioning.StepResult{}, fmt.Errorf("secret %s/%s has no username or password", s.cfg.Namespace, name)
			}

			host := s.cfg.RabbitMQService()
			url := fmt.Sprintf("amqp://%s:%d/", host, amqpPort)
			values := map[string]string{
				ValueUsername: user,
				ValuePassword: pass,
				ValueHost:     host,
				ValuePort:     strconv.Itoa(amqpPort),
				ValueURL:      url,
			}
			if s.cfg.Kind.AMQPHostPort > 0 {
				values[ValueLocalURL] = fmt.Sprintf("amqp://localhost:%d/", s.cfg.Kind.AMQPHostPort)
			}
			return provisioning.StepResult{Output: url, Values: values}, nil
		},
	}
}
