package stack

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"

	"github.com/imamik/rabbitkind/internal/config"
	"github.com/imamik/rabbitkind/internal/platform/kube"
	"github.com/imamik/rabbitkind/internal/platform/shell"
	"github.com/imamik/rabbitkind/internal/provisioning"
	"github.com/imamik/rabbitkind/internal/provisioning/readiness"
	"github.com/imamik/rabbitkind/internal/util/keygen"
)

// Step ids.
const (
	KindCluster         = "kind-cluster"
	Namespace           = "namespace"
	CertManager         = "cert-manager"
	RabbitMQOperator    = "rabbitmq-operator"
	TopologyOperator    = "topology-operator"
	LDAPCredentials     = "ldap-credentials"
	OpenLDAP            = "openldap"
	RabbitMQCluster     = "rabbitmq-cluster"
	RabbitMQCredentials = "rabbitmq-credentials"
)

// Output value keys.
const (
	ValueKubeconfig     = "kubeconfig"
	ValueContext        = "context"
	ValueUsername       = "username"
	ValuePassword       = "password"
	ValueHost           = "host"
	ValuePort           = "port"
	ValueURL            = "url"
	ValueLocalURL       = "local-url"
	ValueAdminPassword  = "admin-password"
	ValueConfigPassword = "config-password"
	// ValueUserPasswordPrefix prefixes one value per seeded LDAP user.
	ValueUserPasswordPrefix = "user."
)

const (
	fieldManager   = "rabbitkind"
	passwordLength = 24
	// amqpNodePort is the NodePort the AMQP listener is exposed on when a
	// host port mapping is configured.
	amqpNodePort = 30672
)

// Dependencies are the collaborators steps act through.
type Dependencies struct {
	Exec    shell.Executor
	Clients ClientFactory
	// Password generates secrets. Defaults to keygen.GeneratePassword.
	Password func(length int) (string, error)
	// Hash produces LDAP userPassword values. Defaults to keygen.SSHA.
	Hash func(password string) (string, error)
	Log  logr.Logger
}

// Stack builds the provisioning steps for one configuration.
type Stack struct {
	cfg  *config.Config
	deps Dependencies

	mu         sync.Mutex
	kubeconfig []byte
}

// New validates the collaborators and creates a Stack.
func New(cfg *config.Config, deps Dependencies) (*Stack, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if deps.Exec == nil {
		return nil, errors.New("executor is required")
	}
	if deps.Clients == nil {
		return nil, errors.New("client factory is required")
	}
	if deps.Password == nil {
		deps.Password = keygen.GeneratePassword
	}
	if deps.Hash == nil {
		deps.Hash = keygen.SSHA
	}
	return &Stack{cfg: cfg, deps: deps}, nil
}

// Steps returns the step set in declaration order.
func (s *Stack) Steps() []provisioning.Step {
	return []provisioning.Step{
		s.kindClusterStep(),
		s.namespaceStep(),
		s.certManagerStep(),
		s.rabbitMQOperatorStep(),
		s.topologyOperatorStep(),
		s.ldapCredentialsStep(),
		s.openLDAPStep(),
		s.rabbitMQClusterStep(),
		s.rabbitMQCredentialsStep(),
	}
}

// Graph returns the validated dependency graph of Steps.
func (s *Stack) Graph() (*provisioning.Graph, error) {
	return provisioning.NewGraphFromSteps(s.Steps())
}

func (s *Stack) kubeContext() string {
	return "kind-" + s.cfg.ClusterName
}

// kubeconfigFor returns the cluster kubeconfig. It prefers the kind-cluster
// output, then the value captured by this Stack, then asks kind.
func (s *Stack) kubeconfigFor(ctx context.Context, sc *provisioning.StepContext) ([]byte, error) {
	if sc.StepID() != KindCluster {
		out, err := sc.Output(KindCluster)
		switch {
		case err == nil && out.Value(ValueKubeconfig) != "":
			return []byte(out.Value(ValueKubeconfig)), nil
		case err != nil && !errors.Is(err, provisioning.ErrOutputUnavailable):
			return nil, err
		}
	}

	s.mu.Lock()
	cached := s.kubeconfig
	s.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	res, err := s.deps.Exec.Execute(ctx, shell.Cmd("kind", "get", "kubeconfig", "--name", s.cfg.ClusterName))
	if err != nil {
		return nil, fmt.Errorf("failed to read kubeconfig of cluster %s: %w", s.cfg.ClusterName, err)
	}
	kc := []byte(res.Stdout)
	s.rememberKubeconfig(kc)
	return kc, nil
}

func (s *Stack) rememberKubeconfig(kc []byte) {
	s.mu.Lock()
	s.kubeconfig = kc
	s.mu.Unlock()
}

func (s *Stack) applier(ctx context.Context, sc *provisioning.StepContext) (kube.Applier, error) {
	kc, err := s.kubeconfigFor(ctx, sc)
	if err != nil {
		return nil, err
	}
	return s.deps.Clients.Applier(kc)
}

func (s *Stack) querier(ctx context.Context, sc *provisioning.StepContext) (kube.Querier, error) {
	kc, err := s.kubeconfigFor(ctx, sc)
	if err != nil {
		return nil, err
	}
	return s.deps.Clients.Querier(kc)
}

// ready builds a readiness check whose probe needs a cluster querier.
func (s *Stack) ready(stepID string, probe func(q kube.Querier) readiness.Probe) *provisioning.Readiness {
	return &provisioning.Readiness{
		Probe: func(ctx context.Context, sc *provisioning.StepContext) (bool, error) {
			q, err := s.querier(ctx, sc)
			if err != nil {
				return false, err
			}
			return probe(q)(ctx)
		},
		Policy: s.cfg.PolicyFor(stepID),
	}
}

// run executes a command bounded by the configured command timeout.
func (s *Stack) run(ctx context.Context, cmd shell.Command) (shell.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeouts.Command.Std())
	defer cancel()
	return s.deps.Exec.Execute(ctx, cmd)
}

func (s *Stack) kubectl(args ...string) shell.Command {
	return shell.Cmd("kubectl", append([]string{"--context", s.kubeContext()}, args...)...)
}
