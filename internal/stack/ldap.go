package stack

import (
	"context"
	"errors"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/imamik/rabbitkind/internal/platform/kube"
	"github.com/imamik/rabbitkind/internal/provisioning"
	"github.com/imamik/rabbitkind/internal/provisioning/readiness"
	"github.com/imamik/rabbitkind/internal/util/labels"
)

const (
	ldapCredentialsSecret = "openldap-credentials"
	openLDAPName          = "openldap"
)

// credentialKeys lists every value the credentials secret must hold.
func (s *Stack) credentialKeys() []string {
	keys := []string{ValueAdminPassword, ValueConfigPassword}
	for _, u := range s.cfg.LDAP.Users {
		keys = append(keys, ValueUserPasswordPrefix+u)
	}
	return keys
}

func (s *Stack) ldapCredentialsStep() provisioning.Step {
	return provisioning.Step{
		ID:          LDAPCredentials,
		Description: "LDAP admin and user passwords",
		DependsOn:   []string{KindCluster, Namespace},
		Create:      s.createLDAPCredentials,
		Delete: func(ctx context.Context, sc *provisioning.StepContext) error {
			a, err := s.applier(ctx, sc)
			if err != nil {
				return err
			}
			return a.DeleteSecret(ctx, s.cfg.Namespace, ldapCredentialsSecret)
		},
	}
}

// createLDAPCredentials keeps passwords already stored in the secret and
// generates the missing ones, so re-applying does not rotate them.
func (s *Stack) createLDAPCredentials(ctx context.Context, sc *provisioning.StepContext) (provisioning.StepResult, error) {
	a, err := s.applier(ctx, sc)
	if err != nil {
		return provisioning.StepResult{}, err
	}

	values := make(map[string]string)
	existing, err := a.GetSecret(ctx, s.cfg.Namespace, ldapCredentialsSecret)
	switch {
	case err == nil:
		for k, v := range existing.Data {
			values[k] = string(v)
		}
	case !errors.Is(err, kube.ErrNotFound):
		return provisioning.StepResult{}, err
	}

	generated := 0
	for _, key := range s.credentialKeys() {
		if values[key] != "" {
			continue
		}
		pw, err := s.deps.Password(passwordLength)
		if err != nil {
			return provisioning.StepResult{}, fmt.Errorf("failed to generate %s: %w", key, err)
		}
		values[key] = pw
		generated++
	}

	if generated > 0 {
		data := make(map[string][]byte, len(values))
		for k, v := range values {
			data[k] = []byte(v)
		}
		secret := &corev1.Secret{
			ObjectMeta: metav1.ObjectMeta{
				Name:      ldapCredentialsSecret,
				Namespace: s.cfg.Namespace,
				Labels:    labels.NewLabelBuilder(s.cfg.ClusterName).WithName(openLDAPName).WithComponent("credentials").Build(),
			},
			Type: corev1.SecretTypeOpaque,
			Data: data,
		}
		if err := a.CreateSecret(ctx, secret); err != nil {
			return provisioning.StepResult{}, err
		}
	}

	return provisioning.StepResult{
		Output: "secret/" + s.cfg.Namespace + "/" + ldapCredentialsSecret,
		Values: values,
	}, nil
}

type openLDAPData struct {
	Namespace         string
	Image             string
	Organisation      string
	Domain            string
	BaseDN            string
	Port              int
	SeedLDIF          string
	CredentialsSecret string
	AdminPasswordKey  string
	ConfigPasswordKey string
}

func (s *Stack) openLDAPManifests(seed string) func() ([]byte, error) {
	return func() ([]byte, error) {
		return renderManifests("openldap", openLDAPData{
			Namespace:         s.cfg.Namespace,
			Image:             s.cfg.LDAP.Image,
			Organisation:      s.cfg.LDAP.Organisation,
			Domain:            s.cfg.LDAP.Domain,
			BaseDN:            s.cfg.LDAP.BaseDN,
			Port:              s.cfg.LDAP.Port,
			SeedLDIF:          seed,
			CredentialsSecret: ldapCredentialsSecret,
			AdminPasswordKey:  ValueAdminPassword,
			ConfigPasswordKey: ValueConfigPassword,
		})
	}
}

func (s *Stack) openLDAPStep() provisioning.Step {
	return provisioning.Step{
		ID:          OpenLDAP,
		Description: "OpenLDAP directory " + s.cfg.LDAP.Domain,
		DependsOn:   []string{KindCluster, Namespace, LDAPCredentials},
		Create: func(ctx context.Context, sc *provisioning.StepContext) (provisioning.StepResult, error) {
			creds, err := sc.Output(LDAPCredentials)
			if err != nil {
				return provisioning.StepResult{}, err
			}
			seed, err := s.seedLDIF(creds)
			if err != nil {
				return provisioning.StepResult{}, err
			}
			if err := s.applyRendered(ctx, sc, s.openLDAPManifests(seed)); err != nil {
				return provisioning.StepResult{}, err
			}
			url := fmt.Sprintf("ldap://%s:%d", s.cfg.LDAPService(), s.cfg.LDAP.Port)
			return provisioning.StepResult{
				Output: url,
				Values: map[string]string{ValueURL: url, "baseDN": s.cfg.LDAP.BaseDN},
			}, nil
		},
		Readiness: s.ready(OpenLDAP, func(q kube.Querier) readiness.Probe {
			return kube.DeploymentAvailable(q, s.cfg.Namespace, openLDAPName)
		}),
		Delete: func(ctx context.Context, sc *provisioning.StepContext) error {
			return s.deleteRendered(ctx, sc, s.openLDAPManifests(""))
		},
	}
}

// seedLDIF builds the bootstrap entries: the organizational units between
// the base DN and the user DNs, then one inetOrgPerson per user.
func (s *Stack) seedLDIF(creds provisioning.StepResult) (string, error) {
	base := s.cfg.LDAP.BaseDN
	var b strings.Builder
	written := map[string]bool{base: true}

	for _, user := range s.cfg.LDAP.Users {
		dn := strings.ReplaceAll(s.cfg.LDAP.UserDNPattern, "${username}", user)
		rdn, parent, ok := strings.Cut(dn, ",")
		if !ok || !strings.HasSuffix(parent, base) {
			return "", fmt.Errorf("user dn %q is not below base dn %q", dn, base)
		}

		if err := writeOUs(&b, parent, base, written); err != nil {
			return "", err
		}

		pw := creds.Value(ValueUserPasswordPrefix + user)
		if pw == "" {
			return "", fmt.Errorf("no password for ldap user %q", user)
		}
		hash, err := s.deps.Hash(pw)
		if err != nil {
			return "", fmt.Errorf("failed to hash password of %q: %w", user, err)
		}

		attr, _, _ := strings.Cut(rdn, "=")
		fmt.Fprintf(&b, "dn: %s\nobjectClass: inetOrgPerson\n", dn)
		if attr != "cn" {
			fmt.Fprintf(&b, "%s: %s\n", attr, user)
		}
		fmt.Fprintf(&b, "cn: %s\nsn: %s\nuserPassword: %s\n\n", user, user, hash)
	}
	return b.String(), nil
}

// writeOUs emits organizationalUnit entries for every RDN of dn above base,
// outermost first.
func writeOUs(b *strings.Builder, dn, base string, written map[string]bool) error {
	if written[dn] {
		return nil
	}
	rdn, parent, ok := strings.Cut(dn, ",")
	if !ok {
		return fmt.Errorf("dn %q is not below base dn %q", dn, base)
	}
	if err := writeOUs(b, parent, base, written); err != nil {
		return err
	}
	attr, value, _ := strings.Cut(rdn, "=")
	if attr != "ou" {
		return fmt.Errorf("cannot create intermediate entry %q: only ou= containers are supported", dn)
	}
	fmt.Fprintf(b, "dn: %s\nobjectClass: organizationalUnit\nou: %s\n\n", dn, value)
	written[dn] = true
	return nil
}
