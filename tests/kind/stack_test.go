//go:build kind

package kind

import (
	"bytes"
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/imamik/rabbitkind/internal/amqpcheck"
	"github.com/imamik/rabbitkind/internal/provisioning"
	"github.com/imamik/rabbitkind/internal/stack"
	"github.com/imamik/rabbitkind/internal/util/labels"
)

// check runs the AMQP checker against the published host port.
func check(ctx context.Context, opts amqpcheck.Options) (amqpcheck.Result, error) {
	opts.Host = "localhost"
	opts.Port = amqpHostPort
	opts.ConnectRetries = 5
	var out bytes.Buffer
	res, err := amqpcheck.New(&out).Run(ctx, opts)
	GinkgoWriter.Print(out.String())
	return res, err
}

var _ = Describe("Provisioned stack", Ordered, func() {
	AfterEach(func() {
		if CurrentSpecReport().Failed() {
			fw.CollectNamespaceDiagnostics(GinkgoWriter, fw.Config().Namespace)
			fw.CollectPodLogs(GinkgoWriter, fw.Config().Namespace, "app.kubernetes.io/name="+fw.Config().RabbitMQ.ClusterName, 100)
			fw.CollectPodLogs(GinkgoWriter, fw.Config().Namespace, "app.kubernetes.io/name=openldap", 100)
		}
	})

	It("records every step as succeeded in dependency order", func() {
		report := fw.Report()
		Expect(report).NotTo(BeNil())
		Expect(report.Status).To(Equal(provisioning.StatusCompleted))
		Expect(report.Order[0]).To(Equal(stack.KindCluster))
		for _, rec := range report.Records {
			Expect(rec.State).To(Equal(provisioning.StateSucceeded), rec.StepID)
		}
		Expect(report.Succeeded()).To(HaveLen(9))
	})

	It("has the operators and cert-manager running", func() {
		for _, crd := range []string{"certificates.cert-manager.io", "rabbitmqclusters.rabbitmq.com", "queues.rabbitmq.com"} {
			Expect(fw.CRDEstablished(crd)).To(BeTrue(), crd)
		}
		Expect(fw.DeploymentAvailable("cert-manager", "cert-manager-webhook")).To(BeTrue())
		Expect(fw.DeploymentAvailable("rabbitmq-system", "rabbitmq-cluster-operator")).To(BeTrue())
		Expect(fw.DeploymentAvailable("rabbitmq-system", "messaging-topology-operator")).To(BeTrue())
	})

	It("has OpenLDAP and a ready RabbitmqCluster", func() {
		ns := fw.Config().Namespace
		Expect(fw.DeploymentAvailable(ns, "openldap")).To(BeTrue())
		Expect(fw.Condition("rabbitmqcluster", ns, fw.Config().RabbitMQ.ClusterName, "AllReplicasReady")).To(Equal("True"))
		Expect(fw.ResourceExists("secret", ns, fw.Config().RabbitMQ.ClusterName+"-default-user")).To(BeTrue())
	})

	It("labels the objects it creates", func() {
		out, err := fw.Kubectl("-n", fw.Config().Namespace, "get", "secret,namespace",
			"-l", labels.SelectorForCluster(clusterName), "-o", "name")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("secret/openldap-credentials"))
		Expect(out).To(ContainSubstring("namespace/" + fw.Config().Namespace))
	})

	It("outputs credentials for the default and directory users", func() {
		Expect(fw.Output(stack.RabbitMQCredentials, stack.ValueUsername)).NotTo(BeEmpty())
		Expect(fw.Output(stack.RabbitMQCredentials, stack.ValuePassword)).NotTo(BeEmpty())
		for _, user := range fw.Config().LDAP.Users {
			Expect(fw.Output(stack.LDAPCredentials, stack.ValueUserPasswordPrefix+user)).NotTo(BeEmpty(), user)
		}
	})

	It("accepts a directory user over AMQP and round-trips messages", func(ctx SpecContext) {
		password := fw.Output(stack.LDAPCredentials, stack.ValueUserPasswordPrefix+"alice")

		sent, err := check(ctx, amqpcheck.Options{
			Username: "alice", Password: password,
			Queue: "e2e", Messages: []string{"one", "two"}, Count: 2,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(sent.Sent).To(Equal(4))

		got, err := check(ctx, amqpcheck.Options{
			Username: "alice", Password: password,
			Queue: "e2e", Receive: true, Count: 4,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Received).To(Equal(4))
	}, SpecTimeout(3*time.Minute))

	It("rejects a directory user with the wrong password", func(ctx SpecContext) {
		_, err := check(ctx, amqpcheck.Options{Username: "bob", Password: "wrong"})
		Expect(err).To(HaveOccurred())
	}, SpecTimeout(2*time.Minute))

	It("skips every step when resumed", func(ctx SpecContext) {
		before := fw.Output(stack.LDAPCredentials, stack.ValueUserPasswordPrefix+"alice")

		report, err := fw.Apply(ctx, true)
		Expect(err).NotTo(HaveOccurred())
		for _, rec := range report.Records {
			Expect(rec.Resumed).To(BeTrue(), rec.StepID)
		}
		Expect(fw.Output(stack.LDAPCredentials, stack.ValueUserPasswordPrefix+"alice")).To(Equal(before))
	}, SpecTimeout(5*time.Minute))
})
