// Package stack defines the provisioning steps of a local RabbitMQ
// environment: a kind cluster, cert-manager, the RabbitMQ cluster and
// messaging topology operators, an OpenLDAP directory and an LDAP-backed
// RabbitmqCluster.
//
// Steps reach the outside world only through shell.Executor and the
// ClientFactory, so the whole set runs against fakes in tests.
package stack
