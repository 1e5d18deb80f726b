// Package config defines the rabbitkind configuration model.
//
// A [Config] describes the kind cluster, the cert-manager release, the
// RabbitMQ operators and cluster, the OpenLDAP directory backing RabbitMQ
// authentication, readiness polling and where run reports are written. It
// is read from YAML or TOML by [LoadFile], completed with defaults,
// overridden from the environment and validated before use.
package config
