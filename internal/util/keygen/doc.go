// Package keygen generates random credentials.
//
// Passwords are drawn from crypto/rand over an alphanumeric alphabet so
// they survive shell quoting, LDIF and Kubernetes secret data unchanged.
// SSHA produces the salted SHA-1 form OpenLDAP accepts in userPassword.
package keygen
