// Package firebase implements the identity provider against the Firebase
// identity toolkit REST API, plus an interactive federated sign-in broker
// built on OIDC discovery with a loopback redirect.
package firebase
