// Package testutil provides assertion helpers for the integration tests.
//
// For NATS server setup and in-memory collaborators use the
// github.com/arloliu/fanout/testing package.
package testutil
