// Package compute creates the nodes of a layout.
//
// Each node gets a fresh instance name and a provider key pair named
// after it. Key pair registration and node creation are retried together
// with exponential backoff; both calls are idempotent per instance name.
// A created node is written to the inventory with its key pair recorded
// in the service namespace, so teardown can remove both later.
package compute
