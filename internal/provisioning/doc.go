// Package provisioning provides the run context and shared types used by
// the fleet operations.
//
// # Subpackages
//
//   - compute/: node creation (the add path of a reconciliation)
//   - deploy/: script rendering, upload and execution on a node
//   - destroy/: teardown, artifact retrieval and node removal
//   - reconcile/: status, sync and drift of layouts against the inventory
//
// # Core Types
//
// Context is built once per run and carries the plan, inventory store,
// provider registry, dialer, observer, metrics and worker pool.
// Observer receives structured events from every subpackage.
// Remote and Dialer abstract the SSH session so tests can substitute one.
package provisioning
