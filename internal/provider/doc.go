// Package provider defines the uniform contract over cloud compute APIs.
//
// An [Adapter] creates, lists and destroys nodes and manages the key pairs
// used to reach them. Adapters never retry; callers wrap calls in
// retry.WithExponentialBackoff and adapters mark errors that must not be
// retried (bad credentials, invalid parameters) with retry.Fatal.
//
// Provider selection goes through a [Registry]: a name maps to a factory,
// unknown names fail with [UnsupportedProviderError], and connected
// handles are shared by all workers. Every adapter in this module is safe
// for concurrent use.
package provider
