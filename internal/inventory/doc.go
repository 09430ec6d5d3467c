// Package inventory is the durable record of every node ogc manages.
//
// Nodes, their append-only action history and per-node service metadata
// (key pair and firewall references) live in a local Badger database under
// two namespaces, both keyed by instance name. Records are encoded with a
// versioned CBOR envelope; a record written by an unknown schema version
// is rejected rather than guessed at.
//
// Queries use a typed [Filter] over known node fields. Unknown fields are
// a validation error; a node that lacks the attribute simply does not
// match.
package inventory
