// Package ssh provides the remote session used to run commands and move
// files on provisioned nodes.
//
// A Dialer connects to a node with retry and exponential backoff, since
// a freshly created machine usually refuses connections until sshd is up.
// Host key verification is disabled by default: nodes are ephemeral and
// their host keys are unknown until first boot.
package ssh
