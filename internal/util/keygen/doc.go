// Package keygen generates SSH key pairs for node access.
//
// Private keys are PEM encoded and public keys use the OpenSSH
// authorized_keys format, which is what every provider's key pair import
// API accepts. [WriteFiles] lays a pair out the way ssh-keygen does.
package keygen
