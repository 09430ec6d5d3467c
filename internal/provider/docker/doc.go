// Package docker implements provider.Adapter on a Docker daemon, giving
// each node its own container. It targets sshd images that take the
// authorized key and login user from the PUBLIC_KEY and USER_NAME
// environment variables, such as linuxserver/openssh-server.
//
// Docker has no key registry: key pairs are carried in the container
// environment, so CreateKeyPair and DeleteKeyPair only produce and
// accept references.
package docker
