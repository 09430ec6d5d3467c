// Package destroy tears nodes down and removes them from the inventory.
//
// Unless forced, a node is first dialed so its ~/teardown script can run
// and its artifact path can be archived locally. The provider resource is
// then destroyed, its key pair released, and the node and service records
// deleted. A node the provider no longer knows about is still removed
// from the inventory.
package destroy
