// Package naming provides consistent naming functions for provisioned resources.
//
// Instances are named ogc-{4 hex}-{layout}. The prefix has a fixed width,
// so the owning layout can always be recovered from an instance name alone
// with [LayoutOf], even when the inventory has to be rebuilt from the
// provider's listing. Per-instance resources (key pairs, firewalls,
// security groups) are named after the instance they belong to.
package naming
