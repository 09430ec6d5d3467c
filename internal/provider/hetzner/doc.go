// Package hetzner implements provider.Adapter on the Hetzner Cloud API.
//
// Each node is a server with its own SSH key and firewall, both named after
// the instance. The firewall opens the layout's ingress ports; SSH is
// always included. Layout name, plan and tags are stored as server labels
// so ListNodes can map servers back to layouts.
package hetzner
