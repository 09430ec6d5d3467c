// Package aws implements provider.Adapter on EC2.
//
// Each node gets its own security group carrying the layout's ingress
// ports, named after the instance so teardown can find it without extra
// state. Layout labels and tags become instance tags.
package aws
