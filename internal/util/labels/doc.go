// Package labels builds the label sets attached to every provisioned resource.
//
// Keys use the ogc.io domain prefix. The layout and instance labels let
// provider listings be mapped back to inventory entries; layout tags are
// encoded as ogc.io/tag.{tag}=true because not every provider has a
// separate tag concept.
package labels
