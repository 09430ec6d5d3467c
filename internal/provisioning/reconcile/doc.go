// Package reconcile closes the gap between each layout's desired scale
// and the nodes recorded in the inventory.
//
// A pass counts the layout's nodes, then either provisions the missing
// ones and deploys to them, or force-destroys the surplus. Provisioning
// is joined before any deployment starts. Passes are not transactional:
// partial results are reported, and a layout still off target afterwards
// is returned as ErrDegraded.
package reconcile
