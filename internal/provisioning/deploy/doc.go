// Package deploy runs a layout's scripts on its nodes.
//
// Scripts are the regular files at the top of the layout's scripts
// directory. They run in reverse directory-listing order, so with
// "1-a", "10-b" and "2-c" the node runs "2-c", "10-b" and then "1-a".
// A file named "teardown" is never run here; it is uploaded to
// ~/teardown and executed once before the node is destroyed.
//
// Every step is rendered with text/template and the sprig function
// library, uploaded, executed, and recorded as an inventory Action
// before the next step starts. A failing step does not stop the batch.
package deploy
