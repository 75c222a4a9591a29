// Package protocol groups the handler sets built on the node runtime. Each
// subpackage registers its message types on a node.Registry and exposes a New
// function returning a ready to run node.
package protocol
