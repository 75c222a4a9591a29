// Package service implements an optional HTTP API to inspect a running node.
//
// Endpoints:
//
//  /stats     // runtime counters of the node, as a JSON object of strings
//  /topology  // the sorted list of known peers
//  /metrics   // prometheus metrics
package service
