// Package server publishes the device as a Unix-domain socket node.
//
// [Server] implements lifecycle.Publisher. Publish creates the socket at
// the configured path and starts accepting clients; Retract closes the
// listener and every client connection, then removes the node. Clients
// speak the frame protocol in package proto; each connection is served
// sequentially on a bounded worker pool.
package server
