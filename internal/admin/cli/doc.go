// Package cli implements accountctl, an interactive console that drives the
// account flow controller in-process with a single session. It is meant for
// operators checking accounts against a live database.
package cli
