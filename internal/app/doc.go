// Package app wires the nodebus components together.
//
// New resolves the outbound pool, the receiver registry, the state store and
// the command catalog from a go.uber.org/dig container built from the
// loaded configuration. Start registers the state receiver, installs the
// state synchronisation callback and, when enabled, the InfluxDB history
// hook. Watch stands in for a presentation layer: it waits on the store's
// wake signal and reports each new snapshot.
package app
