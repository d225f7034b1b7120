// Package command builds and sends outbound node commands.
//
// A command is a named operation with numeric parameters. The Catalog maps
// each command name to the topic it is published on and the parameter set
// it carries; the Dispatcher turns a catalog entry into the wire document
//
//	{"op": "<name>", "op_value": {"<param>": <number>, ...}}
//
// and hands it to a Sender, normally the connection pool.
//
// The catalog is an explicit object built once (usually from configuration)
// and passed to whoever needs it; there is no package-level state.
package command
