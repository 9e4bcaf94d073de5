// Package oscio moves OSC packets over UDP.
//
// Server receives datagrams, decodes them with go-osc, flattens bundles and
// hands every message to a Handler. Client encodes and sends messages to a
// fixed peer. Both are used by the serve, send and monitor paths.
package oscio
