// Package app defines the application-level contract the gateway dispatches
// decoded requests to. The gateway itself only frames, parses, and routes
// bytes; what those bytes mean is entirely up to whatever Handler the
// operator wires in at startup.
package app

import "context"

// Handler is the single collaborator the gateway depends on to turn decoded
// protocol messages into responses. Its three methods mirror the three
// message shapes the gateway can produce: a raw binary frame payload, a
// parsed HTTP request, and a WebSocket text message. A Handler implementation
// is expected to live outside this module; the gateway never constructs one
// itself.
type Handler interface {
	// HandleBinary answers a decoded length-prefixed frame payload with the
	// bytes to send back on the same session, or an error if the payload
	// could not be handled.
	HandleBinary(ctx context.Context, sessionID uint64, payload []byte) ([]byte, error)

	// HandleHTTP answers a parsed HTTP request with a Response to serialize
	// back to the client.
	HandleHTTP(ctx context.Context, req Request) (Response, error)

	// HandleWS answers a WebSocket text message with the text to send back
	// on the same connection.
	HandleWS(ctx context.Context, sessionID uint64, text string) (string, error)
}

// Request is the protocol-neutral view of an HTTP request that the gateway
// passes to Handler.HandleHTTP. It is deliberately smaller than
// httpproto.Request: only the fields an application handler plausibly needs
// to make a routing decision.
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
	Body    []byte
}

// Response is what a Handler returns for an HTTP request. The gateway fills
// in Content-Length and default headers; Handler only supplies what's
// specific to the answer.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}
