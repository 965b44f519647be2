package app

import (
	"context"
	"fmt"
)

// EchoHandler is the gateway's default Handler: it answers every binary
// frame with "ok", echoes WebSocket text messages back unchanged, and
// serves /health and /status as JSON. It exists so the gateway binary has
// something to dispatch to out of the box; a real deployment wires in its
// own Handler instead.
type EchoHandler struct{}

// HandleBinary always answers "ok", matching the literal binary-echo
// end-to-end scenario.
func (EchoHandler) HandleBinary(ctx context.Context, sessionID uint64, payload []byte) ([]byte, error) {
	return []byte("ok"), nil
}

// HandleHTTP serves /health and /status; everything else is a 404. This
// mirrors the routes internal/httpproto.Router wires in for the minimal
// handler, so the Beast front end and the minimal handler behave the same
// way against the default Handler.
func (EchoHandler) HandleHTTP(ctx context.Context, req Request) (Response, error) {
	switch req.Path {
	case "/health":
		return jsonResponse(200, `{"status":"healthy","service":"shield"}`), nil
	case "/status":
		return jsonResponse(200, `{"status":"running","protocol":"http"}`), nil
	default:
		return jsonResponse(404, fmt.Sprintf(`{"error":"Not Found","path":"%s"}`, req.Path)), nil
	}
}

// HandleWS echoes the message back unchanged, matching the literal
// WebSocket-echo end-to-end scenario.
func (EchoHandler) HandleWS(ctx context.Context, sessionID uint64, text string) (string, error) {
	return text, nil
}

func jsonResponse(status int, body string) Response {
	return Response{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(body),
	}
}
