package wsproto_test

import (
	"bytes"
	"testing"

	"github.com/shieldgw/shield/internal/wsproto"
)

func TestAcceptKeyMatchesRFCExample(t *testing.T) {
	got := wsproto.AcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Fatalf("AcceptKey() = %q, want %q", got, want)
	}
}

func TestValidateHandshakeAccepts(t *testing.T) {
	req := wsproto.HandshakeRequest{
		Method:  "GET",
		Version: "HTTP/1.1",
		Headers: map[string]string{
			"upgrade":               "websocket",
			"connection":            "Upgrade",
			"sec-websocket-version": "13",
			"sec-websocket-key":     "dGhlIHNhbXBsZSBub25jZQ==",
		},
	}
	key, err := wsproto.ValidateHandshake(req)
	if err != nil {
		t.Fatalf("ValidateHandshake: %v", err)
	}
	if key != "dGhlIHNhbXBsZSBub25jZQ==" {
		t.Fatalf("key = %q", key)
	}
}

func TestValidateHandshakeRejectsMissingUpgrade(t *testing.T) {
	req := wsproto.HandshakeRequest{
		Method:  "GET",
		Version: "HTTP/1.1",
		Headers: map[string]string{
			"connection":            "Upgrade",
			"sec-websocket-version": "13",
			"sec-websocket-key":     "dGhlIHNhbXBsZSBub25jZQ==",
		},
	}
	if _, err := wsproto.ValidateHandshake(req); err == nil {
		t.Fatal("expected error for missing Upgrade header")
	}
}

func TestHandshakeResponseScenario(t *testing.T) {
	resp := string(wsproto.HandshakeResponse("dGhlIHNhbXBsZSBub25jZQ=="))
	if !bytes.Contains([]byte(resp), []byte("101 Switching Protocols")) {
		t.Fatalf("missing 101 status: %q", resp)
	}
	if !bytes.Contains([]byte(resp), []byte("Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=")) {
		t.Fatalf("missing expected accept key: %q", resp)
	}
}

func TestFrameRoundTripUnmasked(t *testing.T) {
	f := wsproto.Frame{FIN: true, Opcode: wsproto.OpText, Payload: []byte("hello, websocket")}
	encoded := wsproto.EncodeFrame(f)

	got, consumed, err := wsproto.ParseFrame(encoded)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if consumed != len(encoded) {
		t.Fatalf("consumed = %d, want %d", consumed, len(encoded))
	}
	if got.FIN != f.FIN || got.Opcode != f.Opcode || !bytes.Equal(got.Payload, f.Payload) {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
}

func TestFrameRoundTripMasked(t *testing.T) {
	f := wsproto.Frame{FIN: true, Opcode: wsproto.OpText, Masked: true, MaskKey: 0xDEADBEEF, Payload: []byte("hi")}
	encoded := wsproto.EncodeFrame(f)

	got, _, err := wsproto.ParseFrame(encoded)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if !bytes.Equal(got.Payload, []byte("hi")) {
		t.Fatalf("unmasked payload = %q, want %q", got.Payload, "hi")
	}
}

func TestFrameExtended16BitLength(t *testing.T) {
	payload := bytes.Repeat([]byte{0x42}, 300)
	f := wsproto.Frame{FIN: true, Opcode: wsproto.OpBinary, Payload: payload}
	encoded := wsproto.EncodeFrame(f)

	got, consumed, err := wsproto.ParseFrame(encoded)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if consumed != len(encoded) || !bytes.Equal(got.Payload, payload) {
		t.Fatalf("extended-length round trip failed")
	}
}

func TestParseFrameInsufficientDataDoesNotConsume(t *testing.T) {
	full := wsproto.EncodeFrame(wsproto.Frame{FIN: true, Opcode: wsproto.OpText, Payload: []byte("hello")})
	partial := full[:len(full)-1]

	_, consumed, err := wsproto.ParseFrame(partial)
	if err != wsproto.ErrInsufficientData {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
	if consumed != 0 {
		t.Fatalf("consumed = %d, want 0", consumed)
	}
}

func TestParseFrameRejectsNonZeroRSV(t *testing.T) {
	frame := []byte{0x80 | 0x40 | byte(wsproto.OpText), 0x00}
	_, _, err := wsproto.ParseFrame(frame)
	if err == nil || err == wsproto.ErrInsufficientData {
		t.Fatalf("expected protocol error for non-zero RSV, got %v", err)
	}
}

func TestWebSocketEchoScenario(t *testing.T) {
	var sent []byte
	conn := wsproto.NewConn(1, func(data []byte) { sent = append(sent, data...) })

	conn.CompleteHandshake("dGhlIHNhbXBsZSBub25jZQ==")
	if conn.State() != wsproto.StateOpen {
		t.Fatalf("state after handshake = %v, want StateOpen", conn.State())
	}
	sent = nil // discard the handshake response bytes

	var received []byte
	conn.OnMessage(func(payload []byte, binary bool) {
		received = payload
		conn.SendText(string(payload))
	})

	clientFrame := wsproto.EncodeFrame(wsproto.Frame{
		FIN: true, Opcode: wsproto.OpText, Masked: true, MaskKey: 0x12345678, Payload: []byte("hi"),
	})

	consumed, err := wsproto.DecodeFrames(clientFrame, conn.HandleFrame)
	if err != nil {
		t.Fatalf("DecodeFrames: %v", err)
	}
	if consumed != len(clientFrame) {
		t.Fatalf("consumed = %d, want %d", consumed, len(clientFrame))
	}
	if string(received) != "hi" {
		t.Fatalf("received = %q, want %q", received, "hi")
	}

	reply, _, err := wsproto.ParseFrame(sent)
	if err != nil {
		t.Fatalf("ParseFrame(reply): %v", err)
	}
	if reply.Masked {
		t.Fatal("server reply must be unmasked")
	}
	if string(reply.Payload) != "hi" {
		t.Fatalf("reply payload = %q, want %q", reply.Payload, "hi")
	}
}

func TestFragmentedMessageRejected(t *testing.T) {
	var sent []byte
	var closedCode uint16
	conn := wsproto.NewConn(1, func(data []byte) { sent = append(sent, data...) })
	conn.CompleteHandshake("dGhlIHNhbXBsZSBub25jZQ==")
	conn.OnClose(func(code uint16, reason string) { closedCode = code })

	fragment := wsproto.Frame{FIN: false, Opcode: wsproto.OpText, Payload: []byte("partial")}
	err := conn.HandleFrame(fragment)
	if err == nil {
		t.Fatal("expected error for fragmented frame")
	}
	if conn.State() != wsproto.StateClosed {
		t.Fatalf("state = %v, want StateClosed", conn.State())
	}
	if closedCode != wsproto.CloseProtocolError {
		t.Fatalf("close code = %d, want %d", closedCode, wsproto.CloseProtocolError)
	}
}
