package beastserver_test

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/shieldgw/shield/internal/app"
	"github.com/shieldgw/shield/internal/beastserver"
)

type echoHandler struct{}

func (echoHandler) HandleBinary(ctx context.Context, sessionID uint64, payload []byte) ([]byte, error) {
	return payload, nil
}

func (echoHandler) HandleHTTP(ctx context.Context, req app.Request) (app.Response, error) {
	if req.Path == "/health" {
		return app.Response{StatusCode: 200, Body: []byte(`{"status":"healthy"}`)}, nil
	}
	return app.Response{StatusCode: 404, Body: []byte(`{"error":"not found"}`)}, nil
}

func (echoHandler) HandleWS(ctx context.Context, sessionID uint64, text string) (string, error) {
	return text, nil
}

func TestServerRoutesToHandler(t *testing.T) {
	srv := beastserver.New(beastserver.Config{Host: "127.0.0.1", Port: 0}, echoHandler{}, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop(context.Background())

	resp, err := http.Get("http://" + srv.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Server"); got != "shield" {
		t.Fatalf("Server header = %q, want %q", got, "shield")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(body) != `{"status":"healthy"}` {
		t.Fatalf("body = %q", body)
	}
}

func TestServerNotFound(t *testing.T) {
	srv := beastserver.New(beastserver.Config{Host: "127.0.0.1", Port: 0}, echoHandler{}, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop(context.Background())

	client := http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + srv.Addr().String() + "/nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
