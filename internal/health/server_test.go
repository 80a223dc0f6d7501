package health

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"kelasbot/pkg/logx"
)

func startServer(t *testing.T) (*Server, context.CancelFunc) {
	t.Helper()
	srv := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Start returned %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Error("server did not stop")
		}
	})

	deadline := time.Now().Add(3 * time.Second)
	for srv.BoundAddr() == "" && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if srv.BoundAddr() == "" {
		t.Fatal("server never bound")
	}
	return srv, cancel
}

func TestLivenessEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := startServer(t)

	resp, err := http.Get("http://" + srv.BoundAddr() + "/")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "ok" {
		t.Fatalf("body = %q, want ok", body)
	}
}

func TestLivenessRejectsPost(t *testing.T) {
	t.Parallel()
	srv, _ := startServer(t)

	resp, err := http.Post("http://"+srv.BoundAddr()+"/", "text/plain", http.NoBody)
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}

func TestDisabledServerParks(t *testing.T) {
	t.Parallel()
	srv := New(Config{Enabled: false}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("disabled server did not return on cancel")
	}
}
