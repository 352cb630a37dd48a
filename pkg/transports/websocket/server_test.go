package websocket

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/harunnryd/bytegate/pkg/transports"
)

func echoHandler(seen chan<- transports.ConnInfo) transports.Handler {
	return transports.HandlerFunc(func(ctx context.Context, conn transports.Conn, info transports.ConnInfo) error {
		seen <- info
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return nil
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return err
			}
		}
	})
}

func TestHealth(t *testing.T) {
	srv := New(Config{}, echoHandler(make(chan transports.ConnInfo, 1)), nil)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected health response: %d %q", resp.StatusCode, body)
	}
}

func TestUpgradeHandsConnToHandler(t *testing.T) {
	seen := make(chan transports.ConnInfo, 1)
	srv := New(Config{}, echoHandler(seen), nil)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	select {
	case info := <-seen:
		if info.SessionID == "" {
			t.Fatalf("expected a session id")
		}
	case <-time.After(time.Second):
		t.Fatalf("handler not called")
	}

	if err := conn.WriteMessage(gws.TextMessage, []byte(`{"type":"final","text":"hi"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil || string(data) != `{"type":"final","text":"hi"}` {
		t.Fatalf("unexpected echo %q: %v", data, err)
	}
}

func TestDrainingRefusesUpgrade(t *testing.T) {
	srv := New(Config{}, echoHandler(make(chan transports.ConnInfo, 1)), nil)
	srv.SetDraining(true)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := gws.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("expected dial to fail while draining")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503")
	}
}

func TestCheckOrigin(t *testing.T) {
	srv := New(Config{AllowedOrigins: []string{"https://app.example.com", "localhost:3000"}}, nil, nil)
	cases := map[string]bool{
		"":                        true,
		"https://app.example.com": true,
		"http://localhost:3000":   true,
		"https://evil.example":    false,
	}
	for origin, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		if got := srv.checkOrigin(r); got != want {
			t.Fatalf("origin %q: expected %v, got %v", origin, want, got)
		}
	}
}
