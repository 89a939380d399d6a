package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadi-hydro/nadi/internal/testutil"
)

func writeNetwork(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "river.net")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newTestServer(t *testing.T, logger *slog.Logger) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	path := writeNetwork(t, dir, "a -> c\nb -> c\n")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nodes"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nodes", "a.txt"), []byte("area = 10\n"), 0o600))

	s, err := New(Config{Path: path, Logger: logger})
	require.NoError(t, err)
	return s, dir
}

func get(t *testing.T, srv *httptest.Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHandler(t *testing.T) {
	s, _ := newTestServer(t, testutil.NewTestLogger(t))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	tests := []struct {
		name     string
		path     string
		status   int
		contains string
	}{
		{name: "health", path: "/healthz", status: http.StatusOK, contains: "ok"},
		{name: "network", path: "/network", status: http.StatusOK, contains: `"name": "c"`},
		{name: "dot", path: "/network.dot", status: http.StatusOK, contains: "digraph network {"},
		{name: "dot label", path: "/network.dot?label=%7Bname%7D", status: http.StatusOK, contains: `label="a"`},
		{name: "dot bad direction", path: "/network.dot?direction=up", status: http.StatusBadRequest, contains: "unknown direction"},
		{name: "ascii", path: "/network.txt", status: http.StatusOK, contains: "c"},
		{name: "ascii bad template", path: "/network.txt?label=%7B", status: http.StatusBadRequest, contains: "error"},
		{name: "node", path: "/nodes/a", status: http.StatusOK, contains: `"area":10`},
		{name: "unknown node", path: "/nodes/zz", status: http.StatusNotFound, contains: `node \"zz\" not found`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := get(t, srv, tt.path)
			assert.Equal(t, tt.status, status)
			assert.Contains(t, body, tt.contains)
		})
	}
}

func TestHandler_NodeJSON(t *testing.T) {
	s, _ := newTestServer(t, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	_, body := get(t, srv, "/nodes/c")
	var node struct {
		Name   string `json:"name"`
		Index  int    `json:"index"`
		Inputs []int  `json:"inputs"`
		Output *int   `json:"output"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &node))
	assert.Equal(t, "c", node.Name)
	assert.Equal(t, 0, node.Index)
	assert.Len(t, node.Inputs, 2)
	assert.Nil(t, node.Output)
}

func TestReload_KeepsNetworkOnError(t *testing.T) {
	s, dir := newTestServer(t, nil)
	assert.Equal(t, 3, s.Network().Len())

	writeNetwork(t, dir, "a -> b\nb -> a\n")
	require.Error(t, s.Reload())
	assert.Equal(t, 3, s.Network().Len())

	writeNetwork(t, dir, "a -> b\n")
	require.NoError(t, s.Reload())
	assert.Equal(t, 2, s.Network().Len())
}

func TestServe_WatchReload(t *testing.T) {
	dir := t.TempDir()
	path := writeNetwork(t, dir, "a -> b\n")

	s, err := New(Config{Path: path, Watch: true})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, ln) }()

	ch := s.Notifier().Subscribe()
	defer s.Notifier().Unsubscribe(ch)

	// the watcher starts asynchronously; keep touching the file until it reacts
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
wait:
	for {
		select {
		case <-ch:
			break wait
		case <-tick.C:
			writeNetwork(t, dir, "a -> b\nb -> c\n")
		case <-deadline:
			t.Fatal("network was not reloaded")
		}
	}
	assert.Equal(t, 3, s.Network().Len())

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	require.NoError(t, <-done)
}

func TestEvents(t *testing.T) {
	s, _ := newTestServer(t, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// the subscription is registered after the headers are flushed
	go func() {
		for ctx.Err() == nil {
			_ = s.Reload()
			time.Sleep(50 * time.Millisecond)
		}
	}()

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: reload", strings.TrimSpace(line))
}

func TestNotifier(t *testing.T) {
	n := NewNotifier()
	ch1 := n.Subscribe()
	ch2 := n.Subscribe()
	defer n.Unsubscribe(ch2)

	n.Broadcast()
	n.Broadcast() // second ping is dropped, not blocking

	for _, ch := range []chan struct{}{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(100 * time.Millisecond):
			t.Fatal("listener did not receive broadcast")
		}
	}

	n.Unsubscribe(ch1)
	n.mu.RLock()
	assert.Len(t, n.listeners, 1)
	n.mu.RUnlock()
}
