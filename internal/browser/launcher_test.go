package browser

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestArgs(t *testing.T) {
	l := NewLauncher(Config{CDPAddress: "127.0.0.1", CDPPort: 9333, ProfileDir: "/tmp/profile"})
	got := strings.Join(l.args(), " ")
	for _, want := range []string{
		"--remote-debugging-port=9333",
		"--remote-debugging-address=127.0.0.1",
		"--user-data-dir=/tmp/profile",
		"--no-first-run",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("args %q missing %q", got, want)
		}
	}
	if !strings.HasSuffix(got, "about:blank") {
		t.Fatalf("args %q; want start url last", got)
	}
}

func TestLaunchSkipsWhenCDPIsLive(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	p, _ := strconv.Atoi(port)

	l := NewLauncher(Config{CDPAddress: host, CDPPort: p, BrowserPath: "/nonexistent/browser", ProfileDir: t.TempDir()})
	if err := l.Launch(context.Background()); err != nil {
		t.Fatalf("Launch() error = %v; want skip", err)
	}
	if l.Running() {
		t.Fatal("Running() = true; want false when an existing browser is reused")
	}
	l.Stop()
}

func TestWaitForCDP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/json/version" {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()
	host, port, _ := net.SplitHostPort(srv.Listener.Addr().String())
	p, _ := strconv.Atoi(port)

	l := NewLauncher(Config{CDPAddress: host, CDPPort: p, ReadyTimeout: 2 * time.Second})
	if err := l.waitForCDP(context.Background()); err != nil {
		t.Fatalf("waitForCDP() error = %v", err)
	}
}

func TestWaitForCDPTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	host, port, _ := net.SplitHostPort(srv.Listener.Addr().String())
	p, _ := strconv.Atoi(port)

	l := NewLauncher(Config{CDPAddress: host, CDPPort: p, ReadyTimeout: 400 * time.Millisecond})
	if err := l.waitForCDP(context.Background()); err == nil {
		t.Fatal("waitForCDP() error = nil; want timeout")
	}
}

func TestFindBrowser(t *testing.T) {
	onPath := map[string]string{"google-chrome": "/usr/bin/google-chrome", "chromium": "/usr/bin/chromium"}
	lookPath := func(name string) (string, error) {
		if p, ok := onPath[name]; ok {
			return p, nil
		}
		return "", exec.ErrNotFound
	}

	got, err := findBrowser("linux", lookPath)
	if err != nil {
		t.Fatalf("findBrowser() error = %v", err)
	}
	if got != "/usr/bin/chromium" {
		t.Fatalf("findBrowser() = %q; want the earliest name in preference order", got)
	}

	none := func(string) (string, error) { return "", exec.ErrNotFound }
	if _, err := findBrowser("linux", none); err == nil {
		t.Fatal("findBrowser() error = nil; want no browser found")
	}
}
