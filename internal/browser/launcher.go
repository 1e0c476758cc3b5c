package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/dgnsrekt/mfa_relay/internal/netutil"
)

// Config holds browser launch configuration.
type Config struct {
	CDPAddress   string
	CDPPort      int
	BrowserPath  string // empty means detect
	ProfileDir   string
	StartURL     string
	ReadyTimeout time.Duration
}

// Launcher starts a Chromium-family browser with remote debugging enabled so
// the relay has a CDP endpoint to talk to.
type Launcher struct {
	cfg  Config
	cmd  *exec.Cmd
	kill context.CancelFunc
}

func NewLauncher(cfg Config) *Launcher {
	if cfg.StartURL == "" {
		cfg.StartURL = "about:blank"
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 15 * time.Second
	}
	return &Launcher{cfg: cfg}
}

var browserNames = []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable", "brave-browser"}

const macChrome = "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"

// findBrowser returns the first Chromium-family binary on PATH, falling back
// to the stock Chrome bundle on macOS.
func findBrowser(goos string, lookPath func(string) (string, error)) (string, error) {
	for _, name := range browserNames {
		if path, err := lookPath(name); err == nil {
			return path, nil
		}
	}
	if goos == "darwin" {
		if _, err := os.Stat(macChrome); err == nil {
			return macChrome, nil
		}
	}
	return "", fmt.Errorf("no supported browser found (tried %v)", browserNames)
}

func (l *Launcher) endpoint() string {
	return net.JoinHostPort(l.cfg.CDPAddress, strconv.Itoa(l.cfg.CDPPort))
}

func (l *Launcher) args() []string {
	return []string{
		"--remote-debugging-port=" + strconv.Itoa(l.cfg.CDPPort),
		"--remote-debugging-address=" + l.cfg.CDPAddress,
		"--user-data-dir=" + l.cfg.ProfileDir,
		"--no-first-run",
		"--no-default-browser-check",
		l.cfg.StartURL,
	}
}

// Launch starts the browser unless something already answers on the CDP
// port, in which case that browser is used and never stopped by us.
func (l *Launcher) Launch(ctx context.Context) error {
	if netutil.IsListening(l.endpoint(), time.Second) {
		slog.Info("browser already running, skipping launch", "cdp", l.endpoint())
		return nil
	}

	path := l.cfg.BrowserPath
	if path == "" {
		found, err := findBrowser(runtime.GOOS, exec.LookPath)
		if err != nil {
			return err
		}
		path = found
	}
	if err := os.MkdirAll(l.cfg.ProfileDir, 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	// The process outlives ctx; Stop ends it.
	procCtx, kill := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, path, l.args()...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = 5 * time.Second

	slog.Info("launching browser", "path", path, "profile", l.cfg.ProfileDir)
	if err := cmd.Start(); err != nil {
		kill()
		return fmt.Errorf("start browser: %w", err)
	}
	l.cmd, l.kill = cmd, kill
	slog.Info("browser process started", "pid", cmd.Process.Pid)

	if err := l.waitForCDP(ctx); err != nil {
		l.Stop()
		return fmt.Errorf("waiting for CDP: %w", err)
	}
	slog.Info("CDP endpoint ready", "cdp", l.endpoint())
	return nil
}

// waitForCDP polls /json/version until it answers 200 or ReadyTimeout passes.
func (l *Launcher) waitForCDP(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.ReadyTimeout)
	defer cancel()

	url := "http://" + l.endpoint() + "/json/version"
	client := &http.Client{Timeout: time.Second}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("CDP did not become ready within %s at %s", l.cfg.ReadyTimeout, url)
			}
			return ctx.Err()
		case <-ticker.C:
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			continue
		}
		_ = resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return nil
		}
	}
}

// Running reports whether this launcher owns a live browser process.
func (l *Launcher) Running() bool {
	return l.cmd != nil
}

// Stop sends SIGTERM to a browser this launcher started and kills it if it
// is still up 5s later.
func (l *Launcher) Stop() {
	if l.cmd == nil {
		return
	}
	slog.Info("stopping browser", "pid", l.cmd.Process.Pid)
	l.kill()
	err := l.cmd.Wait()
	var exitErr *exec.ExitError
	switch {
	case err == nil, errors.As(err, &exitErr):
		slog.Info("browser stopped")
	default:
		slog.Warn("browser stop", "error", err)
	}
	l.cmd, l.kill = nil, nil
}
