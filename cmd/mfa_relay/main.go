package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/mfa_relay/internal/api"
	"github.com/dgnsrekt/mfa_relay/internal/browser"
	"github.com/dgnsrekt/mfa_relay/internal/cdp"
	"github.com/dgnsrekt/mfa_relay/internal/cdpcontrol"
	"github.com/dgnsrekt/mfa_relay/internal/config"
	"github.com/dgnsrekt/mfa_relay/internal/inject"
	"github.com/dgnsrekt/mfa_relay/internal/messenger"
	"github.com/dgnsrekt/mfa_relay/internal/netutil"
	"github.com/dgnsrekt/mfa_relay/internal/notify"
	"github.com/dgnsrekt/mfa_relay/internal/relay"
)

func main() {
	probe := flag.String("probe", "", "run input selection over a saved HTML page and exit")
	flag.Parse()

	cfg, err := config.LoadRelay()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to load relay config: %v\n", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "logger setup failed: %v\n", err)
		os.Exit(1)
	}

	candidates := inject.DefaultCandidates
	if cfg.SelectorsFile != "" {
		candidates, err = config.LoadCandidates(cfg.SelectorsFile)
		if err != nil {
			slog.Error("failed to load selectors", "file", cfg.SelectorsFile, "error", err)
			os.Exit(1)
		}
	}

	if *probe != "" {
		os.Exit(runProbe(*probe, candidates))
	}

	slog.Info("mfa_relay config loaded",
		"source_url", cfg.SourceURL,
		"retry_delay", cfg.RetryDelay,
		"delivery_timeout", cfg.DeliveryTimeout,
		"cdp_url", cfg.CDPURL(),
		"tab_url_filter", cfg.TabURLFilter,
		"eval_timeout", cfg.EvalTimeout,
		"status_addr", cfg.StatusAddr,
		"launch_browser", cfg.LaunchBrowser,
		"selectors", len(candidates),
		"ntfy", cfg.NtfyURL != "",
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.LaunchBrowser {
		launcher := browser.NewLauncher(browser.Config{
			CDPAddress:  cfg.CDPAddress,
			CDPPort:     cfg.CDPPort,
			BrowserPath: cfg.BrowserPath,
			ProfileDir:  cfg.BrowserProfileDir,
			StartURL:    cfg.BrowserStartURL,
		})
		if err := launcher.Launch(ctx); err != nil {
			slog.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
		defer launcher.Stop()
	}

	tabs := cdpcontrol.NewClient(cfg.CDPURL(), cfg.TabURLFilter, cfg.EvalTimeout)
	if err := tabs.Connect(ctx); err != nil {
		// Tab resolution reconnects on the next delivery.
		slog.Warn("browser not reachable yet", "cdp_url", cfg.CDPURL(), "error", err)
	}
	defer func() {
		if err := tabs.Close(); err != nil {
			slog.Debug("CDP client close failed", "error", err)
		}
	}()

	pages := cdp.NewClient(cfg.CDPURL())
	if err := pages.Connect(ctx); err != nil {
		slog.Error("failed to prepare CDP sessions", "cdp_url", cfg.CDPURL(), "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := pages.Close(); err != nil {
			slog.Debug("CDP session client close failed", "error", err)
		}
	}()

	broker := relay.NewBroker()
	fwd := messenger.NewTabMessenger(tabs, pages, inject.NewInjector(candidates))
	client := relay.NewClient(relay.Config{
		SourceURL:       cfg.SourceURL,
		RetryDelay:      cfg.RetryDelay,
		DeliveryTimeout: cfg.DeliveryTimeout,
	}, fwd, broker)

	if cfg.NtfyURL != "" {
		go notify.New(cfg.NtfyURL, nil).Watch(ctx, broker)
	}

	reg := prometheus.NewRegistry()
	relay.Register(reg)
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var srv *http.Server
	if cfg.StatusAddr != "" {
		ln, err := netutil.Listen(cfg.StatusAddr, cfg.StatusCandidates, cfg.StatusAutoFallback)
		if err != nil {
			slog.Error("failed to select status address", "preferred", cfg.StatusAddr, "error", err)
			os.Exit(1)
		}
		srv = &http.Server{
			Handler: api.NewServer(api.Deps{
				Relay:          client,
				Tabs:           tabs,
				Broker:         broker,
				Gatherer:       reg,
				Candidates:     candidates,
				AllowedOrigins: cfg.StatusCORSOrigins,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		addr := ln.Addr().String()
		go func() {
			slog.Info("status api listening", "addr", addr, "docs", "http://"+addr+"/docs")
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("status api failed", "error", err)
				stop()
			}
		}()
	} else {
		slog.Info("status api disabled")
	}

	client.Run(ctx)
	client.Wait()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("status api shutdown failed", "error", err)
		}
	}
}

// runProbe reports which input the injector would pick on a saved page. It
// returns the process exit code.
func runProbe(path string, candidates []inject.Candidate) int {
	f, err := os.Open(path)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "probe: %v\n", err)
		return 1
	}
	defer func() { _ = f.Close() }()

	doc, err := inject.ParseHTML(f)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "probe: %v\n", err)
		return 1
	}
	match, ok, err := inject.FindInput(context.Background(), doc, candidates)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "probe: %v\n", err)
		return 1
	}
	if !ok {
		fmt.Println("no candidate matched")
		return 2
	}
	fmt.Printf("candidate=%s selector=%s element=%s\n", match.Candidate.Name, match.Candidate.Selector, match.Element.Describe())
	return 0
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
