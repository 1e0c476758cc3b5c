package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/mfa_relay/internal/codeextractor"
	"github.com/dgnsrekt/mfa_relay/internal/config"
	"github.com/dgnsrekt/mfa_relay/internal/netutil"
	"github.com/dgnsrekt/mfa_relay/internal/source"
)

func main() {
	root := &cobra.Command{
		Use:          "mfa_source",
		Short:        "Local code source for mfa_relay",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), extractCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var (
		addr      string
		keepalive time.Duration
		logLevel  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve /ws and broadcast codes extracted from stdin lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSource()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.BindAddr = addr
			}
			if cmd.Flags().Changed("keepalive") {
				cfg.Keepalive = keepalive
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = strings.ToLower(logLevel)
			}
			if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
				return fmt.Errorf("logger setup failed: %w", err)
			}

			ln, err := netutil.Listen(cfg.BindAddr, nil, false)
			if err != nil {
				return err
			}

			b := source.NewBroadcaster(cfg.Keepalive)
			router := chi.NewRouter()
			router.Use(middleware.Recoverer)
			router.Handle("/ws", b)
			router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				_, _ = fmt.Fprintf(w, "ok %d\n", b.ConnectionCount())
			})
			srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go func() {
				slog.Info("mfa_source listening", "addr", ln.Addr().String(), "ws", "ws://"+ln.Addr().String()+"/ws", "keepalive", cfg.Keepalive)
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					slog.Error("mfa_source server failed", "error", err)
					stop()
				}
			}()

			if err := b.PumpMessages(ctx, cmd.InOrStdin()); err != nil {
				slog.Warn("stdin read failed", "error", err)
			}
			// Stdin may close long before the operator is done; keep serving.
			<-ctx.Done()

			b.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "bind address (default $SOURCE_BIND_ADDR or 127.0.0.1:3500)")
	cmd.Flags().DurationVar(&keepalive, "keepalive", 0, "ping interval (default $SOURCE_KEEPALIVE_MS or 2s)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	return cmd
}

func extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <message text>",
		Short: "Print the code found in a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := codeextractor.ExtractCode(strings.Join(args, " "))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), code)
			return err
		},
	}
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

	h := slog.NewTextHandler(io.MultiWriter(os.Stderr, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
