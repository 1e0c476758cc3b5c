package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgnsrekt/mfa_relay/internal/cdpcontrol"
	"github.com/dgnsrekt/mfa_relay/internal/inject"
	"github.com/dgnsrekt/mfa_relay/internal/messenger"
	"github.com/dgnsrekt/mfa_relay/internal/relay"
)

// Relay is the part of relay.Client the status API reads and drives.
type Relay interface {
	State() relay.State
	SourceURL() string
	Inject(ctx context.Context, code string) (messenger.Delivery, error)
}

// Tabs lists browser tabs and resolves the active one.
type Tabs interface {
	ListTabs(ctx context.Context) ([]cdpcontrol.TabInfo, error)
	ActiveTab(ctx context.Context) (cdpcontrol.TabInfo, bool, error)
}

type Deps struct {
	Relay      Relay
	Tabs       Tabs
	Broker     *relay.Broker
	Gatherer   prometheus.Gatherer
	Candidates []inject.Candidate
	// AllowedOrigins enables CORS for local dashboards when non-empty.
	AllowedOrigins []string
}

func NewServer(deps Deps) http.Handler {
	router := chi.NewMux()
	if len(deps.AllowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		}))
	}
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("MFA Relay Status API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Get("/docs/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(eventsDocsHTML)); err != nil {
			slog.Debug("events docs response write failed", "error", err)
		}
	})

	if deps.Broker != nil {
		router.Get("/api/v1/events", relay.SSEHandler(deps.Broker))
	}
	if deps.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	registerMiscHandlers(api, deps)
	registerRelayHandlers(api, deps)
	registerTabHandlers(api, deps)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *cdpcontrol.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case cdpcontrol.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case cdpcontrol.CodeTabNotFound:
			return huma.Error404NotFound(coded.Message)
		case cdpcontrol.CodeEvalTimeout:
			return huma.Error504GatewayTimeout(coded.Message)
		case cdpcontrol.CodeCDPUnavailable:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return huma.Error504GatewayTimeout(err.Error())
	}
	return huma.Error500InternalServerError(err.Error())
}
