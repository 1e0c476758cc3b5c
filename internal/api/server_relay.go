package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/mfa_relay/internal/messenger"
)

type relayStatus struct {
	SourceURL     string     `json:"source_url"`
	Listening     bool       `json:"listening"`
	LastConnected *time.Time `json:"last_connected,omitempty"`
	RetryInMS     int64      `json:"retry_in_ms"`
	Attempts      int        `json:"attempts"`
}

type statusOutput struct {
	Body relayStatus
}

type injectInput struct {
	Body struct {
		Code string `json:"code" doc:"One-time code to write into the active tab"`
	}
}

type injectOutput struct {
	Body messenger.Delivery
}

func registerRelayHandlers(api huma.API, deps Deps) {
	huma.Register(api, huma.Operation{OperationID: "relay-status", Method: http.MethodGet, Path: "/api/v1/status", Summary: "Source connection state", Tags: []string{"Relay"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			st := deps.Relay.State()
			out := &statusOutput{}
			out.Body = relayStatus{
				SourceURL: deps.Relay.SourceURL(),
				Listening: st.Listening,
				RetryInMS: st.RetryIn.Milliseconds(),
				Attempts:  st.Attempts,
			}
			if !st.LastConnected.IsZero() {
				last := st.LastConnected
				out.Body.LastConnected = &last
			}
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "inject-code", Method: http.MethodPost, Path: "/api/v1/inject", Summary: "Deliver a code to the active tab", Tags: []string{"Relay"}},
		func(ctx context.Context, input *injectInput) (*injectOutput, error) {
			code := strings.TrimSpace(input.Body.Code)
			if code == "" {
				return nil, huma.Error400BadRequest("code is required")
			}
			slog.Info("manual mfa code injection", "code_length", len(code))
			delivery, err := deps.Relay.Inject(ctx, code)
			if err != nil {
				return nil, mapErr(err)
			}
			return &injectOutput{Body: delivery}, nil
		})
}
