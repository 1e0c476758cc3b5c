package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/mfa_relay/internal/inject"
)

func registerMiscHandlers(api huma.API, deps Deps) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})

	type selectorsOutput struct {
		Body struct {
			Candidates []inject.Candidate `json:"candidates"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-selectors", Method: http.MethodGet, Path: "/api/v1/selectors", Summary: "Input selectors in match order", Tags: []string{"Injector"}},
		func(ctx context.Context, input *struct{}) (*selectorsOutput, error) {
			out := &selectorsOutput{}
			out.Body.Candidates = deps.Candidates
			if len(out.Body.Candidates) == 0 {
				out.Body.Candidates = inject.DefaultCandidates
			}
			return out, nil
		})
}
