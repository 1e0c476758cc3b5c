package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/mfa_relay/internal/cdpcontrol"
)

func registerTabHandlers(api huma.API, deps Deps) {
	type tabsOutput struct {
		Body struct {
			Tabs []cdpcontrol.TabInfo `json:"tabs"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-tabs", Method: http.MethodGet, Path: "/api/v1/tabs", Summary: "List eligible page tabs with focus state", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct{}) (*tabsOutput, error) {
			tabs, err := deps.Tabs.ListTabs(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &tabsOutput{}
			out.Body.Tabs = tabs
			if out.Body.Tabs == nil {
				out.Body.Tabs = []cdpcontrol.TabInfo{}
			}
			return out, nil
		})

	type activeTabOutput struct {
		Body cdpcontrol.TabInfo
	}
	huma.Register(api, huma.Operation{OperationID: "active-tab", Method: http.MethodGet, Path: "/api/v1/tabs/active", Summary: "Tab that would receive the next code", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct{}) (*activeTabOutput, error) {
			tab, ok, err := deps.Tabs.ActiveTab(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			if !ok {
				return nil, mapErr(&cdpcontrol.CodedError{Code: cdpcontrol.CodeTabNotFound, Message: "no focused or visible tab"})
			}
			return &activeTabOutput{Body: tab}, nil
		})
}
