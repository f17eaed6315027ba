// Package api exposes the query and push protocols over HTTP: typed
// huma operations for point-in-time reads and an SSE stream for
// result-changed events.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tabsense/tabsense/internal/bus"
	"github.com/tabsense/tabsense/internal/types"
)

// QuerySource answers point-in-time reads for one tab. Satisfied by the
// notification bus.
type QuerySource interface {
	QueryOne(tabID string) (types.EnrichmentResult, bool)
}

// BulkSource answers bulk reads across all tabs. Satisfied by the
// result store.
type BulkSource interface {
	GetAll() (map[string]types.EnrichmentResult, error)
}

// ActiveTabSource names the tab an unparameterized query defaults to.
type ActiveTabSource interface {
	ActiveTabID() string
}

// NewServer builds the HTTP handler for the agent API.
func NewServer(queries QuerySource, results BulkSource, active ActiveTabSource, broker *bus.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Tabsense Agent API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})

	registerTabHandlers(api, queries, results, active)
	registerHealthHandlers(api, broker)

	router.Get("/api/v1/events", eventStreamHandler(broker))

	return router
}

type tabDataOutput struct {
	Body struct {
		Data *types.EnrichmentResult `json:"data"`
	}
}

func registerTabHandlers(api huma.API, queries QuerySource, results BulkSource, active ActiveTabSource) {
	type tabIDInput struct {
		TabID string `path:"tab_id" doc:"CDP target identifier of the tab"`
	}

	lookup := func(tabID string) (*tabDataOutput, error) {
		out := &tabDataOutput{}
		if tabID == "" {
			return out, nil
		}
		if res, ok := queries.QueryOne(tabID); ok {
			out.Body.Data = &res
		}
		return out, nil
	}

	huma.Register(api, huma.Operation{OperationID: "get-tab-data", Method: http.MethodGet, Path: "/api/v1/tabs/{tab_id}/data", Summary: "Get the latest enrichment result for a tab", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *tabIDInput) (*tabDataOutput, error) {
			return lookup(input.TabID)
		})

	huma.Register(api, huma.Operation{OperationID: "get-active-tab-data", Method: http.MethodGet, Path: "/api/v1/tabs/active/data", Summary: "Get the latest enrichment result for the active tab", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct{}) (*tabDataOutput, error) {
			return lookup(active.ActiveTabID())
		})

	type allTabsOutput struct {
		Body struct {
			Data map[string]types.EnrichmentResult `json:"data"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-all-tab-data", Method: http.MethodGet, Path: "/api/v1/tabs/data", Summary: "Get enrichment results for all tabs", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct{}) (*allTabsOutput, error) {
			all, err := results.GetAll()
			if err != nil {
				return nil, huma.Error500InternalServerError(err.Error())
			}
			out := &allTabsOutput{}
			out.Body.Data = all
			return out, nil
		})
}

func registerHealthHandlers(api huma.API, broker *bus.Broker) {
	type healthOutput struct {
		Body struct {
			Status      string `json:"status"`
			Subscribers int    `json:"subscribers"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			out.Body.Subscribers = broker.ClientCount()
			return out, nil
		})
}
