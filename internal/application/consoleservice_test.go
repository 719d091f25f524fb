package application_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/esdesk/internal/application"
	"github.com/ericfisherdev/esdesk/internal/domain/model"
	"github.com/ericfisherdev/esdesk/internal/domain/port/driven"
)

func newTestConsole(t *testing.T, prepare func(c *mockClusterClient)) (*application.ConsoleService, *fakeFactory) {
	t.Helper()
	factory := &fakeFactory{prepare: prepare}
	provider, _ := newTestProvider(t, factory, model.Endpoint{ID: 1, Name: "prod", URL: "http://es:9200"})
	return application.NewConsoleService(provider), factory
}

func TestConsoleService_Execute(t *testing.T) {
	tests := []struct {
		name     string
		req      application.ConsoleRequest
		wantCall rawCall
	}{
		{
			name:     "get drops body",
			req:      application.ConsoleRequest{Method: "get", Path: "_cat/indices", Body: `{"x":1}`},
			wantCall: rawCall{Method: "GET", Path: "_cat/indices"},
		},
		{
			name:     "head is sent as get",
			req:      application.ConsoleRequest{Method: "HEAD", Path: "/logs"},
			wantCall: rawCall{Method: "GET", Path: "/logs"},
		},
		{
			name:     "post passes body",
			req:      application.ConsoleRequest{Method: "POST", Path: "/logs/_search", Body: ` {"size":0} `},
			wantCall: rawCall{Method: "POST", Path: "/logs/_search", Body: `{"size":0}`},
		},
		{
			name:     "put defaults to empty object",
			req:      application.ConsoleRequest{Method: "PUT", Path: "/logs"},
			wantCall: rawCall{Method: "PUT", Path: "/logs", Body: "{}"},
		},
		{
			name:     "delete drops body",
			req:      application.ConsoleRequest{Method: "DELETE", Path: "/logs", Body: "{}"},
			wantCall: rawCall{Method: "DELETE", Path: "/logs"},
		},
		{
			name:     "empty path is root",
			req:      application.ConsoleRequest{Method: "GET"},
			wantCall: rawCall{Method: "GET", Path: "/"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			console, factory := newTestConsole(t, func(c *mockClusterClient) {
				c.rawResp = model.RawResponse{StatusCode: 200, Body: "ok"}
			})

			resp, err := console.Execute(context.Background(), 1, tt.req)
			require.NoError(t, err)
			assert.Equal(t, 200, resp.StatusCode)

			client := factory.last()
			require.Len(t, client.rawCalls, 1)
			assert.Equal(t, tt.wantCall, client.rawCalls[0])
		})
	}
}

func TestConsoleService_ExecuteFormatsJSON(t *testing.T) {
	console, _ := newTestConsole(t, func(c *mockClusterClient) {
		c.rawResp = model.RawResponse{StatusCode: 404, Body: `{"error":{"type":"index_not_found_exception"},"status":404}`}
	})

	resp, err := console.Execute(context.Background(), 1, application.ConsoleRequest{Method: "GET", Path: "/missing"})
	require.NoError(t, err)

	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, "{\n  \"error\": {\n    \"type\": \"index_not_found_exception\"\n  },\n  \"status\": 404\n}", resp.Body)
}

func TestConsoleService_ExecuteKeepsPlainText(t *testing.T) {
	const text = "epoch      timestamp cluster status\n1700000000 10:00:00  docker  green\n"
	console, _ := newTestConsole(t, func(c *mockClusterClient) {
		c.rawResp = model.RawResponse{StatusCode: 200, Body: text}
	})

	resp, err := console.Execute(context.Background(), 1, application.ConsoleRequest{Method: "GET", Path: "/_cat/health?v"})
	require.NoError(t, err)
	assert.Equal(t, text, resp.Body)
}

func TestConsoleService_ExecuteRejectsMethod(t *testing.T) {
	console, factory := newTestConsole(t, nil)

	_, err := console.Execute(context.Background(), 1, application.ConsoleRequest{Method: "PATCH", Path: "/"})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	assert.Zero(t, factory.count(), "no client is built for a rejected request")
}

func TestConsoleService_ExecuteSurfacesConnectionErrors(t *testing.T) {
	console, _ := newTestConsole(t, func(c *mockClusterClient) { c.detectErr = errConnRefused })

	_, err := console.Execute(context.Background(), 1, application.ConsoleRequest{Method: "GET", Path: "/"})
	assert.ErrorIs(t, err, errConnRefused)

	_, err = console.Execute(context.Background(), 2, application.ConsoleRequest{Method: "GET", Path: "/"})
	assert.ErrorIs(t, err, driven.ErrEndpointNotFound)
}

func TestConsoleService_ClusterReads(t *testing.T) {
	console, _ := newTestConsole(t, nil)
	ctx := context.Background()

	health, err := console.ClusterHealth(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "green", health.Status)

	templates, err := console.IndexTemplates(ctx, 1)
	require.NoError(t, err)
	assert.JSONEq(t, `{"index_templates":[]}`, string(templates))
}

func TestConsoleService_TypedCalls(t *testing.T) {
	type call func(ctx context.Context, s *application.ConsoleService) (json.RawMessage, error)

	tests := []struct {
		name string
		call call
		want string
	}{
		{"cluster stats", func(ctx context.Context, s *application.ConsoleService) (json.RawMessage, error) {
			return s.ClusterStats(ctx, 1)
		}, "cluster_stats"},
		{"nodes", func(ctx context.Context, s *application.ConsoleService) (json.RawMessage, error) {
			return s.Nodes(ctx, 1)
		}, "nodes"},
		{"node", func(ctx context.Context, s *application.ConsoleService) (json.RawMessage, error) {
			return s.Node(ctx, 1, "n1")
		}, "node n1"},
		{"shards", func(ctx context.Context, s *application.ConsoleService) (json.RawMessage, error) {
			return s.Shards(ctx, 1)
		}, "shards"},
		{"index", func(ctx context.Context, s *application.ConsoleService) (json.RawMessage, error) {
			return s.Index(ctx, 1, "logs")
		}, "index logs"},
		{"create index", func(ctx context.Context, s *application.ConsoleService) (json.RawMessage, error) {
			return s.CreateIndex(ctx, 1, "logs", json.RawMessage(`{}`))
		}, "create logs {}"},
		{"delete index", func(ctx context.Context, s *application.ConsoleService) (json.RawMessage, error) {
			return s.DeleteIndex(ctx, 1, "logs")
		}, "delete logs"},
		{"mapping", func(ctx context.Context, s *application.ConsoleService) (json.RawMessage, error) {
			return s.Mapping(ctx, 1, "logs")
		}, "mapping logs"},
		{"settings", func(ctx context.Context, s *application.ConsoleService) (json.RawMessage, error) {
			return s.Settings(ctx, 1, "logs")
		}, "settings logs"},
		{"search", func(ctx context.Context, s *application.ConsoleService) (json.RawMessage, error) {
			return s.Search(ctx, 1, []string{"logs"}, json.RawMessage(`{"size":0}`))
		}, `search [logs] {"size":0}`},
		{"sql", func(ctx context.Context, s *application.ConsoleService) (json.RawMessage, error) {
			return s.SQL(ctx, 1, "  SELECT 1 ")
		}, "sql SELECT 1"},
		{"component templates", func(ctx context.Context, s *application.ConsoleService) (json.RawMessage, error) {
			return s.ComponentTemplates(ctx, 1)
		}, "component_templates"},
		{"data streams", func(ctx context.Context, s *application.ConsoleService) (json.RawMessage, error) {
			return s.DataStreams(ctx, 1)
		}, "data_streams"},
		{"freeze", func(ctx context.Context, s *application.ConsoleService) (json.RawMessage, error) {
			return s.FreezeIndex(ctx, 1, "old")
		}, "freeze old"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			console, factory := newTestConsole(t, nil)

			out, err := tt.call(context.Background(), console)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, factory.last().recorded())

			var got struct{ Call string }
			require.NoError(t, json.Unmarshal(out, &got))
			assert.Equal(t, tt.want, got.Call)
		})
	}
}

func TestConsoleService_Indices(t *testing.T) {
	console, _ := newTestConsole(t, nil)

	indices, err := console.Indices(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, indices, 1)
	assert.Equal(t, "logs", indices[0].Index)
}

func TestConsoleService_TypedCallsRejectInvalidInput(t *testing.T) {
	console, factory := newTestConsole(t, nil)
	ctx := context.Background()

	_, err := console.SQL(ctx, 1, "   ")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	_, err = console.Index(ctx, 1, "")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	_, err = console.Search(ctx, 1, nil, json.RawMessage(`{"size":`))
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	_, err = console.Search(ctx, 1, []string{"logs", " "}, nil)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	assert.Zero(t, factory.count())
}

func TestConsoleService_UnsupportedPassesThrough(t *testing.T) {
	floor := model.Version{Major: 7, Minor: 0}
	unsupported := &model.UnsupportedError{Capability: model.CapSQL, Actual: model.Version{Major: 6, Minor: 8}, MinVersion: &floor}
	console, _ := newTestConsole(t, func(c *mockClusterClient) { c.callErr = unsupported })

	_, err := console.SQL(context.Background(), 1, "SELECT 1")
	var got *model.UnsupportedError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, model.CapSQL, got.Capability)
}
