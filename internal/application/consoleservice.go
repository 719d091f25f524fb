package application

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ericfisherdev/esdesk/internal/domain/model"
	"github.com/ericfisherdev/esdesk/internal/domain/port/driven"
)

// ConsoleRequest is a free-form request typed into the console.
type ConsoleRequest struct {
	Method string
	Path   string
	Body   string
}

var consoleMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
	http.MethodHead:   true,
}

// ConsoleService runs console requests and cluster reads against endpoints
// through the shared ClientProvider.
type ConsoleService struct {
	clients *ClientProvider
}

// NewConsoleService creates a new ConsoleService.
func NewConsoleService(clients *ClientProvider) *ConsoleService {
	return &ConsoleService{clients: clients}
}

// Execute sends the request and returns the raw status and body. Non-2xx
// responses are results, not errors. HEAD is sent as GET so the console has
// something to show, GET and DELETE never carry a body, and POST and PUT
// default to an empty JSON object. JSON responses are indented.
func (s *ConsoleService) Execute(ctx context.Context, endpointID int64, req ConsoleRequest) (model.RawResponse, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if !consoleMethods[method] {
		return model.RawResponse{}, fmt.Errorf("%w: unsupported method %q", model.ErrInvalidInput, req.Method)
	}
	path := strings.TrimSpace(req.Path)
	if path == "" {
		path = "/"
	}

	var body []byte
	switch method {
	case http.MethodHead:
		method = http.MethodGet
	case http.MethodPost, http.MethodPut:
		body = []byte(strings.TrimSpace(req.Body))
		if len(body) == 0 {
			body = []byte("{}")
		}
	}

	client, err := s.clients.Get(ctx, endpointID)
	if err != nil {
		return model.RawResponse{}, err
	}

	resp, err := client.Raw(ctx, method, path, body)
	if err != nil {
		return model.RawResponse{}, err
	}
	resp.Body = indentJSON(resp.Body)
	return resp, nil
}

// indentJSON pretty-prints body when it is a JSON document and returns it
// unchanged otherwise (cat APIs answer in plain text).
func indentJSON(body string) string {
	if !json.Valid([]byte(body)) {
		return body
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(body), "", "  "); err != nil {
		return body
	}
	return buf.String()
}

// ClusterHealth returns the cluster health of the endpoint.
func (s *ConsoleService) ClusterHealth(ctx context.Context, endpointID int64) (model.ClusterHealth, error) {
	client, err := s.clients.Get(ctx, endpointID)
	if err != nil {
		return model.ClusterHealth{}, err
	}
	return client.ClusterHealth(ctx)
}

// Indices lists the endpoint's indices.
func (s *ConsoleService) Indices(ctx context.Context, endpointID int64) ([]model.IndexInfo, error) {
	client, err := s.clients.Get(ctx, endpointID)
	if err != nil {
		return nil, err
	}
	return client.Indices(ctx)
}

func (s *ConsoleService) ClusterStats(ctx context.Context, endpointID int64) (json.RawMessage, error) {
	return s.read(ctx, endpointID, func(c driven.ClusterClient) (json.RawMessage, error) {
		return c.ClusterStats(ctx)
	})
}

func (s *ConsoleService) Nodes(ctx context.Context, endpointID int64) (json.RawMessage, error) {
	return s.read(ctx, endpointID, func(c driven.ClusterClient) (json.RawMessage, error) {
		return c.Nodes(ctx)
	})
}

func (s *ConsoleService) Node(ctx context.Context, endpointID int64, nodeID string) (json.RawMessage, error) {
	if err := requireName("node id", nodeID); err != nil {
		return nil, err
	}
	return s.read(ctx, endpointID, func(c driven.ClusterClient) (json.RawMessage, error) {
		return c.Node(ctx, nodeID)
	})
}

func (s *ConsoleService) Shards(ctx context.Context, endpointID int64) (json.RawMessage, error) {
	return s.read(ctx, endpointID, func(c driven.ClusterClient) (json.RawMessage, error) {
		return c.Shards(ctx)
	})
}

func (s *ConsoleService) Index(ctx context.Context, endpointID int64, name string) (json.RawMessage, error) {
	if err := requireName("index", name); err != nil {
		return nil, err
	}
	return s.read(ctx, endpointID, func(c driven.ClusterClient) (json.RawMessage, error) {
		return c.Index(ctx, name)
	})
}

// CreateIndex creates an index; body may be empty.
func (s *ConsoleService) CreateIndex(ctx context.Context, endpointID int64, name string, body json.RawMessage) (json.RawMessage, error) {
	if err := requireName("index", name); err != nil {
		return nil, err
	}
	return s.read(ctx, endpointID, func(c driven.ClusterClient) (json.RawMessage, error) {
		return c.CreateIndex(ctx, name, body)
	})
}

func (s *ConsoleService) DeleteIndex(ctx context.Context, endpointID int64, name string) (json.RawMessage, error) {
	if err := requireName("index", name); err != nil {
		return nil, err
	}
	return s.read(ctx, endpointID, func(c driven.ClusterClient) (json.RawMessage, error) {
		return c.DeleteIndex(ctx, name)
	})
}

func (s *ConsoleService) Mapping(ctx context.Context, endpointID int64, index string) (json.RawMessage, error) {
	if err := requireName("index", index); err != nil {
		return nil, err
	}
	return s.read(ctx, endpointID, func(c driven.ClusterClient) (json.RawMessage, error) {
		return c.Mapping(ctx, index)
	})
}

func (s *ConsoleService) Settings(ctx context.Context, endpointID int64, index string) (json.RawMessage, error) {
	if err := requireName("index", index); err != nil {
		return nil, err
	}
	return s.read(ctx, endpointID, func(c driven.ClusterClient) (json.RawMessage, error) {
		return c.Settings(ctx, index)
	})
}

// Search runs a Query DSL search. Empty indices searches all of them.
func (s *ConsoleService) Search(ctx context.Context, endpointID int64, indices []string, query json.RawMessage) (json.RawMessage, error) {
	if len(query) > 0 && !json.Valid(query) {
		return nil, fmt.Errorf("%w: query is not valid JSON", model.ErrInvalidInput)
	}
	for _, idx := range indices {
		if err := requireName("index", idx); err != nil {
			return nil, err
		}
	}
	return s.read(ctx, endpointID, func(c driven.ClusterClient) (json.RawMessage, error) {
		return c.Search(ctx, indices, query)
	})
}

// SQL runs a query through the SQL API.
func (s *ConsoleService) SQL(ctx context.Context, endpointID int64, query string) (json.RawMessage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", model.ErrInvalidInput)
	}
	return s.read(ctx, endpointID, func(c driven.ClusterClient) (json.RawMessage, error) {
		return c.SQL(ctx, query)
	})
}

// IndexTemplates returns the endpoint's index templates from whichever API
// its version supports.
func (s *ConsoleService) IndexTemplates(ctx context.Context, endpointID int64) (json.RawMessage, error) {
	return s.read(ctx, endpointID, func(c driven.ClusterClient) (json.RawMessage, error) {
		return c.IndexTemplates(ctx)
	})
}

func (s *ConsoleService) ComponentTemplates(ctx context.Context, endpointID int64) (json.RawMessage, error) {
	return s.read(ctx, endpointID, func(c driven.ClusterClient) (json.RawMessage, error) {
		return c.ComponentTemplates(ctx)
	})
}

func (s *ConsoleService) DataStreams(ctx context.Context, endpointID int64) (json.RawMessage, error) {
	return s.read(ctx, endpointID, func(c driven.ClusterClient) (json.RawMessage, error) {
		return c.DataStreams(ctx)
	})
}

func (s *ConsoleService) FreezeIndex(ctx context.Context, endpointID int64, index string) (json.RawMessage, error) {
	if err := requireName("index", index); err != nil {
		return nil, err
	}
	return s.read(ctx, endpointID, func(c driven.ClusterClient) (json.RawMessage, error) {
		return c.FreezeIndex(ctx, index)
	})
}

func (s *ConsoleService) read(ctx context.Context, endpointID int64, fn func(driven.ClusterClient) (json.RawMessage, error)) (json.RawMessage, error) {
	client, err := s.clients.Get(ctx, endpointID)
	if err != nil {
		return nil, err
	}
	return fn(client)
}

func requireName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: %s is required", model.ErrInvalidInput, kind)
	}
	return nil
}
