package httphandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/esdesk/internal/application"
	"github.com/ericfisherdev/esdesk/internal/domain/model"
	"github.com/ericfisherdev/esdesk/internal/domain/port/driven"
)

// maxRequestBody caps JSON request bodies, console payloads included.
const maxRequestBody = 8 << 20

// EndpointManager is the endpoint lifecycle the API exposes.
type EndpointManager interface {
	List(ctx context.Context) ([]model.Endpoint, error)
	Get(ctx context.Context, id int64) (model.Endpoint, error)
	Create(ctx context.Context, in model.EndpointInput) (model.Endpoint, error)
	Update(ctx context.Context, id int64, in model.EndpointInput) (model.Endpoint, error)
	Delete(ctx context.Context, id int64) error
	TestConnection(ctx context.Context, id int64) (application.ConnectionReport, error)
	ProbeAll(ctx context.Context) ([]model.ProbeResult, error)
}

// Console runs requests against a registered cluster.
type Console interface {
	Execute(ctx context.Context, endpointID int64, req application.ConsoleRequest) (model.RawResponse, error)
	ClusterHealth(ctx context.Context, endpointID int64) (model.ClusterHealth, error)
	ClusterStats(ctx context.Context, endpointID int64) (json.RawMessage, error)
	Nodes(ctx context.Context, endpointID int64) (json.RawMessage, error)
	Node(ctx context.Context, endpointID int64, nodeID string) (json.RawMessage, error)
	Shards(ctx context.Context, endpointID int64) (json.RawMessage, error)

	Indices(ctx context.Context, endpointID int64) ([]model.IndexInfo, error)
	Index(ctx context.Context, endpointID int64, name string) (json.RawMessage, error)
	CreateIndex(ctx context.Context, endpointID int64, name string, body json.RawMessage) (json.RawMessage, error)
	DeleteIndex(ctx context.Context, endpointID int64, name string) (json.RawMessage, error)
	Mapping(ctx context.Context, endpointID int64, index string) (json.RawMessage, error)
	Settings(ctx context.Context, endpointID int64, index string) (json.RawMessage, error)
	Search(ctx context.Context, endpointID int64, indices []string, query json.RawMessage) (json.RawMessage, error)

	IndexTemplates(ctx context.Context, endpointID int64) (json.RawMessage, error)
	ComponentTemplates(ctx context.Context, endpointID int64) (json.RawMessage, error)
	DataStreams(ctx context.Context, endpointID int64) (json.RawMessage, error)
	SQL(ctx context.Context, endpointID int64, query string) (json.RawMessage, error)
	FreezeIndex(ctx context.Context, endpointID int64, index string) (json.RawMessage, error)
}

// Handler is the HTTP driving adapter that serves the JSON API.
type Handler struct {
	endpoints EndpointManager
	console   Console
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(endpoints EndpointManager, console Console, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		endpoints: endpoints,
		console:   console,
		logger:    logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/endpoints", h.ListEndpoints)
	mux.HandleFunc("POST /api/v1/endpoints", h.CreateEndpoint)
	mux.HandleFunc("GET /api/v1/endpoints/{id}", h.GetEndpoint)
	mux.HandleFunc("PUT /api/v1/endpoints/{id}", h.UpdateEndpoint)
	mux.HandleFunc("DELETE /api/v1/endpoints/{id}", h.DeleteEndpoint)
	mux.HandleFunc("POST /api/v1/endpoints/{id}/test", h.TestEndpoint)
	mux.HandleFunc("POST /api/v1/endpoints/{id}/console", h.Execute)
	mux.HandleFunc("GET /api/v1/endpoints/{id}/health", h.ClusterHealth)
	mux.HandleFunc("GET /api/v1/endpoints/{id}/cluster/stats", h.ClusterStats)
	mux.HandleFunc("GET /api/v1/endpoints/{id}/nodes", h.Nodes)
	mux.HandleFunc("GET /api/v1/endpoints/{id}/nodes/{node}", h.Node)
	mux.HandleFunc("GET /api/v1/endpoints/{id}/shards", h.Shards)
	mux.HandleFunc("GET /api/v1/endpoints/{id}/indices", h.Indices)
	mux.HandleFunc("GET /api/v1/endpoints/{id}/indices/{index}", h.Index)
	mux.HandleFunc("PUT /api/v1/endpoints/{id}/indices/{index}", h.CreateIndex)
	mux.HandleFunc("DELETE /api/v1/endpoints/{id}/indices/{index}", h.DeleteIndex)
	mux.HandleFunc("GET /api/v1/endpoints/{id}/indices/{index}/mapping", h.Mapping)
	mux.HandleFunc("GET /api/v1/endpoints/{id}/indices/{index}/settings", h.Settings)
	mux.HandleFunc("POST /api/v1/endpoints/{id}/indices/{index}/freeze", h.FreezeIndex)
	mux.HandleFunc("POST /api/v1/endpoints/{id}/search", h.Search)
	mux.HandleFunc("POST /api/v1/endpoints/{id}/sql", h.SQL)
	mux.HandleFunc("GET /api/v1/endpoints/{id}/index-templates", h.IndexTemplates)
	mux.HandleFunc("GET /api/v1/endpoints/{id}/component-templates", h.ComponentTemplates)
	mux.HandleFunc("GET /api/v1/endpoints/{id}/data-streams", h.DataStreams)
	mux.HandleFunc("POST /api/v1/probe", h.Probe)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// ListEndpoints returns all registered endpoints.
func (h *Handler) ListEndpoints(w http.ResponseWriter, r *http.Request) {
	endpoints, err := h.endpoints.List(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to list endpoints")
		return
	}

	resp := make([]EndpointResponse, 0, len(endpoints))
	for _, ep := range endpoints {
		resp = append(resp, toEndpointResponse(ep))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetEndpoint returns one endpoint.
func (h *Handler) GetEndpoint(w http.ResponseWriter, r *http.Request) {
	id, ok := endpointID(w, r)
	if !ok {
		return
	}

	ep, err := h.endpoints.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "failed to get endpoint")
		return
	}

	writeJSON(w, http.StatusOK, toEndpointResponse(ep))
}

// CreateEndpoint registers a new endpoint.
func (h *Handler) CreateEndpoint(w http.ResponseWriter, r *http.Request) {
	var req EndpointRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ep, err := h.endpoints.Create(r.Context(), req.toInput())
	if err != nil {
		h.writeServiceError(w, err, "failed to create endpoint")
		return
	}

	writeJSON(w, http.StatusCreated, toEndpointResponse(ep))
}

// UpdateEndpoint replaces an endpoint's settings. Omitting password (or
// sending null) keeps the stored one; an empty string clears it.
func (h *Handler) UpdateEndpoint(w http.ResponseWriter, r *http.Request) {
	id, ok := endpointID(w, r)
	if !ok {
		return
	}

	var req EndpointRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ep, err := h.endpoints.Update(r.Context(), id, req.toInput())
	if err != nil {
		h.writeServiceError(w, err, "failed to update endpoint")
		return
	}

	writeJSON(w, http.StatusOK, toEndpointResponse(ep))
}

// DeleteEndpoint removes an endpoint.
func (h *Handler) DeleteEndpoint(w http.ResponseWriter, r *http.Request) {
	id, ok := endpointID(w, r)
	if !ok {
		return
	}

	if err := h.endpoints.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "failed to delete endpoint")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TestEndpoint checks connectivity to the endpoint's cluster. An unreachable
// cluster is a successful call with success=false.
func (h *Handler) TestEndpoint(w http.ResponseWriter, r *http.Request) {
	id, ok := endpointID(w, r)
	if !ok {
		return
	}

	report, err := h.endpoints.TestConnection(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "failed to test endpoint")
		return
	}

	writeJSON(w, http.StatusOK, toConnectionResponse(report))
}

// Probe tests every endpoint concurrently.
func (h *Handler) Probe(w http.ResponseWriter, r *http.Request) {
	results, err := h.endpoints.ProbeAll(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to probe endpoints")
		return
	}

	resp := make([]ProbeResponse, 0, len(results))
	for _, res := range results {
		resp = append(resp, toProbeResponse(res))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Execute runs a console request. The remote status is reported in the body;
// the API call itself succeeds whenever the cluster answered.
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	id, ok := endpointID(w, r)
	if !ok {
		return
	}

	var req ConsoleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.console.Execute(r.Context(), id, application.ConsoleRequest{
		Method: req.Method,
		Path:   req.Path,
		Body:   req.Body,
	})
	if err != nil {
		h.writeServiceError(w, err, "console request failed")
		return
	}

	writeJSON(w, http.StatusOK, ConsoleResponse{Status: resp.StatusCode, Body: resp.Body})
}

// ClusterHealth returns the cluster health of an endpoint.
func (h *Handler) ClusterHealth(w http.ResponseWriter, r *http.Request) {
	id, ok := endpointID(w, r)
	if !ok {
		return
	}

	health, err := h.console.ClusterHealth(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "failed to get cluster health")
		return
	}

	writeJSON(w, http.StatusOK, health)
}

// Indices lists the endpoint's indices.
func (h *Handler) Indices(w http.ResponseWriter, r *http.Request) {
	h.serveCluster(w, r, "failed to list indices", func(ctx context.Context, id int64) (any, error) {
		indices, err := h.console.Indices(ctx, id)
		if indices == nil {
			indices = []model.IndexInfo{}
		}
		return indices, err
	})
}

func (h *Handler) ClusterStats(w http.ResponseWriter, r *http.Request) {
	h.serveCluster(w, r, "failed to get cluster stats", func(ctx context.Context, id int64) (any, error) {
		return h.console.ClusterStats(ctx, id)
	})
}

func (h *Handler) Nodes(w http.ResponseWriter, r *http.Request) {
	h.serveCluster(w, r, "failed to list nodes", func(ctx context.Context, id int64) (any, error) {
		return h.console.Nodes(ctx, id)
	})
}

func (h *Handler) Node(w http.ResponseWriter, r *http.Request) {
	h.serveCluster(w, r, "failed to get node", func(ctx context.Context, id int64) (any, error) {
		return h.console.Node(ctx, id, r.PathValue("node"))
	})
}

func (h *Handler) Shards(w http.ResponseWriter, r *http.Request) {
	h.serveCluster(w, r, "failed to list shards", func(ctx context.Context, id int64) (any, error) {
		return h.console.Shards(ctx, id)
	})
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.serveCluster(w, r, "failed to get index", func(ctx context.Context, id int64) (any, error) {
		return h.console.Index(ctx, id, r.PathValue("index"))
	})
}

// CreateIndex creates an index. The body, if any, is passed to the cluster
// as the index definition.
func (h *Handler) CreateIndex(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSONBody(w, r)
	if !ok {
		return
	}
	h.serveCluster(w, r, "failed to create index", func(ctx context.Context, id int64) (any, error) {
		return h.console.CreateIndex(ctx, id, r.PathValue("index"), body)
	})
}

func (h *Handler) DeleteIndex(w http.ResponseWriter, r *http.Request) {
	h.serveCluster(w, r, "failed to delete index", func(ctx context.Context, id int64) (any, error) {
		return h.console.DeleteIndex(ctx, id, r.PathValue("index"))
	})
}

func (h *Handler) Mapping(w http.ResponseWriter, r *http.Request) {
	h.serveCluster(w, r, "failed to get mapping", func(ctx context.Context, id int64) (any, error) {
		return h.console.Mapping(ctx, id, r.PathValue("index"))
	})
}

func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	h.serveCluster(w, r, "failed to get settings", func(ctx context.Context, id int64) (any, error) {
		return h.console.Settings(ctx, id, r.PathValue("index"))
	})
}

// Search runs a Query DSL search and returns the cluster's answer as is.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.serveCluster(w, r, "search failed", func(ctx context.Context, id int64) (any, error) {
		return h.console.Search(ctx, id, req.Indices, req.Query)
	})
}

// SQL runs an SQL query. Clusters older than 7.0 answer 422.
func (h *Handler) SQL(w http.ResponseWriter, r *http.Request) {
	var req SQLRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.serveCluster(w, r, "sql query failed", func(ctx context.Context, id int64) (any, error) {
		return h.console.SQL(ctx, id, req.Query)
	})
}

// IndexTemplates returns the endpoint's index templates as the cluster sent them.
func (h *Handler) IndexTemplates(w http.ResponseWriter, r *http.Request) {
	h.serveCluster(w, r, "failed to list index templates", func(ctx context.Context, id int64) (any, error) {
		return h.console.IndexTemplates(ctx, id)
	})
}

func (h *Handler) ComponentTemplates(w http.ResponseWriter, r *http.Request) {
	h.serveCluster(w, r, "failed to list component templates", func(ctx context.Context, id int64) (any, error) {
		return h.console.ComponentTemplates(ctx, id)
	})
}

func (h *Handler) DataStreams(w http.ResponseWriter, r *http.Request) {
	h.serveCluster(w, r, "failed to list data streams", func(ctx context.Context, id int64) (any, error) {
		return h.console.DataStreams(ctx, id)
	})
}

func (h *Handler) FreezeIndex(w http.ResponseWriter, r *http.Request) {
	h.serveCluster(w, r, "failed to freeze index", func(ctx context.Context, id int64) (any, error) {
		return h.console.FreezeIndex(ctx, id, r.PathValue("index"))
	})
}

// serveCluster resolves the endpoint id, runs fn and writes its result as
// JSON with 200.
func (h *Handler) serveCluster(w http.ResponseWriter, r *http.Request, msg string, fn func(ctx context.Context, id int64) (any, error)) {
	id, ok := endpointID(w, r)
	if !ok {
		return
	}

	out, err := fn(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, msg)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// writeServiceError maps service errors onto status codes. Only unexpected
// failures are logged here; remote failures belong to the caller.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, msg string) {
	var unsupported *model.UnsupportedError
	switch {
	case errors.Is(err, driven.ErrEndpointNotFound):
		writeError(w, http.StatusNotFound, "endpoint not found")
	case errors.Is(err, model.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &unsupported):
		writeJSON(w, http.StatusUnprocessableEntity, toUnsupportedResponse(unsupported))
	case errors.Is(err, driven.ErrRemote), errors.Is(err, model.ErrBadVersion):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
	default:
		h.logger.Error(msg, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func endpointID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid endpoint id")
		return 0, false
	}
	return id, true
}

// readJSONBody returns the request body when it is empty or valid JSON.
func readJSONBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, true
	}
	if !json.Valid(data) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return data, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
