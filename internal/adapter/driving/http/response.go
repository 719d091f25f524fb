package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/esdesk/internal/application"
	"github.com/ericfisherdev/esdesk/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// EndpointRequest is the JSON body for creating or updating an endpoint.
type EndpointRequest struct {
	Name     string  `json:"name"`
	URL      string  `json:"url"`
	Insecure bool    `json:"insecure"`
	Username string  `json:"username"`
	Password *string `json:"password"`
}

func (r EndpointRequest) toInput() model.EndpointInput {
	return model.EndpointInput{
		Name:     r.Name,
		URL:      r.URL,
		Insecure: r.Insecure,
		Username: r.Username,
		Password: r.Password,
	}
}

// EndpointResponse is the JSON representation of an endpoint. The encrypted
// password never leaves the server; has_password says whether one is stored.
type EndpointResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Insecure    bool   `json:"insecure"`
	Username    string `json:"username"`
	HasPassword bool   `json:"has_password"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// ConnectionResponse is the result of a connection test.
type ConnectionResponse struct {
	Success bool   `json:"success"`
	Version string `json:"version,omitempty"`
	Message string `json:"message,omitempty"`
}

// ProbeResponse is one endpoint's entry in a probe run.
type ProbeResponse struct {
	EndpointID int64  `json:"endpoint_id"`
	Name       string `json:"name"`
	ConnectionResponse
}

// ConsoleRequest is the JSON body of a console call.
type ConsoleRequest struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Body   string `json:"body"`
}

// SearchRequest is the JSON body of a Query DSL search. An empty indices list
// searches every index; an omitted query matches all documents.
type SearchRequest struct {
	Indices []string        `json:"indices"`
	Query   json.RawMessage `json:"query"`
}

// SQLRequest is the JSON body of an SQL query.
type SQLRequest struct {
	Query string `json:"query"`
}

// ConsoleResponse carries the remote status and body verbatim.
type ConsoleResponse struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// UnsupportedResponse explains which cluster version a feature needs.
type UnsupportedResponse struct {
	Error          string `json:"error"`
	Capability     string `json:"capability"`
	ClusterVersion string `json:"cluster_version"`
	MinVersion     string `json:"min_version,omitempty"`
	RemovedIn      string `json:"removed_in,omitempty"`
}

func toEndpointResponse(ep model.Endpoint) EndpointResponse {
	return EndpointResponse{
		ID:          ep.ID,
		Name:        ep.Name,
		URL:         ep.URL,
		Insecure:    ep.Insecure,
		Username:    ep.Username,
		HasPassword: ep.HasStoredPassword(),
		CreatedAt:   ep.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   ep.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toConnectionResponse(r application.ConnectionReport) ConnectionResponse {
	resp := ConnectionResponse{Success: r.Success, Message: r.Message}
	if r.Version != nil {
		resp.Version = r.Version.String()
	}
	return resp
}

func toProbeResponse(r model.ProbeResult) ProbeResponse {
	resp := ProbeResponse{EndpointID: r.EndpointID, Name: r.EndpointName}
	resp.Success = r.OK()
	if r.Version != nil {
		resp.Version = r.Version.String()
	}
	if r.Err != nil {
		resp.Message = r.Err.Error()
	}
	return resp
}

func toUnsupportedResponse(e *model.UnsupportedError) UnsupportedResponse {
	resp := UnsupportedResponse{
		Error:          e.Error(),
		Capability:     string(e.Capability),
		ClusterVersion: e.Actual.String(),
	}
	if e.MinVersion != nil {
		resp.MinVersion = e.MinVersion.String()
	}
	if e.RemovedIn != nil {
		resp.RemovedIn = e.RemovedIn.String()
	}
	return resp
}
