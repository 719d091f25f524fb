package driven

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ericfisherdev/esdesk/internal/domain/model"
)

// ErrRemote is matched by every error a ClusterClient returns for a failed
// remote call (transport, non-2xx status, undecodable body).
var ErrRemote = errors.New("remote request failed")

// ClusterClient defines the driven port for talking to one remote cluster.
// Index and node names are escaped by the implementation.
type ClusterClient interface {
	// DetectVersion queries the cluster root and caches the parsed version.
	DetectVersion(ctx context.Context) (model.Version, error)

	// Version returns the cached version, if detection has succeeded.
	Version() (model.Version, bool)

	// Raw sends a request and returns the status and body without
	// interpreting either. body may be nil.
	Raw(ctx context.Context, method, path string, body []byte) (model.RawResponse, error)

	ClusterHealth(ctx context.Context) (model.ClusterHealth, error)
	ClusterStats(ctx context.Context) (json.RawMessage, error)
	Nodes(ctx context.Context) (json.RawMessage, error)
	Node(ctx context.Context, nodeID string) (json.RawMessage, error)

	Indices(ctx context.Context) ([]model.IndexInfo, error)
	Index(ctx context.Context, name string) (json.RawMessage, error)
	CreateIndex(ctx context.Context, name string, body json.RawMessage) (json.RawMessage, error)
	DeleteIndex(ctx context.Context, name string) (json.RawMessage, error)
	Mapping(ctx context.Context, index string) (json.RawMessage, error)
	Settings(ctx context.Context, index string) (json.RawMessage, error)
	Shards(ctx context.Context) (json.RawMessage, error)

	// Search runs a Query DSL search across indices, all of them when empty.
	Search(ctx context.Context, indices []string, query json.RawMessage) (json.RawMessage, error)

	// Version-gated calls fail with *model.UnsupportedError when the detected
	// version cannot serve them.
	IndexTemplates(ctx context.Context) (json.RawMessage, error)
	ComponentTemplates(ctx context.Context) (json.RawMessage, error)
	DataStreams(ctx context.Context) (json.RawMessage, error)
	SQL(ctx context.Context, query string) (json.RawMessage, error)
	FreezeIndex(ctx context.Context, index string) (json.RawMessage, error)
}

// ClusterClientFactory builds a client for the given connection settings.
type ClusterClientFactory func(settings model.ConnectionSettings) (ClusterClient, error)
