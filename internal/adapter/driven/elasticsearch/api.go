package elasticsearch

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/ericfisherdev/esdesk/internal/domain/model"
)

const (
	catIndicesPath = "/_cat/indices?format=json&h=health,status,index,uuid,pri,rep,docs.count,store.size"
	catShardsPath  = "/_cat/shards?format=json"
)

// ClusterHealth returns /_cluster/health.
func (c *Client) ClusterHealth(ctx context.Context) (model.ClusterHealth, error) {
	var health model.ClusterHealth
	if err := c.Get(ctx, "/_cluster/health", &health); err != nil {
		return model.ClusterHealth{}, err
	}
	return health, nil
}

// ClusterStats returns /_cluster/stats.
func (c *Client) ClusterStats(ctx context.Context) (json.RawMessage, error) {
	return c.getJSON(ctx, "/_cluster/stats")
}

// Nodes returns /_nodes.
func (c *Client) Nodes(ctx context.Context) (json.RawMessage, error) {
	return c.getJSON(ctx, "/_nodes")
}

// Node returns /_nodes/{nodeID}.
func (c *Client) Node(ctx context.Context, nodeID string) (json.RawMessage, error) {
	return c.getJSON(ctx, "/_nodes/"+url.PathEscape(nodeID))
}

// Indices lists indices through the cat API.
func (c *Client) Indices(ctx context.Context) ([]model.IndexInfo, error) {
	var indices []model.IndexInfo
	if err := c.Get(ctx, catIndicesPath, &indices); err != nil {
		return nil, err
	}
	return indices, nil
}

// Index returns the definition of one index.
func (c *Client) Index(ctx context.Context, name string) (json.RawMessage, error) {
	return c.getJSON(ctx, "/"+url.PathEscape(name))
}

// CreateIndex creates an index. body holds settings and mappings and may be
// empty.
func (c *Client) CreateIndex(ctx context.Context, name string, body json.RawMessage) (json.RawMessage, error) {
	var payload any
	if len(body) > 0 {
		payload = body
	}

	var out json.RawMessage
	if err := c.Put(ctx, "/"+url.PathEscape(name), payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteIndex deletes an index.
func (c *Client) DeleteIndex(ctx context.Context, name string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.Delete(ctx, "/"+url.PathEscape(name), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Mapping returns /{index}/_mapping.
func (c *Client) Mapping(ctx context.Context, index string) (json.RawMessage, error) {
	return c.getJSON(ctx, "/"+url.PathEscape(index)+"/_mapping")
}

// Settings returns /{index}/_settings.
func (c *Client) Settings(ctx context.Context, index string) (json.RawMessage, error) {
	return c.getJSON(ctx, "/"+url.PathEscape(index)+"/_settings")
}

// Shards lists shards through the cat API.
func (c *Client) Shards(ctx context.Context) (json.RawMessage, error) {
	return c.getJSON(ctx, catShardsPath)
}

// Search runs a Query DSL search across indices (all when empty). An empty
// query matches everything.
func (c *Client) Search(ctx context.Context, indices []string, query json.RawMessage) (json.RawMessage, error) {
	path := "/_search"
	if len(indices) > 0 {
		escaped := make([]string, len(indices))
		for i, idx := range indices {
			escaped[i] = url.PathEscape(idx)
		}
		path = "/" + strings.Join(escaped, ",") + "/_search"
	}
	if len(query) == 0 {
		query = json.RawMessage(`{}`)
	}

	var out json.RawMessage
	if err := c.Post(ctx, path, query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// IndexTemplates lists index templates from /_index_template on 7.8+ and from
// the legacy /_template API before that.
func (c *Client) IndexTemplates(ctx context.Context) (json.RawMessage, error) {
	return c.gatedGet(ctx, model.CapIndexTemplates, nil)
}

// ComponentTemplates lists component templates (7.8+).
func (c *Client) ComponentTemplates(ctx context.Context) (json.RawMessage, error) {
	return c.gatedGet(ctx, model.CapComponentTemplates, nil)
}

// DataStreams lists data streams (7.9+).
func (c *Client) DataStreams(ctx context.Context) (json.RawMessage, error) {
	return c.gatedGet(ctx, model.CapDataStreams, nil)
}

// SQL runs a query through the SQL API (7.0+).
func (c *Client) SQL(ctx context.Context, query string) (json.RawMessage, error) {
	path, err := c.resolve(model.CapSQL, nil)
	if err != nil {
		return nil, err
	}

	var out json.RawMessage
	if err := c.Post(ctx, path, map[string]string{"query": query}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FreezeIndex freezes an index. The API was removed in 8.0.
func (c *Client) FreezeIndex(ctx context.Context, index string) (json.RawMessage, error) {
	path, err := c.resolve(model.CapFreezeIndex, map[string]string{"index": url.PathEscape(index)})
	if err != nil {
		return nil, err
	}

	var out json.RawMessage
	if err := c.Post(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.Get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) gatedGet(ctx context.Context, capability model.Capability, params map[string]string) (json.RawMessage, error) {
	path, err := c.resolve(capability, params)
	if err != nil {
		return nil, err
	}
	return c.getJSON(ctx, path)
}

// resolve consults the capability table with the cached version; an
// undetected version leaves the choice to the capability's own assumption.
func (c *Client) resolve(capability model.Capability, params map[string]string) (string, error) {
	return model.ResolveCapability(capability, c.version.Load(), params)
}
