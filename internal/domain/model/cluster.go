package model

// ClusterHealth is the subset of /_cluster/health the console reports.
type ClusterHealth struct {
	ClusterName         string `json:"cluster_name"`
	Status              string `json:"status"`
	TimedOut            bool   `json:"timed_out"`
	NumberOfNodes       int    `json:"number_of_nodes"`
	NumberOfDataNodes   int    `json:"number_of_data_nodes"`
	ActivePrimaryShards int    `json:"active_primary_shards"`
	ActiveShards        int    `json:"active_shards"`
	RelocatingShards    int    `json:"relocating_shards"`
	InitializingShards  int    `json:"initializing_shards"`
	UnassignedShards    int    `json:"unassigned_shards"`
}

// IndexInfo is one row of the _cat/indices JSON output.
type IndexInfo struct {
	Health    string `json:"health"`
	Status    string `json:"status"`
	Index     string `json:"index"`
	UUID      string `json:"uuid"`
	Primaries string `json:"pri"`
	Replicas  string `json:"rep"`
	DocsCount string `json:"docs.count"`
	StoreSize string `json:"store.size"`
}

// RawResponse is an uninterpreted remote response.
type RawResponse struct {
	StatusCode int
	Body       string
}

// ConnectionSettings is everything needed to build a remote client for one
// endpoint, with the password already revealed.
type ConnectionSettings struct {
	URL      string
	Insecure bool
	Username string
	Password string
}

// ProbeResult is the outcome of a connection test against one endpoint.
type ProbeResult struct {
	EndpointID   int64
	EndpointName string
	Version      *Version
	Err          error
}

// OK reports whether the probe reached the cluster and parsed its version.
func (p ProbeResult) OK() bool {
	return p.Err == nil && p.Version != nil
}
