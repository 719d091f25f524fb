package application_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/esdesk/internal/adapter/driven/aesgcm"
	"github.com/ericfisherdev/esdesk/internal/application"
	"github.com/ericfisherdev/esdesk/internal/domain/model"
	"github.com/ericfisherdev/esdesk/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockEndpointStore struct {
	mu        sync.Mutex
	endpoints map[int64]model.Endpoint
	nextID    int64
	getCalls  atomic.Int32
}

func newMockEndpointStore(endpoints ...model.Endpoint) *mockEndpointStore {
	m := &mockEndpointStore{endpoints: make(map[int64]model.Endpoint)}
	for _, ep := range endpoints {
		m.endpoints[ep.ID] = ep
		m.nextID = max(m.nextID, ep.ID)
	}
	return m
}

func (m *mockEndpointStore) Get(_ context.Context, id int64) (model.Endpoint, error) {
	m.getCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	ep, ok := m.endpoints[id]
	if !ok {
		return model.Endpoint{}, fmt.Errorf("get endpoint %d: %w", id, driven.ErrEndpointNotFound)
	}
	return ep, nil
}

func (m *mockEndpointStore) List(_ context.Context) ([]model.Endpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Endpoint, 0, len(m.endpoints))
	for _, ep := range m.endpoints {
		out = append(out, ep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockEndpointStore) Insert(_ context.Context, ep model.Endpoint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	ep.ID = m.nextID
	m.endpoints[ep.ID] = ep
	return ep.ID, nil
}

func (m *mockEndpointStore) Update(_ context.Context, ep model.Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.endpoints[ep.ID]
	if !ok {
		return driven.ErrEndpointNotFound
	}
	ep.PasswordEncrypted = old.PasswordEncrypted
	m.endpoints[ep.ID] = ep
	return nil
}

func (m *mockEndpointStore) SetPassword(_ context.Context, id int64, payload *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ep, ok := m.endpoints[id]
	if !ok {
		return driven.ErrEndpointNotFound
	}
	ep.PasswordEncrypted = payload
	m.endpoints[id] = ep
	return nil
}

func (m *mockEndpointStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.endpoints[id]; !ok {
		return driven.ErrEndpointNotFound
	}
	delete(m.endpoints, id)
	return nil
}

type mockLegacyStore struct {
	schema      driven.LegacySchema
	records     []model.LegacyEndpointRecord
	prepared    bool
	finalized   map[int64]*string
	listCalls   int
	finalizeErr error
}

func (m *mockLegacyStore) InspectSchema(_ context.Context) (driven.LegacySchema, error) {
	return m.schema, nil
}

func (m *mockLegacyStore) PrepareEncryptedColumn(_ context.Context) error {
	m.prepared = true
	m.schema.HasEncryptedColumn = true
	return nil
}

func (m *mockLegacyStore) ListLegacy(_ context.Context) ([]model.LegacyEndpointRecord, error) {
	m.listCalls++
	return m.records, nil
}

func (m *mockLegacyStore) Finalize(_ context.Context, payloads map[int64]*string) error {
	if m.finalizeErr != nil {
		return m.finalizeErr
	}
	m.finalized = payloads
	m.schema.HasKeychainColumn = false
	m.schema.HasFallbackColumn = false
	return nil
}

var errKeychainLocked = errors.New("keychain locked")

type mockSecretStore struct {
	secrets map[string]string
	getErr  error
	deleted []string
}

func (m *mockSecretStore) Get(id string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	secret, ok := m.secrets[id]
	if !ok {
		return "", fmt.Errorf("keyring %q: %w", id, driven.ErrSecretNotFound)
	}
	return secret, nil
}

func (m *mockSecretStore) Delete(id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type rawCall struct {
	Method string
	Path   string
	Body   string
}

type mockClusterClient struct {
	settings    model.ConnectionSettings
	detected    *model.Version
	detectErr   error
	detectCalls atomic.Int32
	release     chan struct{}

	mu       sync.Mutex
	rawCalls []rawCall
	rawResp  model.RawResponse
	rawErr   error
	calls    []string
	callErr  error
}

func (m *mockClusterClient) DetectVersion(ctx context.Context) (model.Version, error) {
	m.detectCalls.Add(1)
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return model.Version{}, ctx.Err()
		}
	}
	if m.detectErr != nil {
		return model.Version{}, m.detectErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := model.Version{Major: 8, Minor: 11, Patch: 1}
	m.detected = &v
	return v, nil
}

func (m *mockClusterClient) Version() (model.Version, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.detected == nil {
		return model.Version{}, false
	}
	return *m.detected, true
}

func (m *mockClusterClient) Raw(_ context.Context, method, path string, body []byte) (model.RawResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rawCalls = append(m.rawCalls, rawCall{Method: method, Path: path, Body: string(body)})
	return m.rawResp, m.rawErr
}

func (m *mockClusterClient) ClusterHealth(_ context.Context) (model.ClusterHealth, error) {
	return model.ClusterHealth{ClusterName: "mock", Status: "green"}, nil
}

// record notes a typed call and returns the canned gated error or an
// object naming the call.
func (m *mockClusterClient) record(call string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	if m.callErr != nil {
		return nil, m.callErr
	}
	return json.RawMessage(fmt.Sprintf(`{"call":%q}`, call)), nil
}

func (m *mockClusterClient) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockClusterClient) ClusterStats(_ context.Context) (json.RawMessage, error) {
	return m.record("cluster_stats")
}

func (m *mockClusterClient) Nodes(_ context.Context) (json.RawMessage, error) {
	return m.record("nodes")
}

func (m *mockClusterClient) Node(_ context.Context, nodeID string) (json.RawMessage, error) {
	return m.record("node " + nodeID)
}

func (m *mockClusterClient) Indices(_ context.Context) ([]model.IndexInfo, error) {
	if _, err := m.record("indices"); err != nil {
		return nil, err
	}
	return []model.IndexInfo{{Index: "logs", Health: "green"}}, nil
}

func (m *mockClusterClient) Index(_ context.Context, name string) (json.RawMessage, error) {
	return m.record("index " + name)
}

func (m *mockClusterClient) CreateIndex(_ context.Context, name string, body json.RawMessage) (json.RawMessage, error) {
	return m.record("create " + name + " " + string(body))
}

func (m *mockClusterClient) DeleteIndex(_ context.Context, name string) (json.RawMessage, error) {
	return m.record("delete " + name)
}

func (m *mockClusterClient) Mapping(_ context.Context, index string) (json.RawMessage, error) {
	return m.record("mapping " + index)
}

func (m *mockClusterClient) Settings(_ context.Context, index string) (json.RawMessage, error) {
	return m.record("settings " + index)
}

func (m *mockClusterClient) Shards(_ context.Context) (json.RawMessage, error) {
	return m.record("shards")
}

func (m *mockClusterClient) Search(_ context.Context, indices []string, query json.RawMessage) (json.RawMessage, error) {
	return m.record(fmt.Sprintf("search %v %s", indices, query))
}

func (m *mockClusterClient) IndexTemplates(_ context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{"index_templates":[]}`), nil
}

func (m *mockClusterClient) ComponentTemplates(_ context.Context) (json.RawMessage, error) {
	return m.record("component_templates")
}

func (m *mockClusterClient) DataStreams(_ context.Context) (json.RawMessage, error) {
	return m.record("data_streams")
}

func (m *mockClusterClient) SQL(_ context.Context, query string) (json.RawMessage, error) {
	return m.record("sql " + query)
}

func (m *mockClusterClient) FreezeIndex(_ context.Context, index string) (json.RawMessage, error) {
	return m.record("freeze " + index)
}

// fakeFactory builds mock clients and remembers them in build order.
type fakeFactory struct {
	mu      sync.Mutex
	built   []*mockClusterClient
	prepare func(c *mockClusterClient)
}

func (f *fakeFactory) build(settings model.ConnectionSettings) (driven.ClusterClient, error) {
	c := &mockClusterClient{settings: settings}
	if f.prepare != nil {
		f.prepare(c)
	}
	f.mu.Lock()
	f.built = append(f.built, c)
	f.mu.Unlock()
	return c, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.built)
}

func (f *fakeFactory) last() *mockClusterClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.built[len(f.built)-1]
}

// --- Helpers ---

func testKey(b byte) model.SymmetricKey {
	var k model.SymmetricKey
	for i := range k {
		k[i] = b + byte(i)
	}
	return k
}

// newTestLogger returns a logger writing text records into buf.
func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func newTestVault(logger *slog.Logger) *application.CredentialVault {
	return application.NewCredentialVault(aesgcm.New(), testKey(1), logger)
}

func encryptedFor(t *testing.T, vault *application.CredentialVault, plaintext string) *string {
	t.Helper()
	payload, err := vault.Store(0, plaintext)
	require.NoError(t, err)
	return &payload
}

func strPtr(s string) *string { return &s }
