package application

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ericfisherdev/esdesk/internal/domain/model"
	"github.com/ericfisherdev/esdesk/internal/domain/port/driven"
)

// ClientProvider hands out one remote client per endpoint. Each client has
// its version detected exactly once when it is built; concurrent first callers
// for the same endpoint share that detection. Entries are dropped with
// Invalidate whenever the endpoint's connection settings change.
type ClientProvider struct {
	endpoints driven.EndpointStore
	vault     *CredentialVault
	factory   driven.ClusterClientFactory
	logger    *slog.Logger

	mu      sync.RWMutex
	clients map[int64]driven.ClusterClient
	// gen is bumped by Invalidate so a build that raced with it is not cached.
	gen map[int64]uint64

	build singleflight.Group
}

// NewClientProvider creates a provider that builds clients with factory.
func NewClientProvider(endpoints driven.EndpointStore, vault *CredentialVault, factory driven.ClusterClientFactory, logger *slog.Logger) *ClientProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClientProvider{
		endpoints: endpoints,
		vault:     vault,
		factory:   factory,
		logger:    logger,
		clients:   make(map[int64]driven.ClusterClient),
		gen:       make(map[int64]uint64),
	}
}

// Get returns the cached client for the endpoint, building and version-
// detecting it on first use. A cluster that answers with an unparsable
// version still yields a usable, unversioned client; gated calls then assume
// the newest behavior. Remote failures are returned and nothing is cached.
//
// The shared build runs detached from any one caller's cancellation and is
// bounded by the client's own request timeout. A caller whose ctx ends stops
// waiting without failing the others.
func (p *ClientProvider) Get(ctx context.Context, endpointID int64) (driven.ClusterClient, error) {
	if client, ok := p.cached(endpointID); ok {
		return client, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := p.build.DoChan(strconv.FormatInt(endpointID, 10), func() (any, error) {
		if client, ok := p.cached(endpointID); ok {
			return client, nil
		}
		return p.connect(detached, endpointID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(driven.ClusterClient), nil
	}
}

func (p *ClientProvider) connect(ctx context.Context, endpointID int64) (driven.ClusterClient, error) {
	p.mu.RLock()
	startGen := p.gen[endpointID]
	p.mu.RUnlock()

	endpoint, err := p.endpoints.Get(ctx, endpointID)
	if err != nil {
		return nil, err
	}

	client, err := p.factory(p.vault.ConnectionSettings(endpoint))
	if err != nil {
		return nil, err
	}

	if _, err := client.DetectVersion(ctx); err != nil {
		if !errors.Is(err, model.ErrBadVersion) {
			return nil, err
		}
		p.logger.Warn("cluster version not recognized; version-gated calls assume the newest API",
			"endpoint_id", endpoint.ID,
			"endpoint", endpoint.Name,
			"error", err,
		)
	}

	p.mu.Lock()
	if p.gen[endpointID] == startGen {
		p.clients[endpointID] = client
	}
	p.mu.Unlock()

	return client, nil
}

func (p *ClientProvider) cached(endpointID int64) (driven.ClusterClient, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	client, ok := p.clients[endpointID]
	return client, ok
}

// Invalidate drops the cached client for the endpoint. The next Get builds a
// fresh one from the stored settings.
func (p *ClientProvider) Invalidate(endpointID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.clients, endpointID)
	p.gen[endpointID]++
	p.build.Forget(strconv.FormatInt(endpointID, 10))
}

// Len returns the number of cached clients.
func (p *ClientProvider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clients)
}
