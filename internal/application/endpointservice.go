package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/esdesk/internal/domain/model"
	"github.com/ericfisherdev/esdesk/internal/domain/port/driven"
)

// DefaultProbeConcurrency bounds ProbeAll when no limit is configured.
const DefaultProbeConcurrency = 4

// ConnectionReport is the outcome of a connection test as shown to the user.
type ConnectionReport struct {
	Success bool
	Version *model.Version
	Message string
}

// EndpointService manages registered clusters and their stored passwords.
type EndpointService struct {
	store            driven.EndpointStore
	vault            *CredentialVault
	factory          driven.ClusterClientFactory
	clients          *ClientProvider
	probeConcurrency int
	logger           *slog.Logger
}

// NewEndpointService creates a new EndpointService. clients may be nil; when
// set, cached clients are invalidated on every change.
func NewEndpointService(
	store driven.EndpointStore,
	vault *CredentialVault,
	factory driven.ClusterClientFactory,
	clients *ClientProvider,
	probeConcurrency int,
	logger *slog.Logger,
) *EndpointService {
	if logger == nil {
		logger = slog.Default()
	}
	if probeConcurrency < 1 {
		probeConcurrency = DefaultProbeConcurrency
	}
	return &EndpointService{
		store:            store,
		vault:            vault,
		factory:          factory,
		clients:          clients,
		probeConcurrency: probeConcurrency,
		logger:           logger,
	}
}

// List returns all endpoints.
func (s *EndpointService) List(ctx context.Context) ([]model.Endpoint, error) {
	return s.store.List(ctx)
}

// Get returns one endpoint.
func (s *EndpointService) Get(ctx context.Context, id int64) (model.Endpoint, error) {
	return s.store.Get(ctx, id)
}

// Create validates the input, encrypts the password if one is given and
// stores the endpoint.
func (s *EndpointService) Create(ctx context.Context, in model.EndpointInput) (model.Endpoint, error) {
	if err := in.Validate(); err != nil {
		return model.Endpoint{}, err
	}

	ep := model.Endpoint{
		Name:     in.Name,
		URL:      in.URL,
		Insecure: in.Insecure,
		Username: in.Username,
	}
	if in.Password != nil && *in.Password != "" {
		payload, err := s.vault.Store(0, *in.Password)
		if err != nil {
			return model.Endpoint{}, err
		}
		ep.PasswordEncrypted = &payload
	}

	id, err := s.store.Insert(ctx, ep)
	if err != nil {
		return model.Endpoint{}, err
	}

	s.logger.Info("endpoint created", "endpoint_id", id, "endpoint", ep.Name)
	return s.store.Get(ctx, id)
}

// Update replaces the endpoint's settings. The password follows the
// EndpointInput rules: nil keeps it, empty clears it, anything else replaces it.
func (s *EndpointService) Update(ctx context.Context, id int64, in model.EndpointInput) (model.Endpoint, error) {
	if err := in.Validate(); err != nil {
		return model.Endpoint{}, err
	}

	ep, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Endpoint{}, err
	}
	ep.Name = in.Name
	ep.URL = in.URL
	ep.Insecure = in.Insecure
	ep.Username = in.Username

	if err := s.store.Update(ctx, ep); err != nil {
		return model.Endpoint{}, err
	}

	if in.Password != nil {
		var payload *string
		if *in.Password != "" {
			encrypted, err := s.vault.Store(id, *in.Password)
			if err != nil {
				return model.Endpoint{}, err
			}
			payload = &encrypted
		}
		if err := s.store.SetPassword(ctx, id, payload); err != nil {
			return model.Endpoint{}, err
		}
	}

	s.invalidate(id)
	s.logger.Info("endpoint updated", "endpoint_id", id, "endpoint", ep.Name)
	return s.store.Get(ctx, id)
}

// Delete removes the endpoint.
func (s *EndpointService) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(id)
	s.logger.Info("endpoint deleted", "endpoint_id", id)
	return nil
}

// TestConnection builds a fresh client for the stored endpoint and detects
// its version. Remote and protocol failures are reported in the result, not
// as an error; only a missing endpoint or a bad stored URL is an error.
func (s *EndpointService) TestConnection(ctx context.Context, id int64) (ConnectionReport, error) {
	ep, err := s.store.Get(ctx, id)
	if err != nil {
		return ConnectionReport{}, err
	}

	result := s.probe(ctx, ep)
	if result.OK() {
		return ConnectionReport{Success: true, Version: result.Version}, nil
	}
	return ConnectionReport{Success: false, Message: result.Err.Error()}, nil
}

// ProbeAll tests every endpoint concurrently, at most probeConcurrency at a
// time. Results keep the List order; one failing cluster does not affect the
// others.
func (s *EndpointService) ProbeAll(ctx context.Context) ([]model.ProbeResult, error) {
	endpoints, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]model.ProbeResult, len(endpoints))

	var g errgroup.Group
	g.SetLimit(s.probeConcurrency)
	for i, ep := range endpoints {
		g.Go(func() error {
			results[i] = s.probe(ctx, ep)
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

func (s *EndpointService) probe(ctx context.Context, ep model.Endpoint) model.ProbeResult {
	result := model.ProbeResult{EndpointID: ep.ID, EndpointName: ep.Name}

	client, err := s.factory(s.vault.ConnectionSettings(ep))
	if err != nil {
		result.Err = fmt.Errorf("build client: %w", err)
		return result
	}

	v, err := client.DetectVersion(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Debug("connection test failed", "endpoint_id", ep.ID, "endpoint", ep.Name, "error", err)
		}
		result.Err = err
		return result
	}
	result.Version = &v
	return result
}

func (s *EndpointService) invalidate(id int64) {
	if s.clients != nil {
		s.clients.Invalidate(id)
	}
}
