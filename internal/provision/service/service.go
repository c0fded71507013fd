// Package service drives the dual-region provisioning workflow: create the
// identity on both regions, synthesize the client document, persist the
// registry record. It owns the partial-failure compensation; retries are a
// caller decision.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"detour/internal/artifact"
	"detour/internal/provision/metrics"
	"detour/internal/provision/models"
	"detour/internal/provision/store"
	"detour/internal/region"
	"detour/internal/singbox"
	dErrors "detour/pkg/domain-errors"
	"detour/pkg/platform/sentinel"
)

// Gateway is the slice of region.Manager the service depends on.
type Gateway interface {
	EnsureSession(ctx context.Context, regionID string) (region.Session, error)
	CreateClient(ctx context.Context, regionID string, rc region.RemoteClient) error
	RemoveClient(ctx context.Context, regionID string, uuid string) error
	ListClients(ctx context.Context, regionID string) ([]region.RemoteClient, error)
}

// DocumentStore persists synthesized documents.
type DocumentStore interface {
	Write(clientName string, platform singbox.Platform, doc *singbox.Document) (artifact.Location, error)
	Delete(fileName string) error
}

// Service orchestrates tunnel client lifecycle across both regions.
type Service struct {
	registry  store.Registry
	gateway   Gateway
	documents DocumentStore
	primary   region.Descriptor
	secondary region.Descriptor

	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a Service over the two configured regions.
func New(registry store.Registry, gateway Gateway, documents DocumentStore, primary, secondary region.Descriptor, opts ...Option) *Service {
	s := &Service{
		registry:  registry,
		gateway:   gateway,
		documents: documents,
		primary:   primary,
		secondary: secondary,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateClient provisions a named identity on both regions and returns the
// registry record plus the synthesized document.
//
// Identity ids are generated locally before any region is contacted; the
// identity, not the region, is the source of truth. Region A (primary) is
// created before region B so a B failure can be compensated by deleting the
// lone A identity.
func (s *Service) CreateClient(ctx context.Context, name, email, platformTag string) (*models.Record, *singbox.Document, error) {
	start := time.Now()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, dErrors.New(dErrors.CodeValidation, "client name is required")
	}
	platform, err := singbox.ParsePlatform(platformTag)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeValidation, "unsupported platform")
	}

	exists, err := s.registry.Exists(ctx, name)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check registry")
	}
	if exists {
		return nil, nil, dErrors.New(dErrors.CodeConflict, "client with this name already exists")
	}

	identities := map[string]models.RemoteIdentity{
		s.primary.ID:   newRemoteIdentity(),
		s.secondary.ID: newRemoteIdentity(),
	}
	client, err := models.NewClient(name, email, platform, identities, time.Now())
	if err != nil {
		return nil, nil, err
	}

	// Both sessions up front, concurrently: independent regions have no
	// ordering dependency, and failing fast here avoids creating an
	// identity on A that B's login failure would immediately roll back.
	if err := s.ensureSessions(ctx); err != nil {
		return nil, nil, err
	}

	if err := s.gateway.CreateClient(ctx, s.primary.ID, remoteClient(client, s.primary.ID)); err != nil {
		s.countRegionFailure(s.primary.ID)
		return nil, nil, s.remoteError(err, "failed to create identity on primary region")
	}

	if err := s.gateway.CreateClient(ctx, s.secondary.ID, remoteClient(client, s.secondary.ID)); err != nil {
		s.countRegionFailure(s.secondary.ID)
		partial := &PartialProvisioningError{
			SucceededRegion: s.primary.ID,
			FailedRegion:    s.secondary.ID,
			Cause:           err,
			Compensated:     true,
		}
		if compErr := s.gateway.RemoveClient(ctx, s.primary.ID, identities[s.primary.ID].UUID); compErr != nil {
			partial.Compensated = false
			s.warn(ctx, "reconciliation warning: compensating delete failed",
				"client", name, "region", s.primary.ID, "error", compErr)
			if s.metrics != nil {
				s.metrics.CompensationFailures.Inc()
			}
		}
		return nil, nil, dErrors.Wrap(partial, dErrors.CodeUnavailable, "provisioning failed on secondary region")
	}

	doc, err := singbox.Synthesize(platform, s.conn(s.primary, client), s.conn(s.secondary, client))
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "document synthesis failed")
	}
	location, err := s.documents.Write(name, platform, doc)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist document")
	}

	record := &models.Record{
		Client:   client,
		Document: models.DocumentRef{FileName: location.FileName, PublicURL: location.PublicURL},
	}
	if err := s.registry.Put(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			// Lost the race to a concurrent create. Roll the remote
			// identities back so the winner's state stands alone.
			s.removeRemoteIdentities(ctx, client)
			return nil, nil, dErrors.New(dErrors.CodeConflict, "client with this name already exists")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist registry record")
	}

	s.info(ctx, "client provisioned",
		"client", name, "platform", platform, "document", location.FileName)
	if s.metrics != nil {
		s.metrics.ClientsCreated.Inc()
		s.metrics.ObserveProvision(start)
	}
	return record, doc, nil
}

// Reconcile re-derives the document for an already registered client from
// live region state and the static egress parameters. It never creates or
// deletes remote identities.
func (s *Service) Reconcile(ctx context.Context, name string) (*models.Record, *singbox.Document, error) {
	start := time.Now()

	record, err := s.registry.Get(ctx, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "unknown client")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry record")
	}
	client := record.Client

	listings, err := s.listBothRegions(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, desc := range []region.Descriptor{s.primary, s.secondary} {
		identity := client.Regions[desc.ID]
		if !containsUUID(listings[desc.ID], identity.UUID) {
			missing := &RemoteIdentityMissingError{RegionID: desc.ID, Name: name}
			return nil, nil, dErrors.Wrap(missing, dErrors.CodeConflict, "registry and region state have drifted")
		}
	}

	// Static egress parameters only. The stored document is never an
	// input, so a rotated key or moved port propagates here.
	doc, err := singbox.Synthesize(client.Platform, s.conn(s.primary, client), s.conn(s.secondary, client))
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "document synthesis failed")
	}
	location, err := s.documents.Write(client.Name, client.Platform, doc)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist document")
	}
	ref := models.DocumentRef{FileName: location.FileName, PublicURL: location.PublicURL}
	if err := s.registry.UpdateDocument(ctx, name, ref); err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update registry record")
	}
	record.Document = ref

	s.info(ctx, "client document reconciled", "client", name, "document", location.FileName)
	if s.metrics != nil {
		s.metrics.ObserveReconcile(start)
	}
	return record, doc, nil
}

// GetClient returns the registry record for a name.
func (s *Service) GetClient(ctx context.Context, name string) (*models.Record, error) {
	record, err := s.registry.Get(ctx, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "unknown client")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry record")
	}
	return record, nil
}

// ListClients returns every registered client.
func (s *Service) ListClients(ctx context.Context) ([]*models.Record, error) {
	records, err := s.registry.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list registry records")
	}
	return records, nil
}

// DeleteClient removes the registry record and document, and best-effort
// deletes the remote identities so recreating the name does not accumulate
// panel entries. Remote failures are logged, not surfaced.
func (s *Service) DeleteClient(ctx context.Context, name string) error {
	record, err := s.registry.Get(ctx, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "unknown client")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry record")
	}

	s.removeRemoteIdentities(ctx, record.Client)
	if err := s.documents.Delete(record.Document.FileName); err != nil {
		s.warn(ctx, "failed to delete document", "client", name, "error", err)
	}
	if _, err := s.registry.Delete(ctx, name); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete registry record")
	}

	s.info(ctx, "client deleted", "client", name)
	if s.metrics != nil {
		s.metrics.ClientsDeleted.Inc()
	}
	return nil
}

// RegionStatus reports one region's reachability and live client count.
type RegionStatus struct {
	RegionID  string `json:"region"`
	Role      string `json:"role"`
	Connected bool   `json:"connected"`
	Clients   int    `json:"clients,omitempty"`
}

// ServerStatus probes both regions in parallel.
func (s *Service) ServerStatus(ctx context.Context) []RegionStatus {
	statuses := make([]RegionStatus, 2)
	var group errgroup.Group
	for i, desc := range []region.Descriptor{s.primary, s.secondary} {
		group.Go(func() error {
			status := RegionStatus{RegionID: desc.ID, Role: string(desc.Role)}
			clients, err := s.gateway.ListClients(ctx, desc.ID)
			if err != nil {
				s.countRegionFailure(desc.ID)
				s.warn(ctx, "region status probe failed", "region", desc.ID, "error", err)
			} else {
				status.Connected = true
				status.Clients = len(clients)
			}
			statuses[i] = status
			return nil
		})
	}
	_ = group.Wait()
	return statuses
}

func (s *Service) ensureSessions(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	for _, regionID := range []string{s.primary.ID, s.secondary.ID} {
		group.Go(func() error {
			if _, err := s.gateway.EnsureSession(ctx, regionID); err != nil {
				s.countRegionFailure(regionID)
				return s.remoteError(err, "region authentication failed")
			}
			return nil
		})
	}
	return group.Wait()
}

func (s *Service) listBothRegions(ctx context.Context) (map[string][]region.RemoteClient, error) {
	listings := make(map[string][]region.RemoteClient, 2)
	var mu sync.Mutex
	group, ctx := errgroup.WithContext(ctx)
	for _, regionID := range []string{s.primary.ID, s.secondary.ID} {
		group.Go(func() error {
			clients, err := s.gateway.ListClients(ctx, regionID)
			if err != nil {
				s.countRegionFailure(regionID)
				return s.remoteError(err, "failed to list region clients")
			}
			mu.Lock()
			listings[regionID] = clients
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return listings, nil
}

// removeRemoteIdentities best-effort deletes the client's identity on both
// regions, logging failures as reconciliation warnings.
func (s *Service) removeRemoteIdentities(ctx context.Context, client *models.Client) {
	for regionID, identity := range client.Regions {
		if err := s.gateway.RemoveClient(ctx, regionID, identity.UUID); err != nil {
			s.warn(ctx, "reconciliation warning: failed to remove remote identity",
				"client", client.Name, "region", regionID, "error", err)
		}
	}
}

// remoteError classifies a gateway failure. Authentication and rejected
// creates keep their typed cause for callers that branch on it; everything
// maps to the unavailable code so the HTTP layer answers 502.
func (s *Service) remoteError(err error, message string) error {
	return dErrors.Wrap(err, dErrors.CodeUnavailable, message)
}

func (s *Service) conn(desc region.Descriptor, client *models.Client) singbox.Conn {
	identity := client.Regions[desc.ID]
	egress := desc.Egress
	return singbox.Conn{
		Tag:         egress.OutboundTag,
		Server:      egress.Server,
		Port:        egress.Port,
		UUID:        identity.UUID,
		Flow:        region.FlowVision,
		ServerName:  egress.ServerName,
		Fingerprint: egress.Fingerprint,
		PublicKey:   egress.PublicKey,
		ShortID:     egress.ShortID,
	}
}

func (s *Service) countRegionFailure(regionID string) {
	if s.metrics != nil {
		s.metrics.RegionFailures.WithLabelValues(regionID).Inc()
	}
}

func (s *Service) info(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, msg, args...)
	}
}

func (s *Service) warn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, args...)
	}
}

// newRemoteIdentity generates the canonical ids pushed to a region: a
// client uuid and a 16-character subscription id.
func newRemoteIdentity() models.RemoteIdentity {
	sub := strings.ReplaceAll(uuid.NewString(), "-", "")
	return models.RemoteIdentity{
		UUID:  uuid.NewString(),
		SubID: sub[:16],
	}
}

// remoteClient builds the panel payload for one region's identity.
func remoteClient(client *models.Client, regionID string) region.RemoteClient {
	identity := client.Regions[regionID]
	email := client.Email
	if email == "" {
		email = client.Name + "@vpn.local"
	}
	return region.RemoteClient{
		ID:      identity.UUID,
		Email:   email,
		LimitIP: 2,
		Enable:  true,
		SubID:   identity.SubID,
		Flow:    region.FlowVision,
	}
}

func containsUUID(clients []region.RemoteClient, uuid string) bool {
	for _, rc := range clients {
		if rc.ID == uuid {
			return true
		}
	}
	return false
}
