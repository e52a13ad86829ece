// Package service implements the report use cases on top of the document
// store, the field registry and the projection and pagination engines.
package service

import (
	"context"
	"regexp"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/facturo/facturo-backend/internal/report/discovery"
	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/internal/report/events"
	"github.com/facturo/facturo-backend/internal/report/pagination"
	"github.com/facturo/facturo-backend/internal/report/projection"
	"github.com/facturo/facturo-backend/internal/report/repository"
	"github.com/facturo/facturo-backend/internal/report/schema"
	"github.com/facturo/facturo-backend/pkg/config"
	"github.com/facturo/facturo-backend/pkg/docpath"
	"github.com/facturo/facturo-backend/pkg/errors"
	"github.com/facturo/facturo-backend/pkg/logger"
	"github.com/facturo/facturo-backend/pkg/metrics"
	"github.com/facturo/facturo-backend/pkg/tenant"
)

var collectionPattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidCollection reports whether name can be used as a collection.
func ValidCollection(name string) bool {
	return collectionPattern.MatchString(name)
}

// Dependencies wires a ReportService. Stores is required; everything else
// falls back to an in-process default when nil.
type Dependencies struct {
	Stores     repository.StoreProvider
	Settings   repository.SettingsStore
	Defaults   []domain.FieldDescriptor
	Discovery  *discovery.Engine
	Projection *projection.Engine
	Pagination *pagination.Engine
	Publisher  *events.ReportEventPublisher
	Metrics    *metrics.Metrics
	Logger     *logger.Logger
}

// ReportService serves field configuration, invoice CRUD and reports per
// tenant and collection.
type ReportService struct {
	stores     repository.StoreProvider
	settings   repository.SettingsStore
	defaults   []domain.FieldDescriptor
	discovery  *discovery.Engine
	projection *projection.Engine
	pages      *pagination.Engine
	publisher  *events.ReportEventPublisher
	metrics    *metrics.Metrics
	cfg        config.ReportConfig
	logger     *logger.Logger

	mu         sync.Mutex
	registries map[string]*registryEntry
	loads      singleflight.Group
}

// registryEntry serializes mutate-then-persist on one registry.
type registryEntry struct {
	mu  sync.Mutex
	reg *schema.Registry
}

// NewReportService creates a report service.
func NewReportService(deps Dependencies, cfg config.ReportConfig) *ReportService {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	if deps.Defaults == nil {
		deps.Defaults = schema.Defaults()
	}
	if deps.Discovery == nil {
		deps.Discovery = discovery.NewEngine(discovery.WithAliases(docpath.DefaultAliases))
	}
	if deps.Projection == nil {
		deps.Projection = projection.NewEngine(projection.NewFormatter(cfg.Locale), docpath.DefaultAliases)
	}
	if deps.Pagination == nil {
		deps.Pagination = pagination.NewEngine(log, deps.Metrics)
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 10
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}

	return &ReportService{
		stores:     deps.Stores,
		settings:   deps.Settings,
		defaults:   deps.Defaults,
		discovery:  deps.Discovery,
		projection: deps.Projection,
		pages:      deps.Pagination,
		publisher:  deps.Publisher,
		metrics:    deps.Metrics,
		cfg:        cfg,
		logger:     log.WithComponent("report_service"),
		registries: make(map[string]*registryEntry),
	}
}

func (s *ReportService) store(collection string) (repository.Store, error) {
	if !ValidCollection(collection) {
		return nil, errors.BadRequest("invalid collection name")
	}
	return s.stores.For(collection), nil
}

// registry returns the cached registry of the tenant's collection, loading
// it from the settings store on first use. Concurrent first uses share one
// load.
func (s *ReportService) registry(ctx context.Context, collection string) (*registryEntry, error) {
	if !ValidCollection(collection) {
		return nil, errors.BadRequest("invalid collection name")
	}
	key := tenant.TenantIDOrDefault(ctx) + "/" + collection

	s.mu.Lock()
	entry, ok := s.registries[key]
	s.mu.Unlock()
	if ok {
		return entry, nil
	}

	v, err, _ := s.loads.Do(key, func() (any, error) {
		s.mu.Lock()
		if entry, ok := s.registries[key]; ok {
			s.mu.Unlock()
			return entry, nil
		}
		s.mu.Unlock()

		var saved []domain.FieldDescriptor
		if s.settings != nil {
			var err error
			saved, err = s.settings.Load(ctx, collection)
			if err != nil {
				return nil, err
			}
		}

		entry := &registryEntry{reg: schema.NewWithFields(s.defaults, saved)}
		s.mu.Lock()
		s.registries[key] = entry
		s.mu.Unlock()

		s.logger.Ctx(ctx).WithCollection(collection).Debug().
			Bool("saved", saved != nil).
			Msg("field registry loaded")
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*registryEntry), nil
}

// mutate applies fn to the collection registry and persists the result.
// When persisting fails the registry is restored.
func (s *ReportService) mutate(ctx context.Context, collection string, fn func(reg *schema.Registry) error) (*schema.Registry, error) {
	entry, err := s.registry(ctx, collection)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	before := entry.reg.Snapshot()
	if err := fn(entry.reg); err != nil {
		return nil, err
	}

	if s.settings != nil {
		if err := s.settings.Save(ctx, collection, entry.reg.Snapshot()); err != nil {
			entry.reg.Replace(before)
			return nil, err
		}
	}
	return entry.reg, nil
}
