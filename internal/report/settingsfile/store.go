// Package settingsfile persists field registries in a YAML file, for the
// offline CLI and single-node deployments without Postgres.
package settingsfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/pkg/errors"
	"github.com/facturo/facturo-backend/pkg/tenant"
)

const (
	fileVersion       = 1
	lockRetryInterval = 100 * time.Millisecond
	defaultLockWait   = 3 * time.Second
)

// file is the on-disk layout: tenant -> collection -> fields.
type file struct {
	Version int                                            `yaml:"version"`
	Tenants map[string]map[string][]domain.FieldDescriptor `yaml:"tenants"`
}

// Store is a SettingsStore backed by one YAML file. A sibling .lock file
// serializes access across processes.
type Store struct {
	path     string
	lock     *flock.Flock
	lockWait time.Duration
	mu       sync.Mutex
}

// New creates a store for path. The file is created on first Save.
func New(path string) *Store {
	return &Store{
		path:     path,
		lock:     flock.New(path + ".lock"),
		lockWait: defaultLockWait,
	}
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the fields saved for the tenant's collection, or nil when
// nothing was saved.
func (s *Store) Load(ctx context.Context, collection string) ([]domain.FieldDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	f, err := s.read()
	if err != nil {
		return nil, err
	}
	return f.Tenants[tenant.TenantIDOrDefault(ctx)][collection], nil
}

// Save replaces the fields of the tenant's collection.
func (s *Store) Save(ctx context.Context, collection string, fields []domain.FieldDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	f, err := s.read()
	if err != nil {
		return err
	}

	tenantID := tenant.TenantIDOrDefault(ctx)
	if f.Tenants[tenantID] == nil {
		f.Tenants[tenantID] = make(map[string][]domain.FieldDescriptor)
	}
	if fields == nil {
		fields = []domain.FieldDescriptor{}
	}
	f.Tenants[tenantID][collection] = fields

	return s.write(f)
}

func (s *Store) acquire(ctx context.Context) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	locked, err := s.lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return nil, errors.Store(fmt.Errorf("failed to acquire lock on %s: %w", s.path, err))
	}
	if !locked {
		return nil, errors.Store(fmt.Errorf("could not acquire lock on %s", s.path))
	}
	return func() { _ = s.lock.Unlock() }, nil
}

func (s *Store) read() (*file, error) {
	f := &file{Version: fileVersion, Tenants: map[string]map[string][]domain.FieldDescriptor{}}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, errors.Store(fmt.Errorf("failed to read %s: %w", s.path, err))
	}
	if len(data) == 0 {
		return f, nil
	}

	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, errors.Store(fmt.Errorf("failed to parse %s: %w", s.path, err))
	}
	if f.Version > fileVersion {
		return nil, errors.Store(fmt.Errorf("%s has unsupported version %d", s.path, f.Version))
	}
	if f.Tenants == nil {
		f.Tenants = map[string]map[string][]domain.FieldDescriptor{}
	}
	return f, nil
}

// write replaces the file atomically through a temp file in the same
// directory.
func (s *Store) write(f *file) error {
	f.Version = fileVersion
	data, err := yaml.Marshal(f)
	if err != nil {
		return errors.Store(fmt.Errorf("failed to encode settings: %w", err))
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Store(fmt.Errorf("failed to create %s: %w", dir, err))
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Store(fmt.Errorf("failed to create temp file: %w", err))
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Store(fmt.Errorf("failed to write settings: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return errors.Store(fmt.Errorf("failed to write settings: %w", err))
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Store(fmt.Errorf("failed to replace %s: %w", s.path, err))
	}
	return nil
}
