package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/facturo/facturo-backend/pkg/database"
	"github.com/facturo/facturo-backend/pkg/logger"
	"github.com/facturo/facturo-backend/pkg/tenant"
)

var (
	// shared across all integration tests in a package
	globalContainer *PostgresContainer
	containerOnce   sync.Once
	containerErr    error
)

// IntegrationSuite runs tests against a real PostgreSQL with the service
// migrations applied.
//
// Usage:
//
//	var suite *testutil.IntegrationSuite
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    var err error
//	    suite, err = testutil.NewIntegrationSuite(ctx)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    code := m.Run()
//	    suite.Close()
//	    testutil.TerminateContainer(ctx)
//	    os.Exit(code)
//	}
type IntegrationSuite struct {
	Container *PostgresContainer
	DB        *database.DB
	Logger    *logger.Logger
}

func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	container, err := getOrCreateContainer(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.New("test", "test")
	db, err := database.NewWithDSN(ctx, container.DSN, log)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate test database: %w", err)
	}

	return &IntegrationSuite{Container: container, DB: db, Logger: log}, nil
}

func getOrCreateContainer(ctx context.Context) (*PostgresContainer, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
	})
	return globalContainer, containerErr
}

// TenantContext returns a context scoped to a fresh tenant. Rows written under
// that tenant are removed when the test finishes.
func (s *IntegrationSuite) TenantContext(t *testing.T) context.Context {
	t.Helper()

	tenantID := "t-" + uuid.NewString()[:8]
	t.Cleanup(func() {
		ctx := context.Background()
		for _, table := range []string{"invoice_documents", "field_settings"} {
			if _, err := s.DB.ExecContext(ctx, "DELETE FROM "+table+" WHERE tenant_id = $1", tenantID); err != nil {
				t.Logf("warning: failed to clean %s for %s: %v", table, tenantID, err)
			}
		}
	})

	return tenant.WithTenantID(context.Background(), tenantID)
}

func (s *IntegrationSuite) Close() error {
	return s.DB.Close()
}

// TerminateContainer terminates the shared container.
// Only call this in TestMain after all tests have completed.
func TerminateContainer(ctx context.Context) {
	if globalContainer != nil {
		_ = globalContainer.Terminate(ctx)
	}
}

