package tenant

import (
	"context"
	"errors"
	"regexp"
)

// contextKey is a private type for context keys to prevent collisions
type contextKey string

const tenantIDKey contextKey = "tenant_id"

// DefaultTenant scopes data written by single-tenant tools such as the CLI.
const DefaultTenant = "default"

var (
	// ErrNoTenantInContext is returned when tenant context is missing
	ErrNoTenantInContext = errors.New("no tenant in context")
	// ErrInvalidTenantID is returned for identifiers outside [A-Za-z0-9_-]{1,64}
	ErrInvalidTenantID = errors.New("invalid tenant id")
)

var tenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Validate checks the tenant identifier format.
func Validate(id string) error {
	if !tenantIDPattern.MatchString(id) {
		return ErrInvalidTenantID
	}
	return nil
}

// WithTenantID adds the tenant ID to context
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// TenantID extracts tenant ID from context
// Returns ErrNoTenantInContext if tenant ID is not found
func TenantID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(tenantIDKey).(string)
	if !ok || id == "" {
		return "", ErrNoTenantInContext
	}
	return id, nil
}

// TenantIDOrDefault returns the tenant in ctx, or DefaultTenant.
func TenantIDOrDefault(ctx context.Context) string {
	if id, err := TenantID(ctx); err == nil {
		return id
	}
	return DefaultTenant
}
