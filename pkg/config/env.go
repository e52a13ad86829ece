package config

import "strings"

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// IsProductionLike reports whether env must be configured explicitly rather
// than fall back to development defaults such as localhost services.
func IsProductionLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case EnvStaging, EnvProduction:
		return true
	}
	return false
}
