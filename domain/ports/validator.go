package ports

import "github.com/reglet-dev/dlhost/domain/entities"

// ConfigValidator checks a host configuration.
type ConfigValidator interface {
	// ValidateDocument checks a decoded configuration document against
	// the configuration schema.
	ValidateDocument(doc any) (*entities.ValidationResult, error)

	// Validate checks the semantic rules of a decoded configuration.
	Validate(cfg *entities.HostConfig) *entities.ValidationResult
}
