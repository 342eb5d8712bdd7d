package ports

import "github.com/reglet-dev/dlhost/domain/entities"

// ConfigParser decodes raw configuration bytes.
type ConfigParser interface {
	// Parse decodes data over entities.DefaultHostConfig, so keys absent
	// from data keep their default values.
	Parse(data []byte) (*entities.HostConfig, error)

	// Document decodes data into its generic form (maps, slices and
	// scalars) for schema validation.
	Document(data []byte) (any, error)
}
