package parser

import (
	"bytes"
	stdErrors "errors"
	"io"

	"github.com/reglet-dev/dlhost/domain/entities"
	"github.com/reglet-dev/dlhost/domain/ports"
	"gopkg.in/yaml.v3"
)

// YamlConfigParser implements ConfigParser for YAML.
type YamlConfigParser struct{}

// NewYamlConfigParser creates a new YamlConfigParser.
func NewYamlConfigParser() ports.ConfigParser {
	return &YamlConfigParser{}
}

// Parse decodes YAML over the default configuration. Unknown keys are
// rejected. An empty document yields the defaults.
func (p *YamlConfigParser) Parse(data []byte) (*entities.HostConfig, error) {
	cfg := entities.DefaultHostConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !stdErrors.Is(err, io.EOF) {
		return nil, err
	}
	return &cfg, nil
}

// Document decodes YAML into maps, slices and scalars. An empty document
// yields an empty map.
func (p *YamlConfigParser) Document(data []byte) (any, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}
