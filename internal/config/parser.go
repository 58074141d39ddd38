package config

import (
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
)

// Parse overlays YAML content onto base and validates the result.
//
// Keys absent from content keep their base values; unknown keys are rejected.
func Parse(content string, base Config) (Config, []Warning, error) {
	if strings.TrimSpace(content) == "" {
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	}

	cfg := base
	if err := yaml.UnmarshalWithOptions([]byte(content), &cfg, yaml.Strict()); err != nil {
		return Config{}, nil, fmt.Errorf("decode yaml: %s", yamlErrorMessage(err))
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

// yamlErrorMessage keeps the annotated source excerpt out of single-line errors.
func yamlErrorMessage(err error) string {
	return strings.TrimSpace(yaml.FormatError(err, false, false))
}
