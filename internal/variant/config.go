package variant

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk variant configuration: an ordered sequence of
// variant mappings.
type Config struct {
	Variants []Variant `yaml:"variants" json:"variants"`
}

const configSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["variants"],
  "properties": {
    "variants": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "properties": {
          "extend_keys": {"type": "array", "items": {"type": "string"}},
          "ignore_version": {"type": "array", "items": {"type": "string"}},
          "pin_run_as_build": {
            "type": "object",
            "additionalProperties": {
              "oneOf": [
                {"type": "string"},
                {
                  "type": "object",
                  "properties": {
                    "min_pin": {"type": "string"},
                    "max_pin": {"type": "string"}
                  },
                  "additionalProperties": false
                }
              ]
            }
          }
        }
      }
    }
  }
}`

var compiledConfigSchema = jsonschema.MustCompileString("variants.schema.json", configSchema)

// LoadConfig loads, validates and parses a variant configuration file.
func LoadConfig(path string) (Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read variant config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig validates raw variant configuration YAML against the
// schema and returns the matrix.
func ParseConfig(data []byte) (Matrix, error) {
	var document interface{}
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("failed to parse variant config YAML: %w", err)
	}

	// Round-trip through JSON so the schema compiler sees canonical types.
	jsonData, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal variant config: %w", err)
	}
	var jsonDocument interface{}
	if err := json.Unmarshal(jsonData, &jsonDocument); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variant config: %w", err)
	}
	if err := compiledConfigSchema.Validate(jsonDocument); err != nil {
		return nil, fmt.Errorf("variant config failed schema validation: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse variant config: %w", err)
	}

	matrix := Matrix(config.Variants)
	if err := matrix.Validate(); err != nil {
		return nil, fmt.Errorf("invalid variant matrix: %w", err)
	}
	return matrix, nil
}
