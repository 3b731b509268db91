// Package tools holds the built-in tool catalog, the confirmation gate and
// the executor that dispatches built-in tool calls to their handlers.
package tools

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
)

//go:embed catalog.yaml
var catalogYAML []byte

type catalogFile struct {
	Tools []catalogEntry `yaml:"tools"`
}

type catalogEntry struct {
	Name                 string         `yaml:"name"`
	Category             string         `yaml:"category"`
	Description          string         `yaml:"description"`
	RequiresConfirmation bool           `yaml:"requires_confirmation"`
	Parameters           map[string]any `yaml:"parameters"`
}

// Catalog is the immutable set of built-in tool descriptors.
type Catalog struct {
	descriptors []domain.ToolDescriptor
	byName      map[string]int
	schemas     map[string]*jsonschema.Schema
}

// LoadCatalog parses the embedded catalog.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

// MustLoadCatalog parses the embedded catalog or panics.
func MustLoadCatalog() *Catalog {
	c, err := LoadCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

// ParseCatalog builds a catalog from YAML and compiles each parameter schema.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tool catalog: %w", err)
	}

	c := &Catalog{
		byName:  make(map[string]int, len(file.Tools)),
		schemas: make(map[string]*jsonschema.Schema, len(file.Tools)),
	}
	for _, entry := range file.Tools {
		if entry.Name == "" {
			return nil, fmt.Errorf("tool catalog entry without name")
		}
		if _, dup := c.byName[entry.Name]; dup {
			return nil, fmt.Errorf("duplicate tool in catalog: %s", entry.Name)
		}
		if entry.Parameters == nil {
			entry.Parameters = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		params, err := json.Marshal(entry.Parameters)
		if err != nil {
			return nil, fmt.Errorf("failed to encode parameters for %s: %w", entry.Name, err)
		}
		schema, err := jsonschema.CompileString(entry.Name+".schema.json", string(params))
		if err != nil {
			return nil, fmt.Errorf("invalid parameter schema for %s: %w", entry.Name, err)
		}

		c.byName[entry.Name] = len(c.descriptors)
		c.schemas[entry.Name] = schema
		c.descriptors = append(c.descriptors, domain.ToolDescriptor{
			Name:                 entry.Name,
			Description:          strings.TrimSpace(entry.Description),
			Category:             entry.Category,
			Parameters:           params,
			RequiresConfirmation: entry.RequiresConfirmation,
		})
	}
	return c, nil
}

// Descriptors returns the descriptors in catalog order.
func (c *Catalog) Descriptors() []domain.ToolDescriptor {
	out := make([]domain.ToolDescriptor, len(c.descriptors))
	copy(out, c.descriptors)
	return out
}

// Lookup returns the descriptor for name.
func (c *Catalog) Lookup(name string) (domain.ToolDescriptor, bool) {
	i, ok := c.byName[name]
	if !ok {
		return domain.ToolDescriptor{}, false
	}
	return c.descriptors[i], true
}

// Validate checks args against the tool's parameter schema. Unknown tools pass.
func (c *Catalog) Validate(name string, args json.RawMessage) error {
	schema, ok := c.schemas[name]
	if !ok {
		return nil
	}
	var decoded any = map[string]any{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &decoded); err != nil {
			return fmt.Errorf("invalid arguments: %w", err)
		}
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("invalid arguments for %s: %w", name, err)
	}
	return nil
}
