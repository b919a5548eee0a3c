// Package schema validates entries against a declarative schema tree.
//
// The schema vocabulary is a small JSON-Schema-like subset: required fields,
// per-property type, format, numeric range, length, pattern, enum, and
// recursive object/array validation. Validation is exhaustive: every
// violation is collected and reported with the dotted or indexed path of the
// offending value (data.note, attributes[2].value).
package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Type names understood by the validator.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
	TypeNull    = "null"
)

// Schema is a node of the declarative schema tree.
type Schema struct {
	Type       string             `json:"type,omitempty" yaml:"type,omitempty"`
	Required   []string           `json:"required,omitempty" yaml:"required,omitempty"`
	Properties map[string]*Schema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Items      *Schema            `json:"items,omitempty" yaml:"items,omitempty"`
	Format     string             `json:"format,omitempty" yaml:"format,omitempty"`
	Minimum    *float64           `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum    *float64           `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	MinLength  *int               `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength  *int               `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Pattern    string             `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Enum       []any              `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// Result is the outcome of a validation.
type Result struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors,omitempty"`
}

// Error joins the violations into one message.
func (r Result) Error() string {
	return strings.Join(r.Errors, ", ")
}

// Load reads a schema from a YAML or JSON file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Parse(data)
}

// Parse decodes a schema document. JSON documents are accepted as YAML.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return &s, nil
}

// Builtin returns a named built-in schema.
func Builtin(name string) (*Schema, bool) {
	switch name {
	case "memoryEntry", "memory-entry":
		return MemoryEntry(), true
	case "ethereumTransaction", "ethereum-transaction":
		return EthereumTransaction(), true
	case "nftMetadata", "nft-metadata":
		return NFTMetadata(), true
	}
	return nil, false
}

// BuiltinNames lists the names accepted by Builtin.
func BuiltinNames() []string {
	return []string{"memoryEntry", "ethereumTransaction", "nftMetadata"}
}

// LoadOrBuiltin resolves ref as a built-in schema name, falling back to a
// schema file path.
func LoadOrBuiltin(ref string) (*Schema, error) {
	if s, ok := Builtin(ref); ok {
		return s, nil
	}
	return Load(filepath.Clean(ref))
}

// MemoryEntry is the canonical schema applied to store writes.
func MemoryEntry() *Schema {
	return &Schema{
		Type:     TypeObject,
		Required: []string{"timestamp"},
		Properties: map[string]*Schema{
			"timestamp": {Type: TypeString, Format: FormatDateTime},
			"source":    {Type: TypeString},
			"data":      {Type: TypeObject},
		},
	}
}

// EthereumTransaction describes an outgoing transaction request.
func EthereumTransaction() *Schema {
	zero := 0.0
	return &Schema{
		Type:     TypeObject,
		Required: []string{"to", "value"},
		Properties: map[string]*Schema{
			"to":       {Type: TypeString, Format: FormatEthereumAddress},
			"value":    {Type: TypeString},
			"data":     {Type: TypeString, Format: FormatHex},
			"gasLimit": {Type: TypeString},
			"gasPrice": {Type: TypeString},
			"nonce":    {Type: TypeInteger, Minimum: &zero},
		},
	}
}

// NFTMetadata describes token metadata.
func NFTMetadata() *Schema {
	return &Schema{
		Type:     TypeObject,
		Required: []string{"name", "description"},
		Properties: map[string]*Schema{
			"name":        {Type: TypeString},
			"description": {Type: TypeString},
			"image":       {Type: TypeString, Format: FormatURI},
			"attributes": {
				Type: TypeArray,
				Items: &Schema{
					Type: TypeObject,
					Properties: map[string]*Schema{
						"trait_type": {Type: TypeString},
						"value":      {Type: TypeString},
					},
				},
			},
		},
	}
}
