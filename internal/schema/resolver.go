package schema

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// BaseSchemaName is the magic parent that resolves against a
// schemas-directory-level default file, _base.yaml.
const BaseSchemaName = "_base"

// rawSchema mirrors a schema YAML file. based_on/exclude_from_* use pointer
// types so the resolver can distinguish "omitted" from "set to false".
type rawSchema struct {
	BasedOn          *string   `yaml:"based_on"`
	BasedOnLegacy    *string   `yaml:"inherits"`
	ExcludeFromBOM   *bool     `yaml:"exclude_from_bom"`
	ExcludeFromBoard *bool     `yaml:"exclude_from_board"`
	ExcludeFromSim   *bool     `yaml:"exclude_from_sim"`
	Fields           yaml.Node `yaml:"fields"`
}

func (r rawSchema) parent() *string {
	if r.BasedOn != nil {
		return r.BasedOn
	}
	return r.BasedOnLegacy
}

type rawFieldDescriptor struct {
	DisplayName string  `yaml:"display_name"`
	Required    bool    `yaml:"required"`
	Visible     bool    `yaml:"visible"`
	Description *string `yaml:"description"`
	FieldType   *string `yaml:"type"`
}

// Resolver resolves named schemas against a directory of schema files.
type Resolver struct {
	dir string
}

func NewResolver(schemasDir string) *Resolver {
	return &Resolver{dir: schemasDir}
}

// Resolve loads and fully resolves the named schema, following one level
// of (or a chain of) based_on inheritance. schemaName must not include the
// .yaml extension. _base is resolved against <dir>/_base.yaml directly.
func (r *Resolver) Resolve(schemaName string) (*ResolvedSchema, error) {
	return r.resolve(schemaName, make(map[string]bool))
}

func (r *Resolver) resolve(schemaName string, inProgress map[string]bool) (*ResolvedSchema, error) {
	if inProgress[schemaName] {
		return nil, fmt.Errorf("schema: cycle detected resolving %q", schemaName)
	}
	inProgress[schemaName] = true
	defer delete(inProgress, schemaName)

	raw, err := r.readRaw(schemaName)
	if err != nil {
		return nil, err
	}

	fields, err := decodeFields(raw.Fields)
	if err != nil {
		return nil, fmt.Errorf("schema: decode fields of %q: %w", schemaName, err)
	}

	resolved := &ResolvedSchema{
		ExcludeFromBOM:   boolOr(raw.ExcludeFromBOM, false),
		ExcludeFromBoard: boolOr(raw.ExcludeFromBoard, false),
		ExcludeFromSim:   boolOr(raw.ExcludeFromSim, false),
		Fields:           fields,
	}

	parentName := raw.parent()
	if parentName == nil {
		return resolved, nil
	}

	parent, err := r.resolve(*parentName, inProgress)
	if err != nil {
		return nil, err
	}

	merged := NewFields()
	merged.Extend(parent.Fields)
	merged.Extend(fields)

	return &ResolvedSchema{
		ExcludeFromBOM:   boolOr(raw.ExcludeFromBOM, parent.ExcludeFromBOM),
		ExcludeFromBoard: boolOr(raw.ExcludeFromBoard, parent.ExcludeFromBoard),
		ExcludeFromSim:   boolOr(raw.ExcludeFromSim, parent.ExcludeFromSim),
		Fields:           merged,
	}, nil
}

func (r *Resolver) readRaw(schemaName string) (rawSchema, error) {
	path := filepath.Join(r.dir, schemaName+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if schemaName == BaseSchemaName {
			return rawSchema{}, fmt.Errorf("schema: base schema %q not found in %s", BaseSchemaName+".yaml", r.dir)
		}
		return rawSchema{}, fmt.Errorf("schema: parent schema %q not found: %w", schemaName, err)
	}

	var raw rawSchema
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return rawSchema{}, fmt.Errorf("schema: parse %s: %w", path, err)
	}
	return raw, nil
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

// decodeFields walks a YAML mapping node in document order, preserving key
// order the way plain map[string]T unmarshaling cannot.
func decodeFields(node yaml.Node) (*Fields, error) {
	fields := NewFields()
	if node.Kind == 0 {
		return fields, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("fields must be a mapping")
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valNode := node.Content[i+1]

		var raw rawFieldDescriptor
		if err := valNode.Decode(&raw); err != nil {
			return nil, fmt.Errorf("field %q: %w", keyNode.Value, err)
		}

		fields.Set(keyNode.Value, FieldDescriptor{
			DisplayName: raw.DisplayName,
			Required:    raw.Required,
			Visible:     raw.Visible,
			Description: raw.Description,
			FieldType:   raw.FieldType,
		})
	}

	return fields, nil
}
