// Package schema parses field descriptors and resolves one level of
// parent inheritance between schema files.
package schema

// FieldDescriptor describes one CSV column.
type FieldDescriptor struct {
	DisplayName string  `yaml:"display_name"`
	Required    bool    `yaml:"required"`
	Visible     bool    `yaml:"visible"`
	Description *string `yaml:"description,omitempty"`
	FieldType   *string `yaml:"type,omitempty"`
}

const (
	FieldTypeKicadSymbol    = "kicad_symbol"
	FieldTypeKicadFootprint = "kicad_footprint"
	FieldTypeURL            = "url"
)

// Fields is an ordered mapping of field key to FieldDescriptor. Field order
// is significant and preserved for clients.
type Fields struct {
	keys   []string
	values map[string]FieldDescriptor
}

func NewFields() *Fields {
	return &Fields{values: make(map[string]FieldDescriptor)}
}

func (f *Fields) Get(key string) (FieldDescriptor, bool) {
	v, ok := f.values[key]
	return v, ok
}

// Set assigns a descriptor, appending key to the order if new and
// overwriting in place (preserving position) if the key already exists.
func (f *Fields) Set(key string, desc FieldDescriptor) {
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = desc
}

func (f *Fields) Keys() []string {
	return f.keys
}

func (f *Fields) Len() int {
	return len(f.keys)
}

// Extend appends other's fields, overwriting in place for keys already
// present and appending fresh keys at the end. This is the merge rule used
// both for parent→child field composition and raw YAML field maps.
func (f *Fields) Extend(other *Fields) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		f.Set(k, other.values[k])
	}
}

// Schema is a raw, unresolved field set plus its optional parent link.
type Schema struct {
	BasedOn          *string
	ExcludeFromBOM   *bool
	ExcludeFromBoard *bool
	ExcludeFromSim   *bool
	Fields           *Fields
}

// ResolvedSchema is a Schema with its parent's fields merged in and the
// three exclusion booleans resolved to concrete values.
type ResolvedSchema struct {
	ExcludeFromBOM   bool
	ExcludeFromBoard bool
	ExcludeFromSim   bool
	Fields           *Fields
}
