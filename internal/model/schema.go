package model

// FieldType enumerates the schema-recognized field types used by
// validation (SPEC_FULL 4.8) and relation expansion (SPEC_FULL 4.3).
type FieldType string

// Field types recognized by the Schema Registry's validator.
const (
	FieldText     FieldType = "text"
	FieldEditor   FieldType = "editor"
	FieldNumber   FieldType = "number"
	FieldBool     FieldType = "bool"
	FieldDate     FieldType = "date"
	FieldURL      FieldType = "url"
	FieldEmail    FieldType = "email"
	FieldSelect   FieldType = "select"
	FieldFile     FieldType = "file"
	FieldRelation FieldType = "relation"
	FieldJSON     FieldType = "json"
)

// Field is a single schema field definition as stored under a "schema"
// service record (data-model.md section 3, "Collection schema").
type Field struct {
	Name     string
	Type     FieldType
	Required bool
	System   bool
	Data     FieldData
}

// FieldData carries the type-specific options nested under a field's
// "data" object. MaxSelect is authoritative for single-vs-multi cardinality.
type FieldData struct {
	MaxSelect    int    // <=1 or absent => single-valued; >=2 => multi-valued
	CollectionID string // relation/target collection id, relation fields only
}

// Multi reports whether this field is multi-valued per maxSelect semantics.
func (fd FieldData) Multi() bool { return fd.MaxSelect >= 2 }

// Collection is a parsed collection schema: the set of fields plus the
// collection's own id/name for cross-referencing by the query engine's
// expansion algorithm.
type Collection struct {
	ID     string
	Name   string
	Fields []Field
}

// FieldByName returns the field with the given name, or nil if absent.
func (c *Collection) FieldByName(name string) *Field {
	for i := range c.Fields {
		if c.Fields[i].Name == name {
			return &c.Fields[i]
		}
	}

	return nil
}

// FileFields returns the subset of fields of type "file", used by the
// Cache Store's deleteRow cascade and the File Blob Store's cleanup path.
func (c *Collection) FileFields() []Field {
	var out []Field

	for _, f := range c.Fields {
		if f.Type == FieldFile {
			out = append(out, f)
		}
	}

	return out
}

// SystemFieldNames are projected/ordered directly rather than via
// json_extract (SPEC_FULL 4.3 SELECT/ORDER BY clause generation).
var SystemFieldNames = map[string]bool{
	"id":      true,
	"created": true,
	"updated": true,
}
