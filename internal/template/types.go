package template

// Field types accepted in template declarations.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeObject  = "object"
	TypeArray   = "array"
)

// FormatISO8601 marks a string field that must parse as an ISO 8601 timestamp.
const FormatISO8601 = "ISO_8601"

// Field describes one declared payload field.
type Field struct {
	// Type is one of string, number, boolean, object, array.
	Type string `yaml:"type"`

	// Required fields must be present; absence of an optional field
	// is never an error.
	Required bool `yaml:"required"`

	// Enum restricts a string field to the listed values.
	Enum []string `yaml:"enum,omitempty"`

	// Format is an optional sub-format, currently only ISO_8601.
	Format string `yaml:"format,omitempty"`
}

// Template is the per-topic message structure definition.
//
// Templates are loaded once from the YAML tree and held immutable.
type Template struct {
	// Topic is the concrete topic or "{var}" pattern this template governs.
	Topic string `yaml:"topic"`

	// Category is the directory the template was loaded from (ccu, module, ...).
	Category string `yaml:"-"`

	// Fields maps field name to its declaration.
	Fields map[string]Field `yaml:"fields"`

	// Examples are sample payloads for human consumption.
	Examples []map[string]any `yaml:"examples,omitempty"`

	// ValidationRules are free-form rule descriptions for human consumption.
	ValidationRules []string `yaml:"validation_rules,omitempty"`
}

// Result is the outcome of validating a payload against a template.
//
// Errors gate nothing: validation never blocks ingestion. Unknown extra
// fields are allowed for forward compatibility and reported as warnings.
type Result struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// Statistics summarises the loaded template tree.
type Statistics struct {
	Templates       int
	Categories      int
	Examples        int
	ValidationRules int
}
