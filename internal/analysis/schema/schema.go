package schema

import (
	"fmt"
	"strings"

	"github.com/wonny/oracle/internal/contracts"
)

// FieldType enumerates the primitive shapes a schema field can declare
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeEnum    FieldType = "enum"
	TypeObject  FieldType = "object"
	TypeArray   FieldType = "array"
)

// Field declares one field of a response document
type Field struct {
	Name     string
	Type     FieldType
	Required bool
	Enum     []string  // TypeEnum: allowed values
	Fields   []Field   // TypeObject: nested fields
	ElemType FieldType // TypeArray: element type for primitive arrays
	Elem     []Field   // TypeArray: element fields for object arrays
}

// Descriptor declares the full response shape for one analysis kind.
// It drives both output validation and the "required JSON shape" section of
// the generated prompt.
type Descriptor struct {
	Kind   contracts.AnalysisKind
	Fields []Field
}

// ValidationError reports the first schema violation found in a document
type ValidationError struct {
	Kind   contracts.AnalysisKind
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema validation failed for %s at %s: %s", e.Kind, e.Path, e.Reason)
}

// Validate checks a decoded document against the descriptor. Unknown extra
// fields are tolerated; missing required fields and type mismatches are not.
// Values are never coerced.
func (d *Descriptor) Validate(doc map[string]interface{}) error {
	return validateFields(d.Kind, "$", d.Fields, doc)
}

func validateFields(kind contracts.AnalysisKind, path string, fields []Field, doc map[string]interface{}) error {
	for _, f := range fields {
		fieldPath := path + "." + f.Name
		raw, ok := doc[f.Name]
		if !ok || raw == nil {
			if f.Required {
				return &ValidationError{Kind: kind, Path: fieldPath, Reason: "required field missing"}
			}
			continue
		}
		if err := validateValue(kind, fieldPath, f, raw); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(kind contracts.AnalysisKind, path string, f Field, raw interface{}) error {
	switch f.Type {
	case TypeString:
		if _, ok := raw.(string); !ok {
			return &ValidationError{Kind: kind, Path: path, Reason: "expected string"}
		}

	case TypeNumber, TypeInteger:
		switch raw.(type) {
		case float64, int, int64:
		default:
			return &ValidationError{Kind: kind, Path: path, Reason: "expected number"}
		}

	case TypeBoolean:
		if _, ok := raw.(bool); !ok {
			return &ValidationError{Kind: kind, Path: path, Reason: "expected boolean"}
		}

	case TypeEnum:
		s, ok := raw.(string)
		if !ok {
			return &ValidationError{Kind: kind, Path: path, Reason: "expected enum string"}
		}
		for _, allowed := range f.Enum {
			if s == allowed {
				return nil
			}
		}
		return &ValidationError{
			Kind: kind, Path: path,
			Reason: fmt.Sprintf("value %q not in [%s]", s, strings.Join(f.Enum, ", ")),
		}

	case TypeObject:
		obj, ok := raw.(map[string]interface{})
		if !ok {
			return &ValidationError{Kind: kind, Path: path, Reason: "expected object"}
		}
		return validateFields(kind, path, f.Fields, obj)

	case TypeArray:
		arr, ok := raw.([]interface{})
		if !ok {
			return &ValidationError{Kind: kind, Path: path, Reason: "expected array"}
		}
		for i, elem := range arr {
			elemPath := fmt.Sprintf("%s[%d]", path, i)
			if len(f.Elem) > 0 {
				obj, ok := elem.(map[string]interface{})
				if !ok {
					return &ValidationError{Kind: kind, Path: elemPath, Reason: "expected object element"}
				}
				if err := validateFields(kind, elemPath, f.Elem, obj); err != nil {
					return err
				}
				continue
			}
			if err := validateValue(kind, elemPath, Field{Name: f.Name, Type: f.ElemType, Enum: f.Enum}, elem); err != nil {
				return err
			}
		}
	}
	return nil
}

// Shape renders the descriptor as an example JSON document for prompts.
// Field order follows the declaration order, so the output is deterministic.
func (d *Descriptor) Shape() string {
	var b strings.Builder
	writeObject(&b, d.Fields, 0)
	return b.String()
}

func writeObject(b *strings.Builder, fields []Field, depth int) {
	indent := strings.Repeat("  ", depth)
	b.WriteString("{\n")
	for i, f := range fields {
		b.WriteString(indent + "  \"" + f.Name + "\": ")
		writePlaceholder(b, f, depth+1)
		if i < len(fields)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(indent + "}")
}

func writePlaceholder(b *strings.Builder, f Field, depth int) {
	switch f.Type {
	case TypeString:
		b.WriteString(`"<string>"`)
	case TypeNumber:
		b.WriteString("0.0")
	case TypeInteger:
		b.WriteString("0")
	case TypeBoolean:
		b.WriteString("false")
	case TypeEnum:
		b.WriteString(`"<` + strings.Join(f.Enum, "|") + `>"`)
	case TypeObject:
		writeObject(b, f.Fields, depth)
	case TypeArray:
		b.WriteString("[")
		if len(f.Elem) > 0 {
			writeObject(b, f.Elem, depth)
		} else {
			writePlaceholder(b, Field{Type: f.ElemType, Enum: f.Enum}, depth)
		}
		b.WriteString("]")
	}
}
