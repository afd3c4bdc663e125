package schema

import (
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/otterway/pbsync/internal/model"
)

// emailPattern is a standard, deliberately permissive email shape check —
// full RFC 5322 compliance is not the goal, just rejecting obviously
// malformed input (SPEC_FULL.md section 4.8).
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidationError is returned by Validate for the first field that fails
// its rule.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

// Validate checks data against the collection's field-type rules. System
// fields are skipped. Empty strings for non-required date/url/email fields
// pass through, matching the server's own leniency there.
func Validate(c *model.Collection, data map[string]any) error {
	for _, f := range c.Fields {
		if f.System {
			continue
		}

		v, present := data[f.Name]

		if !present || v == nil {
			if f.Required {
				return &ValidationError{Field: f.Name, Reason: "required field is missing"}
			}

			continue
		}

		if err := validateField(&f, v); err != nil {
			return err
		}
	}

	return nil
}

func validateField(f *model.Field, v any) error {
	switch f.Type {
	case model.FieldText, model.FieldEditor, model.FieldJSON:
		return nil
	case model.FieldNumber:
		return validateNumber(f, v)
	case model.FieldBool:
		return validateBool(f, v)
	case model.FieldDate:
		return validateDate(f, v)
	case model.FieldURL:
		return validateURL(f, v)
	case model.FieldEmail:
		return validateEmail(f, v)
	case model.FieldSelect, model.FieldFile, model.FieldRelation:
		return validateCardinality(f, v)
	default:
		return nil
	}
}

func validateNumber(f *model.Field, v any) error {
	switch v.(type) {
	case float64, int, int64:
		return nil
	default:
		return &ValidationError{Field: f.Name, Reason: "expected a number"}
	}
}

func validateBool(f *model.Field, v any) error {
	if _, ok := v.(bool); !ok {
		return &ValidationError{Field: f.Name, Reason: "expected a bool"}
	}

	return nil
}

func validateDate(f *model.Field, v any) error {
	s, ok := v.(string)
	if !ok {
		return &ValidationError{Field: f.Name, Reason: "expected an ISO-8601 date string"}
	}

	if s == "" && !f.Required {
		return nil
	}

	if _, err := time.Parse(time.RFC3339, s); err != nil {
		if _, err2 := time.Parse("2006-01-02 15:04:05.000Z", s); err2 != nil {
			return &ValidationError{Field: f.Name, Reason: "not a parseable ISO-8601 date"}
		}
	}

	return nil
}

func validateURL(f *model.Field, v any) error {
	s, ok := v.(string)
	if !ok {
		return &ValidationError{Field: f.Name, Reason: "expected a URL string"}
	}

	if s == "" && !f.Required {
		return nil
	}

	u, err := url.ParseRequestURI(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ValidationError{Field: f.Name, Reason: "not an absolute URI"}
	}

	return nil
}

func validateEmail(f *model.Field, v any) error {
	s, ok := v.(string)
	if !ok {
		return &ValidationError{Field: f.Name, Reason: "expected an email string"}
	}

	if s == "" && !f.Required {
		return nil
	}

	if !emailPattern.MatchString(s) {
		return &ValidationError{Field: f.Name, Reason: "not a valid email address"}
	}

	return nil
}

// validateCardinality checks select/file/relation fields are shaped as a
// single scalar or a list per the field's maxSelect cardinality.
func validateCardinality(f *model.Field, v any) error {
	_, isList := v.([]any)

	if f.Data.Multi() && !isList {
		return &ValidationError{Field: f.Name, Reason: "expected a list (maxSelect >= 2)"}
	}

	if !f.Data.Multi() && isList {
		return &ValidationError{Field: f.Name, Reason: "expected a single value (maxSelect <= 1)"}
	}

	return nil
}
