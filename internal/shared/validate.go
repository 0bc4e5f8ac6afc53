package shared

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct runs struct-tag validation and returns human-readable
// failure messages. An empty slice means the value is valid.
func ValidateStruct(v interface{}) []string {
	err := structValidator.Struct(v)
	if err == nil {
		return nil
	}
	vErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	msgs := make([]string, 0, len(vErrs))
	for _, fe := range vErrs {
		msgs = append(msgs, message(fe))
	}
	return msgs
}

func message(fe validator.FieldError) string {
	field := humanize(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// humanize splits a CamelCase field name into lower-case words, e.g.
// "SubCategoryID" -> "sub category id".
func humanize(field string) string {
	var b strings.Builder
	for i, r := range field {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := field[i-1]
			if prev >= 'a' && prev <= 'z' || (i+1 < len(field) && field[i+1] >= 'a' && field[i+1] <= 'z' && prev >= 'A' && prev <= 'Z') {
				b.WriteByte(' ')
			}
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}
