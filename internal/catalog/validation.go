package catalog

import (
	"strings"

	"github.com/tillworks/tillworks/internal/shared"
)

// ValidateSuperCategory reports human-readable validation failures.
// An empty result means the input is valid.
func ValidateSuperCategory(in SuperCategoryInput) []string {
	return withBlankChecks(shared.ValidateStruct(in), map[string]string{
		"name is required": in.Name,
		"icon is required": in.Icon,
	})
}

// ValidateSubCategory reports human-readable validation failures.
func ValidateSubCategory(in SubCategoryInput) []string {
	return withBlankChecks(shared.ValidateStruct(in), map[string]string{
		"name is required": in.Name,
		"icon is required": in.Icon,
	})
}

// ValidateProduct reports human-readable validation failures.
func ValidateProduct(in ProductInput) []string {
	return withBlankChecks(shared.ValidateStruct(in), map[string]string{
		"name is required": in.Name,
		"unit is required": in.Unit,
	})
}

// withBlankChecks catches whitespace-only values that the required tag
// accepts, keeping one message per failed field.
func withBlankChecks(msgs []string, fields map[string]string) []string {
	for msg, value := range fields {
		if value != "" && strings.TrimSpace(value) == "" {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}
