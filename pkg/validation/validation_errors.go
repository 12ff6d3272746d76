package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldLabels maps struct field names to user-facing labels
var FieldLabels = map[string]string{
	// Auth fields
	"Email":           "Email",
	"Phone":           "Phone number",
	"Password":        "Password",
	"PasswordConfirm": "Password confirmation",
	"UserType":        "Account type",

	// Farmer profile
	"Name":     "Full name",
	"Location": "Location",
	"FarmSize": "Farm size",
	"Products": "Products",

	// Company profile
	"CompanyName":   "Company name",
	"BusinessType":  "Business type",
	"ContactPerson": "Contact person",
	"LookingFor":    "Looking for",

	// Listing fields
	"CropType":     "Crop type",
	"Quantity":     "Quantity",
	"PricePerUnit": "Price per unit",
	"Description":  "Description",
	"Images":       "Images",
}

// ValidationRules contains max/min values for validation messages
var ValidationRules = map[string]map[string]interface{}{
	"Password":     {"min": 6},
	"Phone":        {"min": 7, "max": 15},
	"Quantity":     {"unit": "kg"},
	"PricePerUnit": {"unit": "USD"},
}

// FormatValidationErrors converts validator.ValidationErrors to user-friendly messages
func FormatValidationErrors(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{err.Error()}
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, formatSingleError(e))
	}
	return messages
}

// formatSingleError formats a single validation error to a user-friendly message
func formatSingleError(e validator.FieldError) string {
	fieldName := e.Field()
	label := getFieldLabel(fieldName)
	tag := e.Tag()
	param := e.Param()

	switch tag {
	case "required", "not_blank":
		return fmt.Sprintf("%s: is required", label)

	case "min", "gt", "gte":
		if rules, ok := ValidationRules[fieldName]; ok {
			if unit, hasUnit := rules["unit"]; hasUnit {
				return fmt.Sprintf("%s: must be at least %s %s", label, param, unit)
			}
		}
		if e.Kind().String() == "string" {
			return fmt.Sprintf("%s: must be at least %s characters", label, param)
		}
		if e.Kind().String() == "slice" {
			return fmt.Sprintf("%s: add at least %s", label, param)
		}
		return fmt.Sprintf("%s: must be at least %s", label, param)

	case "max", "lt", "lte":
		if e.Kind().String() == "string" {
			return fmt.Sprintf("%s: must be at most %s characters", label, param)
		}
		return fmt.Sprintf("%s: must be at most %s", label, param)

	case "oneof":
		return fmt.Sprintf("%s: must be one of: %s", label, strings.Join(strings.Fields(param), ", "))

	case "email":
		return fmt.Sprintf("%s: invalid email format", label)

	case "url":
		return fmt.Sprintf("%s: invalid URL format", label)

	case "valid_name":
		return fmt.Sprintf("%s: only letters, numbers, spaces and common punctuation (. ' - / & ( ) ,)", label)

	case "valid_phone":
		return fmt.Sprintf("%s: invalid phone number (7-15 digits, optional +)", label)

	case "no_emoji":
		return fmt.Sprintf("%s: must not contain emoji or special symbols", label)

	case "eqfield":
		return fmt.Sprintf("%s: must match %s", label, getFieldLabel(param))

	default:
		return fmt.Sprintf("%s: failed validation (%s)", label, tag)
	}
}

// getFieldLabel returns the user-friendly label for a field
func getFieldLabel(fieldName string) string {
	if label, ok := FieldLabels[fieldName]; ok {
		return label
	}
	return formatCamelCase(fieldName)
}

// formatCamelCase converts CamelCase to spaced words
func formatCamelCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteRune(' ')
		}
		result.WriteRune(r)
	}
	return result.String()
}
