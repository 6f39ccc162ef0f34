package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldError describes one rejected answer. Submissions collect every error
// instead of stopping at the first.
type FieldError struct {
	FieldKey string `json:"field_key"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.FieldKey, e.Code)
}

// ValidateSubmission checks attendee answers against the field definitions.
// Keys not declared on the form are ignored.
func ValidateSubmission(fields []FormField, formData map[string]any) []FieldError {
	var errs []FieldError
	for _, field := range fields {
		value, exists := formData[field.Key]
		if !exists || isEmptyAnswer(value) {
			if field.Required {
				errs = append(errs, FieldError{
					FieldKey: field.Key,
					Code:     "required",
					Message:  fmt.Sprintf("%s is required", field.Label),
				})
			}
			continue
		}
		if err := validateAnswer(field, value); err != nil {
			errs = append(errs, *err)
		}
	}
	return errs
}

func validateAnswer(field FormField, value any) *FieldError {
	switch field.Type {
	case FieldEmail:
		s, ok := value.(string)
		if !ok || !strings.Contains(s, "@") {
			return &FieldError{FieldKey: field.Key, Code: "invalid_email", Message: fmt.Sprintf("%s must be an email address", field.Label)}
		}
	case FieldNumber:
		if !isNumericAnswer(value) {
			return &FieldError{FieldKey: field.Key, Code: "invalid_number", Message: fmt.Sprintf("%s must be a number", field.Label)}
		}
	case FieldCheckbox:
		if _, ok := value.(bool); !ok {
			return &FieldError{FieldKey: field.Key, Code: "invalid_boolean", Message: fmt.Sprintf("%s must be true or false", field.Label)}
		}
	case FieldDate:
		s, ok := value.(string)
		if !ok || !isDateAnswer(s) {
			return &FieldError{FieldKey: field.Key, Code: "invalid_date", Message: fmt.Sprintf("%s must be a date", field.Label)}
		}
	case FieldSelect:
		s, ok := value.(string)
		if !ok || !containsOption(field.OptionValues(), s) {
			return &FieldError{FieldKey: field.Key, Code: "invalid_option", Message: fmt.Sprintf("%s must be one of the listed options", field.Label)}
		}
	case FieldMultiSelect:
		options := field.OptionValues()
		selected, ok := toStringSlice(value)
		if !ok {
			return &FieldError{FieldKey: field.Key, Code: "invalid_option", Message: fmt.Sprintf("%s must be a list of options", field.Label)}
		}
		for _, s := range selected {
			if !containsOption(options, s) {
				return &FieldError{FieldKey: field.Key, Code: "invalid_option", Message: fmt.Sprintf("%s includes an unknown option", field.Label)}
			}
		}
	}
	return nil
}

func isEmptyAnswer(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	}
	return false
}

func isNumericAnswer(value any) bool {
	switch v := value.(type) {
	case float64, float32, int, int32, int64:
		return true
	case json.Number:
		_, err := v.Float64()
		return err == nil
	case string:
		_, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return err == nil
	}
	return false
}

func isDateAnswer(s string) bool {
	s = strings.TrimSpace(s)
	if _, err := time.Parse("2006-01-02", s); err == nil {
		return true
	}
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return true
	}
	return false
}

func containsOption(options []string, value string) bool {
	for _, option := range options {
		if option == value {
			return true
		}
	}
	return false
}

func toStringSlice(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
