package tool

import (
	"fmt"
	"strings"
)

// ValidateRequired only checks that every required field is present. Deeper checks
// belong to the handler.
func ValidateRequired(schema map[string]interface{}, params map[string]interface{}) error {
	for _, field := range requiredFields(schema) {
		v, exists := params[field]
		if !exists || v == nil {
			return fmt.Errorf("missing required field: %s", field)
		}
	}
	return nil
}

// ValidateParams checks declared types and enum values of the supplied params.
// Unknown fields are allowed.
func ValidateParams(schema map[string]interface{}, params map[string]interface{}) error {
	if err := ValidateRequired(schema, params); err != nil {
		return err
	}

	properties, ok := schema["properties"].(map[string]interface{})
	if !ok {
		return nil // No properties defined
	}

	for key, value := range params {
		propSchema, ok := properties[key].(map[string]interface{})
		if !ok || value == nil {
			continue
		}
		if err := validateType(key, propSchema, value); err != nil {
			return err
		}
	}

	return nil
}

func requiredFields(schema map[string]interface{}) []string {
	switch required := schema["required"].(type) {
	case []string:
		return required
	case []interface{}:
		out := make([]string, 0, len(required))
		for _, field := range required {
			if name, ok := field.(string); ok {
				out = append(out, name)
			}
		}
		return out
	default:
		return nil
	}
}

func validateType(fieldName string, schema map[string]interface{}, value interface{}) error {
	if err := validateEnum(fieldName, schema, value); err != nil {
		return err
	}

	expectedType, ok := schema["type"].(string)
	if !ok {
		return nil // Type not specified
	}

	switch expectedType {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("field '%s' expected string, got %T", fieldName, value)
		}
	case "number", "integer":
		// JSON unmarshals numbers to float64
		if _, ok := value.(float64); !ok {
			return fmt.Errorf("field '%s' expected number, got %T", fieldName, value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("field '%s' expected boolean, got %T", fieldName, value)
		}
	case "array":
		arr, ok := value.([]interface{})
		if !ok {
			return fmt.Errorf("field '%s' expected array, got %T", fieldName, value)
		}
		if itemsSchema, ok := schema["items"].(map[string]interface{}); ok {
			for i, item := range arr {
				if err := validateType(fmt.Sprintf("%s[%d]", fieldName, i), itemsSchema, item); err != nil {
					return err
				}
			}
		}
	case "object":
		obj, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("field '%s' expected object, got %T", fieldName, value)
		}
		return ValidateParams(schema, obj)
	}

	return nil
}

func validateEnum(fieldName string, schema map[string]interface{}, value interface{}) error {
	var allowed []string
	switch enum := schema["enum"].(type) {
	case []string:
		allowed = enum
	case []interface{}:
		for _, v := range enum {
			if s, ok := v.(string); ok {
				allowed = append(allowed, s)
			}
		}
	default:
		return nil
	}

	s, ok := value.(string)
	if !ok {
		return nil
	}
	for _, a := range allowed {
		if a == s {
			return nil
		}
	}
	return fmt.Errorf("field '%s' must be one of [%s], got %q", fieldName, strings.Join(allowed, ", "), s)
}
