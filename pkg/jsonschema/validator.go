// Package jsonschema validates JSON documents against pre-compiled JSON Schemas.
//
// Schemas are compiled once and reused, so validation is cheap enough to run
// on every response of a load test.
package jsonschema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidationErrors represents a collection of validation errors
type ValidationErrors []error

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, err := range ve {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Validator validates documents against one compiled schema.
type Validator struct {
	name   string
	schema *jsonschema.Schema
}

// Compile compiles schemaStr under the given resource name.
func Compile(name, schemaStr string) (*Validator, error) {
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource(name, strings.NewReader(schemaStr)); err != nil {
		return nil, fmt.Errorf("invalid schema %s: %w", name, err)
	}

	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("invalid schema %s: %w", name, err)
	}

	return &Validator{name: name, schema: schema}, nil
}

// MustCompile is like Compile but panics on error. Intended for package-level
// schemas known at build time.
func MustCompile(name, schemaStr string) *Validator {
	v, err := Compile(name, schemaStr)
	if err != nil {
		panic(err)
	}
	return v
}

// Name returns the resource name the schema was compiled under.
func (v *Validator) Name() string {
	return v.name
}

// Validate parses data as JSON and validates it.
//
// A nil return means the document is valid. Invalid JSON yields a single
// error; schema violations yield one error per failing location.
func (v *Validator) Validate(data []byte) error {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return ValidationErrors{fmt.Errorf("invalid JSON: %w", err)}
	}

	return v.ValidateValue(doc)
}

// ValidateValue validates an already decoded JSON value.
func (v *Validator) ValidateValue(doc interface{}) error {
	err := v.schema.Validate(doc)
	if err == nil {
		return nil
	}

	var validationErr *jsonschema.ValidationError
	if errors.As(err, &validationErr) {
		return extractValidationErrors(validationErr)
	}
	return ValidationErrors{err}
}

// Validate validates a JSON string against a JSON Schema given as a string.
// Returns true if the JSON is valid. Errors in the schema or in JSON parsing
// are returned as errors.
func Validate(jsonStr, schemaStr string) (bool, error) {
	v, err := Compile("schema.json", schemaStr)
	if err != nil {
		return false, err
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(jsonStr), &doc); err != nil {
		return false, fmt.Errorf("invalid JSON: %w", err)
	}

	return v.ValidateValue(doc) == nil, nil
}

// extractValidationErrors flattens a jsonschema.ValidationError tree.
func extractValidationErrors(err *jsonschema.ValidationError) ValidationErrors {
	var errs ValidationErrors

	if err.Message != "" {
		errs = append(errs, fmt.Errorf("validation error at %s: %s", err.InstanceLocation, err.Message))
	}

	for _, childErr := range err.Causes {
		errs = append(errs, extractValidationErrors(childErr)...)
	}

	return errs
}
