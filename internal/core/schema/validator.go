// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError lists every schema violation found in a document
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema validation failed:\n- %s", strings.Join(e.Problems, "\n- "))
}

// TODO: The gojsonschema library is quite old with no updates. It might be worth looking to see if there's a newer maintained
// alternative.
// Validate validates a decoded document against a JSON schema
func Validate(schema []byte, document interface{}) error {
	compiled, err := Compile(schema)
	if err != nil {
		return err
	}
	return compiled.Validate(document)
}

// Schema is a compiled JSON schema that can be reused across documents
type Schema struct {
	schema *gojsonschema.Schema
}

// Compile parses a JSON schema once
func Compile(schema []byte) (*Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("error compiling schema: %w", err)
	}
	return &Schema{schema: compiled}, nil
}

// Validate checks a decoded document (maps, slices, scalars) against the schema
func (s *Schema) Validate(document interface{}) error {
	// Round trip through JSON so YAML-decoded values look like JSON values
	documentBytes, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("schema validation error: failed to serialize document: %w", err)
	}

	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(documentBytes))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			problems = append(problems, resultErr.String())
		}
		return &ValidationError{Problems: problems}
	}

	return nil
}
