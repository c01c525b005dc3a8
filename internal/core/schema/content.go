// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Content validator names accepted in fixer configuration
const (
	ValidatorNone     = "none"
	ValidatorNonEmpty = "nonempty"
	ValidatorJSON     = "json"
	ValidatorYAML     = "yaml"
	ValidatorGo       = "go"
	JSONSchemaPrefix  = "jsonschema:"
)

// ContentValidator reports whether proposed file content is acceptable
type ContentValidator func(content []byte) bool

// ValidatorFor builds the content validator named by spec for the file at path.
// An empty spec picks a validator from the file extension. Relative schema paths
// are resolved against baseDir.
func ValidatorFor(spec, path, baseDir string) (ContentValidator, error) {
	if spec == "" {
		spec = defaultValidator(path)
	}

	switch {
	case spec == ValidatorNone:
		return func([]byte) bool { return true }, nil
	case spec == ValidatorNonEmpty:
		return func(content []byte) bool { return len(bytes.TrimSpace(content)) > 0 }, nil
	case spec == ValidatorJSON:
		return json.Valid, nil
	case spec == ValidatorYAML:
		return validYAML, nil
	case spec == ValidatorGo:
		return func(content []byte) bool {
			_, err := parser.ParseFile(token.NewFileSet(), path, content, parser.AllErrors)
			return err == nil
		}, nil
	case strings.HasPrefix(spec, JSONSchemaPrefix):
		return jsonSchemaValidator(strings.TrimPrefix(spec, JSONSchemaPrefix), baseDir)
	default:
		return nil, fmt.Errorf("unknown validator: %s", spec)
	}
}

func defaultValidator(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ValidatorJSON
	case ".yaml", ".yml":
		return ValidatorYAML
	case ".go":
		return ValidatorGo
	default:
		return ValidatorNonEmpty
	}
}

func validYAML(content []byte) bool {
	var doc interface{}
	return yaml.Unmarshal(content, &doc) == nil
}

// jsonSchemaValidator compiles the schema once and accepts YAML or JSON documents
func jsonSchemaValidator(schemaPath, baseDir string) (ContentValidator, error) {
	if !filepath.IsAbs(schemaPath) {
		schemaPath = filepath.Join(baseDir, schemaPath)
	}
	data, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("error reading schema file %s: %w", schemaPath, err)
	}

	compiled, err := Compile(data)
	if err != nil {
		return nil, err
	}

	return func(content []byte) bool {
		var doc interface{}
		if err := yaml.Unmarshal(content, &doc); err != nil {
			return false
		}
		return compiled.Validate(doc) == nil
	}, nil
}
