// SPDX-License-Identifier: Apache-2.0

package schema_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kusari-oss/mend/internal/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const checkSchema = `{
  "type": "object",
  "required": ["name", "command"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "command": {"type": "array", "items": {"type": "string"}, "minItems": 1}
  }
}`

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		document   interface{}
		shouldPass bool
	}{
		{
			name: "valid document",
			document: map[string]interface{}{
				"name":    "gofmt",
				"command": []interface{}{"gofmt", "-l", "."},
			},
			shouldPass: true,
		},
		{
			name: "missing required field",
			document: map[string]interface{}{
				"name": "gofmt",
			},
			shouldPass: false,
		},
		{
			name: "wrong item type",
			document: map[string]interface{}{
				"name":    "gofmt",
				"command": []interface{}{"gofmt", 3},
			},
			shouldPass: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := schema.Validate([]byte(checkSchema), tt.document)
			if tt.shouldPass {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var validationErr *schema.ValidationError
			assert.True(t, errors.As(err, &validationErr))
			assert.NotEmpty(t, validationErr.Problems)
		})
	}
}

func TestCompileInvalidSchema(t *testing.T) {
	_, err := schema.Compile([]byte(`{"type": 12`))
	assert.Error(t, err)
}

func TestValidatorFor(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		path    string
		content string
		valid   bool
	}{
		{name: "json by extension", path: "a.json", content: `{"a": 1}`, valid: true},
		{name: "broken json by extension", path: "a.json", content: `{"a": `, valid: false},
		{name: "yaml by extension", path: "a.yml", content: "a: [1, 2]\n", valid: true},
		{name: "broken yaml", path: "a.yaml", content: "a: [1, 2\n", valid: false},
		{name: "go by extension", path: "main.go", content: "package main\n\nfunc main() {}\n", valid: true},
		{name: "broken go", path: "main.go", content: "package main\n\nfunc main( {}\n", valid: false},
		{name: "nonempty default", path: "README", content: "  \n", valid: false},
		{name: "none accepts anything", spec: "none", path: "a.json", content: "{", valid: true},
		{name: "explicit nonempty", spec: "nonempty", path: "a.go", content: "x", valid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validate, err := schema.ValidatorFor(tt.spec, tt.path, "")
			require.NoError(t, err)
			assert.Equal(t, tt.valid, validate([]byte(tt.content)))
		})
	}

	_, err := schema.ValidatorFor("xml", "a.xml", "")
	assert.Error(t, err)
}

func TestValidatorForJSONSchema(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "check.schema.json"), []byte(checkSchema), 0644))

	validate, err := schema.ValidatorFor("jsonschema:check.schema.json", "check.yaml", dir)
	require.NoError(t, err)

	assert.True(t, validate([]byte("name: vet\ncommand: [go, vet, ./...]\n")))
	assert.True(t, validate([]byte(`{"name": "vet", "command": ["go", "vet"]}`)))
	assert.False(t, validate([]byte("name: vet\n")))
	assert.False(t, validate([]byte("name: [unterminated\n")))

	_, err = schema.ValidatorFor("jsonschema:missing.json", "check.yaml", dir)
	assert.Error(t, err)
}
