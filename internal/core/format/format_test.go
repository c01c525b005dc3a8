// SPDX-License-Identifier: Apache-2.0

package format

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string   `json:"name" yaml:"name"`
	Value int      `json:"value" yaml:"value"`
	Items []string `json:"items" yaml:"items"`
}

func TestParseData(t *testing.T) {
	expected := record{Name: "gofmt", Value: 42, Items: []string{"a", "b"}}

	t.Run("ParseValidYAML", func(t *testing.T) {
		var result record
		require.NoError(t, ParseData([]byte("name: gofmt\nvalue: 42\nitems:\n  - a\n  - b\n"), &result))
		assert.Equal(t, expected, result)
	})

	t.Run("ParseValidJSON", func(t *testing.T) {
		var result record
		require.NoError(t, ParseData([]byte(`{"name": "gofmt", "value": 42, "items": ["a", "b"]}`), &result))
		assert.Equal(t, expected, result)
	})

	t.Run("ParseInvalidData", func(t *testing.T) {
		var result record
		err := ParseData([]byte(`this is not valid yaml or json`), &result)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse as YAML")
	})
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		input    string
		expected Kind
		wantErr  bool
	}{
		{input: "", expected: YAML},
		{input: "YML", expected: YAML},
		{input: "json", expected: JSON},
		{input: "toml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			kind, err := ParseKind(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, kind)
		})
	}

	assert.Equal(t, JSON, KindFor("report.JSON"))
	assert.Equal(t, YAML, KindFor("report.yaml"))
	assert.Equal(t, YAML, KindFor("report"))
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, record{Name: "vet"}, JSON))
	assert.Contains(t, buf.String(), `"name": "vet"`)

	buf.Reset()
	require.NoError(t, Encode(&buf, record{Name: "vet"}, YAML))
	assert.Contains(t, buf.String(), "name: vet")
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("YAMLWithMode", func(t *testing.T) {
		path := filepath.Join(dir, "record.yaml")
		require.NoError(t, WriteFile(path, record{Name: "vet", Value: 1}, 0600))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		var result record
		require.NoError(t, ParseFile(path, &result))
		assert.Equal(t, "vet", result.Name)
	})

	t.Run("JSONOverwrite", func(t *testing.T) {
		path := filepath.Join(dir, "record.json")
		require.NoError(t, WriteFile(path, record{Name: "first"}, 0644))
		require.NoError(t, WriteFile(path, record{Name: "second"}, 0644))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"name": "second"`)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		for _, entry := range entries {
			assert.NotContains(t, entry.Name(), ".record.json.", "temporary files are cleaned up")
		}
	})

	t.Run("MissingDirectory", func(t *testing.T) {
		err := WriteFile(filepath.Join(dir, "nope", "record.yaml"), record{}, 0644)
		assert.Error(t, err)
	})
}
