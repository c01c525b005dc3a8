// SPDX-License-Identifier: Apache-2.0

package format

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind is a document encoding
type Kind string

const (
	YAML Kind = "yaml"
	JSON Kind = "json"
)

// ParseKind converts a user supplied format name into a Kind
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yaml", "yml", "":
		return YAML, nil
	case "json":
		return JSON, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// KindFor picks the encoding from a file extension. Anything that is not .json is YAML.
func KindFor(filePath string) Kind {
	if strings.ToLower(filepath.Ext(filePath)) == ".json" {
		return JSON
	}
	return YAML
}

// ParseFile reads and parses a file, trying YAML first, then JSON
func ParseFile(filePath string, v interface{}) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}

	return ParseData(data, v)
}

// ParseData parses data, trying YAML first, then JSON
func ParseData(data []byte, v interface{}) error {
	err := yaml.Unmarshal(data, v)
	if err == nil {
		return nil
	}

	jsonErr := json.Unmarshal(data, v)
	if jsonErr == nil {
		return nil
	}

	return fmt.Errorf("failed to parse as YAML (%v) or JSON (%v)", err, jsonErr)
}

// Marshal encodes v in the given encoding
func Marshal(v interface{}, kind Kind) ([]byte, error) {
	var data []byte
	var err error

	switch kind {
	case JSON:
		data, err = json.MarshalIndent(v, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	default:
		data, err = yaml.Marshal(v)
	}

	if err != nil {
		return nil, fmt.Errorf("error marshaling data: %w", err)
	}
	return data, nil
}

// Encode writes v to w in the given encoding
func Encode(w io.Writer, v interface{}, kind Kind) error {
	data, err := Marshal(v, kind)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteFile encodes v by file extension and writes it atomically with the given mode.
// The data goes to a temporary file in the same directory which is then renamed over
// filePath, so readers never observe a partial document.
func WriteFile(filePath string, v interface{}, perm os.FileMode) error {
	data, err := Marshal(v, KindFor(filePath))
	if err != nil {
		return err
	}

	dir := filepath.Dir(filePath)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filePath)+".*")
	if err != nil {
		return fmt.Errorf("error creating temporary file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing %s: %w", filePath, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("error setting mode on %s: %w", filePath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing %s: %w", filePath, err)
	}

	if err := os.Rename(tmpName, filePath); err != nil {
		return fmt.Errorf("error replacing %s: %w", filePath, err)
	}
	return nil
}
