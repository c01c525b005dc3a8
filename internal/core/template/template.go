// SPDX-License-Identifier: Apache-2.0

package template

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"
	"text/template"
)

// wholeField matches an argument that is a single {{.Name}} reference
var wholeField = regexp.MustCompile(`^\{\{\s*\.(\w+)\s*\}\}$`)

var funcs = template.FuncMap{
	"join":  strings.Join,
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
}

// ProcessFile processes a template file with the given parameters
func ProcessFile(filePath string, params map[string]interface{}) ([]byte, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("template file does not exist: %s", filePath)
		}
		return nil, fmt.Errorf("error reading template file: %w", err)
	}

	return ProcessString(string(content), params)
}

// ProcessString processes a template string with the given parameters.
// Missing keys are an error.
func ProcessString(text string, params map[string]interface{}) ([]byte, error) {
	tmpl, err := template.New("template").Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("error parsing template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return nil, fmt.Errorf("error executing template: %w", err)
	}

	return buf.Bytes(), nil
}

// RenderArgs renders every element of a command line. An argument that is exactly
// {{.Name}} where Name holds a []string expands into one argument per element, so
// {{.Files}} passes each file separately instead of one space-joined string.
func RenderArgs(args []string, params map[string]interface{}) ([]string, error) {
	rendered := make([]string, 0, len(args))
	for _, arg := range args {
		if m := wholeField.FindStringSubmatch(arg); m != nil {
			if list, ok := params[m[1]].([]string); ok {
				rendered = append(rendered, list...)
				continue
			}
		}

		out, err := ProcessString(arg, params)
		if err != nil {
			return nil, fmt.Errorf("error rendering argument %q: %w", arg, err)
		}
		rendered = append(rendered, string(out))
	}
	return rendered, nil
}
