// SPDX-License-Identifier: Apache-2.0

package check

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kusari-oss/mend/internal/core/models"
	"github.com/owenrumney/go-sarif/v2/sarif"
)

// Output formats understood by the built-in parsers
const (
	FormatSARIF    = "sarif"
	FormatRegex    = "regex"
	FormatJSON     = "json"
	FormatLines    = "lines"
	FormatExitCode = "exitcode"
)

// ParseInput is what a parser sees of one command run
type ParseInput struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Spec     models.OutputSpec
}

// Parser turns raw tool output into issues. Parsers fill the fields the tool reports;
// defaults and normalization are applied by the adapter.
type Parser func(in ParseInput) ([]models.Issue, error)

// ParserTable maps output formats to parsers. It is built once and never mutated.
type ParserTable map[string]Parser

// DefaultParsers returns the built-in parser table
func DefaultParsers() ParserTable {
	return ParserTable{
		FormatSARIF:    parseSARIF,
		FormatRegex:    parseRegex,
		FormatJSON:     parseJSON,
		FormatLines:    parseLines,
		FormatExitCode: parseExitCode,
	}
}

// Lookup returns the parser for a format
func (t ParserTable) Lookup(format string) (Parser, error) {
	if format == "" {
		format = FormatExitCode
	}
	parser, ok := t[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("unknown output format: %s", format)
	}
	return parser, nil
}

// Formats lists the registered formats in sorted order
func (t ParserTable) Formats() []string {
	formats := make([]string, 0, len(t))
	for format := range t {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

// parseSARIF reads a SARIF 2.1.0 log. Result levels fall back to the rule's default level.
func parseSARIF(in ParseInput) ([]models.Issue, error) {
	if len(bytes.TrimSpace(in.Stdout)) == 0 {
		return nil, nil
	}

	var report sarif.Report
	if err := json.Unmarshal(in.Stdout, &report); err != nil {
		return nil, fmt.Errorf("error parsing SARIF output: %w", err)
	}

	var issues []models.Issue
	for _, run := range report.Runs {
		ruleLevels := make(map[string]string)
		if run.Tool.Driver != nil {
			for _, rule := range run.Tool.Driver.Rules {
				if rule != nil && rule.DefaultConfiguration != nil {
					ruleLevels[rule.ID] = levelString(rule.DefaultConfiguration.Level)
				}
			}
		}

		for _, res := range run.Results {
			if res == nil {
				continue
			}

			ruleID := ""
			if res.RuleID != nil {
				ruleID = *res.RuleID
			}

			message := ""
			if res.Message.Text != nil {
				message = *res.Message.Text
			}
			if ruleID != "" {
				message = strings.TrimSpace(ruleID + ": " + message)
			}

			level := ruleLevels[ruleID]
			if res.Level != nil {
				level = *res.Level
			}

			issue := models.Issue{
				Message:  message,
				Severity: sarifSeverity(level),
			}

			if len(res.Locations) > 0 && res.Locations[0] != nil {
				loc := res.Locations[0].PhysicalLocation
				if loc != nil && loc.ArtifactLocation != nil && loc.ArtifactLocation.URI != nil {
					issue.FilePath = strings.TrimPrefix(*loc.ArtifactLocation.URI, "file://")
				}
				if loc != nil && loc.Region != nil && loc.Region.StartLine != nil {
					issue.LineNumber = *loc.Region.StartLine
				}
			}

			issues = append(issues, issue)
		}
	}
	return issues, nil
}

func levelString(level interface{}) string {
	if s, ok := level.(string); ok {
		return s
	}
	return ""
}

func sarifSeverity(level string) models.Severity {
	switch strings.ToLower(level) {
	case "error":
		return models.SeverityHigh
	case "warning":
		return models.SeverityMedium
	case "note", "none":
		return models.SeverityLow
	default:
		return ""
	}
}

// parseRegex matches Spec.Pattern against every output line. Named groups file, line,
// message, severity and kind populate the issue; without a message group the whole
// line is the message.
func parseRegex(in ParseInput) ([]models.Issue, error) {
	if in.Spec.Pattern == "" {
		return nil, fmt.Errorf("regex output requires a pattern")
	}
	re, err := regexp.Compile(in.Spec.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid output pattern: %w", err)
	}

	var issues []models.Issue
	err = eachLine(func(line string) {
		match := re.FindStringSubmatch(line)
		if match == nil {
			return
		}

		issue := models.Issue{Message: line}
		for i, name := range re.SubexpNames() {
			if i == 0 || name == "" {
				continue
			}
			applyField(&issue, name, match[i])
		}
		issues = append(issues, issue)
	}, in.Stdout, in.Stderr)
	return issues, err
}

// parseJSON decodes the output, walks Spec.Path to an array of objects and maps
// object fields onto issue fields through Spec.Fields (issue field -> JSON key).
func parseJSON(in ParseInput) ([]models.Issue, error) {
	if len(bytes.TrimSpace(in.Stdout)) == 0 {
		return nil, nil
	}

	var doc interface{}
	if err := json.Unmarshal(in.Stdout, &doc); err != nil {
		return nil, fmt.Errorf("error parsing JSON output: %w", err)
	}

	if in.Spec.Path != "" {
		extracted, err := extractJSONPath(doc, in.Spec.Path)
		if err != nil {
			return nil, fmt.Errorf("error extracting %s: %w", in.Spec.Path, err)
		}
		doc = extracted
	}

	var items []interface{}
	switch v := doc.(type) {
	case nil:
		return nil, nil
	case []interface{}:
		items = v
	case map[string]interface{}:
		items = []interface{}{v}
	default:
		return nil, fmt.Errorf("expected an array of objects at %q, got %T", in.Spec.Path, doc)
	}

	fields := map[string]string{"file": "file", "line": "line", "message": "message", "severity": "severity", "kind": "kind"}
	for field, key := range in.Spec.Fields {
		fields[strings.ToLower(field)] = key
	}

	var issues []models.Issue
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		var issue models.Issue
		for field, key := range fields {
			value, err := extractJSONPath(obj, key)
			if err != nil || value == nil {
				continue
			}
			applyField(&issue, field, stringify(value))
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

// parseLines treats every non-empty stdout line as a file path needing attention,
// the way `gofmt -l` reports unformatted files.
func parseLines(in ParseInput) ([]models.Issue, error) {
	message := in.Spec.Pattern
	if message == "" {
		message = "file needs attention"
	}

	var issues []models.Issue
	err := eachLine(func(line string) {
		issues = append(issues, models.Issue{FilePath: line, Message: message})
	}, in.Stdout)
	return issues, err
}

// parseExitCode reports one issue carrying the output tail when the tool exits non-zero
func parseExitCode(in ParseInput) ([]models.Issue, error) {
	if in.ExitCode == 0 {
		return nil, nil
	}

	output := strings.TrimSpace(string(in.Stdout) + "\n" + string(in.Stderr))
	lines := strings.Split(output, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	tail := strings.TrimSpace(strings.Join(lines, "\n"))
	if tail == "" {
		tail = "no output"
	}

	return []models.Issue{{
		Message: fmt.Sprintf("exited with status %d: %s", in.ExitCode, tail),
	}}, nil
}

// eachLine calls fn for every non-empty trimmed line of each stream
func eachLine(fn func(line string), streams ...[]byte) error {
	for _, data := range streams {
		scanner := bufio.NewScanner(bytes.NewReader(data))
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				fn(line)
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("error reading output: %w", err)
		}
	}
	return nil
}

// applyField sets one issue field from its textual value
func applyField(issue *models.Issue, field, value string) {
	value = strings.TrimSpace(value)
	switch field {
	case "file":
		issue.FilePath = value
	case "line":
		if n, err := strconv.Atoi(value); err == nil {
			issue.LineNumber = n
		}
	case "message":
		issue.Message = value
	case "severity":
		issue.Severity = models.Severity(value)
	case "kind":
		issue.Kind = models.IssueKind(value)
	}
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// extractJSONPath extracts a value from a JSON object using a dotted path with optional
// array indexes, e.g. "report.findings" or "runs[0].results"
func extractJSONPath(obj interface{}, path string) (interface{}, error) {
	parts := strings.Split(path, ".")
	current := obj

	for _, part := range parts {
		if strings.Contains(part, "[") && strings.Contains(part, "]") {
			openBracket := strings.Index(part, "[")
			closeBracket := strings.Index(part, "]")

			if openBracket > 0 && closeBracket > openBracket {
				propName := part[:openBracket]
				indexStr := part[openBracket+1 : closeBracket]

				mapObj, ok := current.(map[string]interface{})
				if !ok {
					return nil, fmt.Errorf("not an object at path: %s", propName)
				}
				current = mapObj[propName]

				index, err := strconv.Atoi(indexStr)
				if err != nil {
					return nil, fmt.Errorf("invalid array index: %s", indexStr)
				}

				arr, ok := current.([]interface{})
				if !ok {
					return nil, fmt.Errorf("not an array at path: %s[%s]", propName, indexStr)
				}
				if index < 0 || index >= len(arr) {
					return nil, fmt.Errorf("array index out of bounds: %d", index)
				}
				current = arr[index]
			}
		} else {
			mapObj, ok := current.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("not an object at path: %s", part)
			}
			current = mapObj[part]
		}
	}

	return current, nil
}
