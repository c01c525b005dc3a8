// SPDX-License-Identifier: Apache-2.0

package models

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Stage identifies the strategy a check belongs to
type Stage string

const (
	StageFast          Stage = "FAST"
	StageComprehensive Stage = "COMPREHENSIVE"
)

// ParseStage converts a configured stage name into a Stage
func ParseStage(s string) (Stage, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(StageFast):
		return StageFast, nil
	case string(StageComprehensive):
		return StageComprehensive, nil
	default:
		return "", fmt.Errorf("unknown stage: %s", s)
	}
}

// StrategyName returns the name of the strategy that runs this stage
func (s Stage) StrategyName() string {
	return strings.ToLower(string(s))
}

// OutputSpec tells a check adapter how to turn raw tool output into issues
type OutputSpec struct {
	Format   string            `json:"format" yaml:"format" mapstructure:"format"`
	Kind     IssueKind         `json:"kind,omitempty" yaml:"kind,omitempty" mapstructure:"kind"`
	Severity Severity          `json:"severity,omitempty" yaml:"severity,omitempty" mapstructure:"severity"`
	Pattern  string            `json:"pattern,omitempty" yaml:"pattern,omitempty" mapstructure:"pattern"`
	Path     string            `json:"path,omitempty" yaml:"path,omitempty" mapstructure:"path"`
	Fields   map[string]string `json:"fields,omitempty" yaml:"fields,omitempty" mapstructure:"fields"`
}

// CheckDefinition describes one quality check. It is immutable once loaded.
type CheckDefinition struct {
	Name         string        `json:"name" yaml:"name" mapstructure:"name"`
	Command      []string      `json:"command" yaml:"command" mapstructure:"command"`
	Stage        Stage         `json:"stage" yaml:"stage" mapstructure:"stage"`
	DependsOn    []string      `json:"depends_on,omitempty" yaml:"depends_on,omitempty" mapstructure:"depends_on"`
	Blocking     bool          `json:"blocking" yaml:"blocking" mapstructure:"blocking"`
	Critical     bool          `json:"critical" yaml:"critical" mapstructure:"critical"`
	Timeout      time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" mapstructure:"timeout"`
	FilePatterns []string      `json:"file_patterns,omitempty" yaml:"file_patterns,omitempty" mapstructure:"file_patterns"`
	Output       OutputSpec    `json:"output" yaml:"output" mapstructure:"output"`
}

// ExecutionWave is a set of checks whose dependencies are all satisfied by earlier waves
type ExecutionWave []CheckDefinition

// Names returns the check names in the wave
func (w ExecutionWave) Names() []string {
	names := make([]string, 0, len(w))
	for _, def := range w {
		names = append(names, def.Name)
	}
	return names
}

// FixerType selects how a configured fixer produces new file content
type FixerType string

const (
	FixerCommand  FixerType = "command"
	FixerPatch    FixerType = "patch"
	FixerTemplate FixerType = "template"
)

// FixerDefinition is the configuration of one fixer capability
type FixerDefinition struct {
	Name           string        `json:"name" yaml:"name" mapstructure:"name"`
	Type           FixerType     `json:"type" yaml:"type" mapstructure:"type"`
	Kinds          []IssueKind   `json:"kinds,omitempty" yaml:"kinds,omitempty" mapstructure:"kinds"`
	Confidence     float64       `json:"confidence" yaml:"confidence" mapstructure:"confidence"`
	FilePatterns   []string      `json:"file_patterns,omitempty" yaml:"file_patterns,omitempty" mapstructure:"file_patterns"`
	MessagePattern string        `json:"message_pattern,omitempty" yaml:"message_pattern,omitempty" mapstructure:"message_pattern"`
	Command        []string      `json:"command,omitempty" yaml:"command,omitempty" mapstructure:"command"`
	Template       string        `json:"template,omitempty" yaml:"template,omitempty" mapstructure:"template"`
	Target         string        `json:"target,omitempty" yaml:"target,omitempty" mapstructure:"target"`
	Validator      string        `json:"validator,omitempty" yaml:"validator,omitempty" mapstructure:"validator"`
	Timeout        time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" mapstructure:"timeout"`
}

// PolicyRule sends matching issues to human review. When is a CEL expression over `issue`.
type PolicyRule struct {
	Name string `json:"name" yaml:"name" mapstructure:"name"`
	When string `json:"when" yaml:"when" mapstructure:"when"`
}

// CheckStatus is the terminal status of a single check run
type CheckStatus string

const (
	StatusPassed  CheckStatus = "PASSED"
	StatusFailed  CheckStatus = "FAILED"
	StatusError   CheckStatus = "ERROR"
	StatusTimeout CheckStatus = "TIMEOUT"
	StatusSkipped CheckStatus = "SKIPPED"
)

// Halts reports whether a critical check with this status stops its strategy.
// A timed-out critical check does not halt.
func (s CheckStatus) Halts() bool {
	return s == StatusFailed || s == StatusError
}

// CheckResult is produced exactly once per check per run attempt
type CheckResult struct {
	CheckName  string        `json:"check_name" yaml:"check_name"`
	Strategy   string        `json:"strategy" yaml:"strategy"`
	Status     CheckStatus   `json:"status" yaml:"status"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	RawOutput  string        `json:"raw_output,omitempty" yaml:"raw_output,omitempty"`
	Issues     []Issue       `json:"issues,omitempty" yaml:"issues,omitempty"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
	SkipReason string        `json:"skip_reason,omitempty" yaml:"skip_reason,omitempty"`
}

// IssueKind classifies an issue. The set is open; unknown kinds normalize to KindUnknown.
type IssueKind string

const (
	KindFormatting    IssueKind = "FORMATTING"
	KindSecurity      IssueKind = "SECURITY"
	KindTypeError     IssueKind = "TYPE_ERROR"
	KindComplexity    IssueKind = "COMPLEXITY"
	KindTestFailure   IssueKind = "TEST_FAILURE"
	KindDeadCode      IssueKind = "DEAD_CODE"
	KindImportError   IssueKind = "IMPORT_ERROR"
	KindDependency    IssueKind = "DEPENDENCY"
	KindDocumentation IssueKind = "DOCUMENTATION"
	KindPerformance   IssueKind = "PERFORMANCE"
	KindUnknown       IssueKind = "UNKNOWN"
)

// KnownKinds lists the issue kinds mend understands natively
var KnownKinds = []IssueKind{
	KindFormatting, KindSecurity, KindTypeError, KindComplexity, KindTestFailure,
	KindDeadCode, KindImportError, KindDependency, KindDocumentation, KindPerformance,
}

// NormalizeKind upper-cases a kind and maps unrecognized values to KindUnknown
func NormalizeKind(kind IssueKind) IssueKind {
	k := IssueKind(strings.ToUpper(strings.TrimSpace(string(kind))))
	for _, known := range KnownKinds {
		if k == known {
			return k
		}
	}
	return KindUnknown
}

// Severity of an issue
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// NormalizeSeverity maps tool-specific severity names onto the four mend levels
func NormalizeSeverity(s Severity) Severity {
	switch strings.ToLower(strings.TrimSpace(string(s))) {
	case "low", "note", "info", "none":
		return SeverityLow
	case "high", "error":
		return SeverityHigh
	case "critical", "fatal":
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

// Issue is a normalized finding produced by a check
type Issue struct {
	Kind        IssueKind `json:"kind" yaml:"kind"`
	Severity    Severity  `json:"severity" yaml:"severity"`
	Message     string    `json:"message" yaml:"message"`
	FilePath    string    `json:"file_path,omitempty" yaml:"file_path,omitempty"`
	LineNumber  int       `json:"line_number,omitempty" yaml:"line_number,omitempty"`
	OriginCheck string    `json:"origin_check" yaml:"origin_check"`
}

// Key returns the structural identity of the issue used for equality and deduplication.
// Severity and origin check do not participate.
func (i Issue) Key() string {
	return fmt.Sprintf("%s|%s|%d|%s", i.Kind, i.FilePath, i.LineNumber, i.Message)
}

// Location renders file:line when available
func (i Issue) Location() string {
	switch {
	case i.FilePath == "":
		return "-"
	case i.LineNumber > 0:
		return fmt.Sprintf("%s:%d", i.FilePath, i.LineNumber)
	default:
		return i.FilePath
	}
}

// FixOutcome is the result of one fix attempt
type FixOutcome string

const (
	OutcomeSucceeded            FixOutcome = "SUCCEEDED"
	OutcomeFailed               FixOutcome = "FAILED"
	OutcomeRejectedByValidation FixOutcome = "REJECTED_BY_VALIDATION"
)

// FixAttempt records one fixer's attempt at one issue
type FixAttempt struct {
	Issue        Issue      `json:"issue" yaml:"issue"`
	FixerName    string     `json:"fixer_name" yaml:"fixer_name"`
	Confidence   float64    `json:"confidence" yaml:"confidence"`
	Outcome      FixOutcome `json:"outcome" yaml:"outcome"`
	FilesTouched []string   `json:"files_touched,omitempty" yaml:"files_touched,omitempty"`
	Tries        int        `json:"tries" yaml:"tries"`
	Error        string     `json:"error,omitempty" yaml:"error,omitempty"`
}

// BackupRecord describes a pre-modification snapshot of one file
type BackupRecord struct {
	OriginalPath string      `json:"original_path" yaml:"original_path"`
	BackupPath   string      `json:"backup_path" yaml:"backup_path"`
	ContentHash  string      `json:"content_hash" yaml:"content_hash"`
	CreatedAt    time.Time   `json:"created_at" yaml:"created_at"`
	Existed      bool        `json:"existed" yaml:"existed"`
	Mode         os.FileMode `json:"mode" yaml:"mode"`
}

// LoopStatus is the state of the remediation loop
type LoopStatus string

const (
	LoopRunning   LoopStatus = "RUNNING"
	LoopConverged LoopStatus = "CONVERGED"
	LoopExhausted LoopStatus = "EXHAUSTED"
	LoopStalled   LoopStatus = "STALLED"
)

// UnknownCount marks a PreviousIssueCount that has not been measured yet
const UnknownCount = -1

// IterationState tracks one remediation loop run
type IterationState struct {
	IterationNumber     int `json:"iteration_number" yaml:"iteration_number"`
	RemainingIssueCount int `json:"remaining_issue_count" yaml:"remaining_issue_count"`
	PreviousIssueCount  int `json:"previous_issue_count" yaml:"previous_issue_count"`
	MaxIterations       int `json:"max_iterations" yaml:"max_iterations"`

	// Issue movement against the previous pass
	Resolved   int `json:"resolved" yaml:"resolved"`
	Introduced int `json:"introduced" yaml:"introduced"`
	Unchanged  int `json:"unchanged" yaml:"unchanged"`
}

// Status evaluates the terminal conditions in priority order:
// converged, then stalled, then exhausted.
func (s IterationState) Status() LoopStatus {
	if s.RemainingIssueCount == 0 {
		return LoopConverged
	}
	if s.PreviousIssueCount != UnknownCount && s.RemainingIssueCount >= s.PreviousIssueCount {
		return LoopStalled
	}
	if s.IterationNumber >= s.MaxIterations {
		return LoopExhausted
	}
	return LoopRunning
}

// Terminal reports whether the loop must stop
func (s IterationState) Terminal() bool {
	return s.Status() != LoopRunning
}
