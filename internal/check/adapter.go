// SPDX-License-Identifier: Apache-2.0

package check

import (
	"context"
	"fmt"
	"strings"

	"github.com/kusari-oss/mend/internal/core/executor"
	"github.com/kusari-oss/mend/internal/core/models"
	"github.com/kusari-oss/mend/internal/core/template"
	"github.com/kusari-oss/mend/internal/core/workspace"
	"go.uber.org/zap"
)

// Output is what one check run produced
type Output struct {
	Raw      []byte
	Issues   []models.Issue
	Failed   bool
	ExitCode int
}

// Adapter runs one check against a set of files
type Adapter interface {
	Run(ctx context.Context, def models.CheckDefinition, files []string) (*Output, error)
}

// CommandAdapter runs a check's command line and parses its output with the parser
// registered for the check's output format
type CommandAdapter struct {
	root    string
	parsers ParserTable
	env     []string
	logger  *zap.Logger
}

// NewCommandAdapter creates an adapter that runs commands in root
func NewCommandAdapter(root string, parsers ParserTable, logger *zap.Logger) *CommandAdapter {
	if parsers == nil {
		parsers = DefaultParsers()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandAdapter{root: root, parsers: parsers, logger: logger}
}

// WithEnvironment sets the environment passed to every command
func (a *CommandAdapter) WithEnvironment(env []string) *CommandAdapter {
	a.env = env
	return a
}

// Supports reports whether the adapter has a parser for the check's output format
func (a *CommandAdapter) Supports(def models.CheckDefinition) error {
	_, err := a.parsers.Lookup(def.Output.Format)
	return err
}

// Run renders the command with {Root, Files, Check}, runs it in the project root and
// parses the output. A non-zero exit with no parsed issues still marks the run failed.
func (a *CommandAdapter) Run(ctx context.Context, def models.CheckDefinition, files []string) (*Output, error) {
	parser, err := a.parsers.Lookup(def.Output.Format)
	if err != nil {
		return nil, err
	}

	if files == nil {
		files = []string{}
	}
	argv, err := template.RenderArgs(def.Command, map[string]interface{}{
		"Root":  a.root,
		"Files": files,
		"Check": def.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("error rendering command for %s: %w", def.Name, err)
	}

	cmd, err := executor.NewCommandExecutor(argv)
	if err != nil {
		return nil, fmt.Errorf("error preparing command for %s: %w", def.Name, err)
	}
	cmd.WithWorkingDir(a.root).WithEnvironment(a.env).WithLogger(a.logger)

	result, err := cmd.Execute(ctx)
	if err != nil {
		return nil, err
	}

	issues, err := parser(ParseInput{
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
		ExitCode: result.ExitStatus,
		Spec:     def.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("error parsing output of %s: %w", def.Name, err)
	}

	for i := range issues {
		issues[i] = a.normalize(issues[i], def)
	}

	a.logger.Debug("check command finished",
		zap.String("check", def.Name),
		zap.Int("exit_code", result.ExitStatus),
		zap.Int("issues", len(issues)),
		zap.Duration("duration", result.Duration))

	return &Output{
		Raw:      result.Combined(),
		Issues:   issues,
		Failed:   result.ExitStatus != 0 || len(issues) > 0,
		ExitCode: result.ExitStatus,
	}, nil
}

// normalize fills defaults from the output spec and makes paths project relative
func (a *CommandAdapter) normalize(issue models.Issue, def models.CheckDefinition) models.Issue {
	if issue.Kind == "" {
		issue.Kind = def.Output.Kind
	}
	issue.Kind = models.NormalizeKind(issue.Kind)

	if issue.Severity == "" {
		issue.Severity = def.Output.Severity
	}
	issue.Severity = models.NormalizeSeverity(issue.Severity)

	issue.FilePath = workspace.Relative(a.root, issue.FilePath)
	issue.Message = strings.TrimSpace(issue.Message)
	if issue.OriginCheck == "" {
		issue.OriginCheck = def.Name
	}
	return issue
}
