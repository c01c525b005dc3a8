// SPDX-License-Identifier: Apache-2.0

package fixer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/kusari-oss/mend/internal/core/executor"
	"github.com/kusari-oss/mend/internal/core/models"
	"github.com/kusari-oss/mend/internal/core/schema"
	"github.com/kusari-oss/mend/internal/core/template"
	"github.com/kusari-oss/mend/internal/core/workspace"
	"github.com/kusari-oss/mend/internal/modifier"
	"go.uber.org/zap"
)

// DefaultTimeout bounds fixer commands that do not declare a timeout
const DefaultTimeout = 2 * time.Minute

// configured holds what every configuration driven fixer shares: matching, scoring,
// validator selection and command execution
type configured struct {
	def     models.FixerDefinition
	root    string
	kinds   map[models.IssueKind]bool
	files   *workspace.Matcher
	message *regexp.Regexp
	logger  *zap.Logger
}

func newConfigured(def models.FixerDefinition, ctx FactoryContext) (configured, error) {
	c := configured{
		def:    def,
		root:   ctx.Root,
		kinds:  make(map[models.IssueKind]bool, len(def.Kinds)),
		files:  workspace.NewMatcher(def.FilePatterns),
		logger: ctx.Logger.With(zap.String("fixer", def.Name)),
	}
	for _, kind := range def.Kinds {
		c.kinds[models.NormalizeKind(kind)] = true
	}
	if def.MessagePattern != "" {
		re, err := regexp.Compile(def.MessagePattern)
		if err != nil {
			return configured{}, fmt.Errorf("fixer %s: invalid message_pattern: %w", def.Name, err)
		}
		c.message = re
	}
	if def.Validator != "" {
		// Fail at startup on unknown validators rather than on the first proposal
		if _, err := schema.ValidatorFor(def.Validator, "", ctx.Root); err != nil {
			return configured{}, fmt.Errorf("fixer %s: %w", def.Name, err)
		}
	}
	return c, nil
}

// Name returns the configured fixer name
func (c *configured) Name() string {
	return c.def.Name
}

// matches reports whether the issue falls within the fixer's kinds, files and messages
func (c *configured) matches(issue models.Issue) bool {
	if len(c.kinds) > 0 && !c.kinds[models.NormalizeKind(issue.Kind)] {
		return false
	}
	if !c.files.Empty() && (issue.FilePath == "" || !c.files.Match(issue.FilePath)) {
		return false
	}
	if c.message != nil && !c.message.MatchString(issue.Message) {
		return false
	}
	return true
}

// score returns the configured confidence for matching issues
func (c *configured) score(issue models.Issue) float64 {
	if !c.matches(issue) {
		return 0
	}
	return c.def.Confidence
}

// validator resolves the content validator for the target file
func (c *configured) validator(path string) (modifier.Validator, error) {
	v, err := schema.ValidatorFor(c.def.Validator, path, c.root)
	if err != nil {
		return nil, err
	}
	return modifier.Validator(v), nil
}

// abs resolves a project relative path
func (c *configured) abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.root, path)
}

// params is the template data available to commands, targets and templates
func (c *configured) params(issue models.Issue) map[string]interface{} {
	return map[string]interface{}{
		"Root":    c.root,
		"Project": filepath.Base(c.root),
		"File":    issue.FilePath,
		"Fixer":   c.def.Name,
		"Issue": map[string]interface{}{
			"Kind":        string(issue.Kind),
			"Severity":    string(issue.Severity),
			"Message":     issue.Message,
			"FilePath":    issue.FilePath,
			"LineNumber":  issue.LineNumber,
			"OriginCheck": issue.OriginCheck,
		},
	}
}

// run renders and executes the fixer command. A non-zero exit is an error.
func (c *configured) run(ctx context.Context, issue models.Issue, stdin []byte) (*executor.CommandResult, error) {
	argv, err := template.RenderArgs(c.def.Command, c.params(issue))
	if err != nil {
		return nil, fmt.Errorf("error rendering command: %w", err)
	}

	cmd, err := executor.NewCommandExecutor(argv)
	if err != nil {
		return nil, err
	}
	cmd.WithWorkingDir(c.root).WithLogger(c.logger)
	if stdin != nil {
		cmd.WithStdin(stdin)
	}

	timeout := c.def.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := cmd.Execute(cctx)
	if err != nil {
		return nil, err
	}
	if result.ExitStatus != 0 {
		return nil, fmt.Errorf("%s exited with status %d: %s", cmd, result.ExitStatus, tail(result.Stderr))
	}
	return result, nil
}

// readTarget reads the file an issue points at
func (c *configured) readTarget(issue models.Issue) (string, []byte, error) {
	if issue.FilePath == "" {
		return "", nil, fmt.Errorf("issue has no file path")
	}
	path := c.abs(issue.FilePath)
	content, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("error reading %s: %w", issue.FilePath, err)
	}
	return path, content, nil
}

func tail(b []byte) string {
	const limit = 512
	if len(b) > limit {
		b = b[len(b)-limit:]
	}
	return string(b)
}
