// SPDX-License-Identifier: Apache-2.0

package fixer

import (
	"context"

	"github.com/kusari-oss/mend/internal/core/models"
)

// CommandFixer pipes a file through a command and takes its stdout as the new content,
// the way gofmt or `black -` work
type CommandFixer struct {
	configured
}

// Score returns the configured confidence for issues on matching files
func (f *CommandFixer) Score(issue models.Issue) float64 {
	if issue.FilePath == "" {
		return 0
	}
	return f.score(issue)
}

// ProposeFix runs the command over the current file content
func (f *CommandFixer) ProposeFix(ctx context.Context, issue models.Issue) (*Proposal, error) {
	path, content, err := f.readTarget(issue)
	if err != nil {
		return nil, err
	}

	result, err := f.run(ctx, issue, content)
	if err != nil {
		return nil, err
	}

	validate, err := f.validator(path)
	if err != nil {
		return nil, err
	}
	return &Proposal{FilePath: path, Content: result.Stdout, Validator: validate}, nil
}
