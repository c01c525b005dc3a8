// SPDX-License-Identifier: Apache-2.0

package fixer

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"github.com/kusari-oss/mend/internal/core/models"
	"github.com/kusari-oss/mend/internal/core/workspace"
)

// PatchFixer runs a command that prints a unified diff and applies the part of the diff
// that touches the issue's file in memory
type PatchFixer struct {
	configured
}

// Score returns the configured confidence for issues on matching files
func (f *PatchFixer) Score(issue models.Issue) float64 {
	if issue.FilePath == "" {
		return 0
	}
	return f.score(issue)
}

// ProposeFix runs the diff command and applies the resulting patch
func (f *PatchFixer) ProposeFix(ctx context.Context, issue models.Issue) (*Proposal, error) {
	path, content, err := f.readTarget(issue)
	if err != nil {
		return nil, err
	}

	result, err := f.run(ctx, issue, nil)
	if err != nil {
		return nil, err
	}

	patched, err := ApplyPatch(result.Stdout, issue.FilePath, content)
	if err != nil {
		return nil, err
	}

	validate, err := f.validator(path)
	if err != nil {
		return nil, err
	}
	return &Proposal{FilePath: path, Content: patched, Validator: validate}, nil
}

// ApplyPatch applies the file diff for target from a unified diff to content
func ApplyPatch(diff []byte, target string, content []byte) ([]byte, error) {
	files, _, err := gitdiff.Parse(bytes.NewReader(diff))
	if err != nil {
		return nil, fmt.Errorf("error parsing diff: %w", err)
	}

	target = workspace.Normalize(target)
	for _, file := range files {
		if !namesFile(file.NewName, target) && !namesFile(file.OldName, target) {
			continue
		}
		if file.IsDelete {
			return nil, fmt.Errorf("diff deletes %s", target)
		}
		if file.IsBinary {
			return nil, fmt.Errorf("diff for %s is binary", target)
		}

		var out bytes.Buffer
		if err := gitdiff.Apply(&out, bytes.NewReader(content), file); err != nil {
			return nil, fmt.Errorf("error applying diff to %s: %w", target, err)
		}
		return out.Bytes(), nil
	}

	return nil, fmt.Errorf("diff has no changes for %s", target)
}

// namesFile compares a diff file name with target, also without the a/ and b/ prefixes
// that traditional unified diffs keep
func namesFile(name, target string) bool {
	if name == "" {
		return false
	}
	if workspace.Normalize(name) == target {
		return true
	}
	for _, prefix := range []string{"a/", "b/"} {
		if strings.HasPrefix(name, prefix) && workspace.Normalize(strings.TrimPrefix(name, prefix)) == target {
			return true
		}
	}
	return false
}
