// SPDX-License-Identifier: Apache-2.0

package fixer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kusari-oss/mend/internal/core/models"
	"github.com/kusari-oss/mend/internal/core/template"
)

// TemplateFixer renders a template into a file, e.g. to create a missing SECURITY.md
type TemplateFixer struct {
	configured
	templatePath string
}

// Score returns the configured confidence for matching issues. Without a target the
// issue must carry a file path.
func (f *TemplateFixer) Score(issue models.Issue) float64 {
	if f.def.Target == "" && issue.FilePath == "" {
		return 0
	}
	return f.score(issue)
}

// ProposeFix renders the template for the issue's target file
func (f *TemplateFixer) ProposeFix(ctx context.Context, issue models.Issue) (*Proposal, error) {
	params := f.params(issue)

	target := issue.FilePath
	if f.def.Target != "" {
		rendered, err := template.ProcessString(f.def.Target, params)
		if err != nil {
			return nil, fmt.Errorf("error processing target path: %w", err)
		}
		target = strings.TrimSpace(string(rendered))
	}
	if target == "" {
		return nil, fmt.Errorf("fixer %s has no target for issue", f.def.Name)
	}
	path := f.abs(target)
	params["Target"] = target

	content, err := template.ProcessFile(f.templatePath, params)
	if err != nil {
		return nil, err
	}

	validate, err := f.validator(path)
	if err != nil {
		return nil, err
	}
	return &Proposal{FilePath: path, Content: content, Validator: validate}, nil
}

// findTemplate looks for a relative template in the templates directory first and then
// in the project root
func findTemplate(name string, ctx FactoryContext) (string, error) {
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err != nil {
			return "", fmt.Errorf("template not found: %s", name)
		}
		return name, nil
	}

	var searched []string
	for _, dir := range []string{ctx.TemplatesDir, ctx.Root} {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		searched = append(searched, candidate)
	}
	return "", fmt.Errorf("template %s not found (searched %s)", name, strings.Join(searched, ", "))
}
