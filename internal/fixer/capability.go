// SPDX-License-Identifier: Apache-2.0

package fixer

import (
	"context"

	"github.com/kusari-oss/mend/internal/core/models"
	"github.com/kusari-oss/mend/internal/modifier"
)

// Capability proposes edits for issues. Score must have no side effects.
type Capability interface {
	Name() string
	// Score returns the confidence in [0, 1] that this fixer can address the issue
	Score(issue models.Issue) float64
	ProposeFix(ctx context.Context, issue models.Issue) (*Proposal, error)
}

// Proposal is new content for one file plus a cheap check of that content
type Proposal struct {
	// FilePath is relative to the project root or absolute
	FilePath  string
	Content   []byte
	Validator modifier.Validator
}
