// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"

	"github.com/kusari-oss/mend/internal/core/models"
	"github.com/kusari-oss/mend/internal/core/workspace"
)

// Options configures a Classifier
type Options struct {
	// Allow limits auto-fixing to matching paths when non-empty
	Allow []string
	// Deny sends issues on matching paths to review
	Deny        []string
	ReviewKinds []models.IssueKind
	Rules       []models.PolicyRule
}

// Decision is the classification of one issue
type Decision struct {
	AutoFix bool
	Reason  string
}

// Classifier decides whether an issue may be fixed automatically or needs review.
// Everything is compiled once; Classify is a pure function of the issue.
type Classifier struct {
	allow       *workspace.Matcher
	deny        *workspace.Matcher
	reviewKinds map[models.IssueKind]bool
	rules       []*Rule
}

// NewClassifier compiles the policy
func NewClassifier(opts Options) (*Classifier, error) {
	c := &Classifier{
		allow:       workspace.NewMatcher(opts.Allow),
		deny:        workspace.NewMatcher(opts.Deny),
		reviewKinds: make(map[models.IssueKind]bool, len(opts.ReviewKinds)),
	}
	for _, kind := range opts.ReviewKinds {
		c.reviewKinds[models.NormalizeKind(kind)] = true
	}

	if len(opts.Rules) > 0 {
		compiler, err := NewRuleCompiler()
		if err != nil {
			return nil, err
		}
		for _, rule := range opts.Rules {
			compiled, err := compiler.Compile(rule)
			if err != nil {
				return nil, err
			}
			c.rules = append(c.rules, compiled)
		}
	}

	return c, nil
}

// Classify returns the decision for one issue
func (c *Classifier) Classify(issue models.Issue) Decision {
	if issue.FilePath != "" {
		if !c.deny.Empty() && c.deny.Match(issue.FilePath) {
			return Decision{Reason: fmt.Sprintf("path %s is denied by policy", issue.FilePath)}
		}
		if !c.allow.Empty() && !c.allow.Match(issue.FilePath) {
			return Decision{Reason: fmt.Sprintf("path %s is not in the allow list", issue.FilePath)}
		}
	}

	if c.reviewKinds[issue.Kind] {
		return Decision{Reason: fmt.Sprintf("%s issues require review", issue.Kind)}
	}

	for _, rule := range c.rules {
		matched, err := rule.Matches(issue)
		if err != nil {
			return Decision{Reason: err.Error()}
		}
		if matched {
			return Decision{Reason: fmt.Sprintf("matched review rule %s", rule.Name)}
		}
	}

	return Decision{AutoFix: true}
}

// Partition splits issues into auto-fixable ones and ones needing review
func (c *Classifier) Partition(issues []models.Issue) (autoFix, review []models.Issue) {
	for _, issue := range issues {
		if c.Classify(issue).AutoFix {
			autoFix = append(autoFix, issue)
		} else {
			review = append(review, issue)
		}
	}
	return autoFix, review
}
