// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// Matcher matches slash-separated relative paths against gitignore-style patterns.
// A matcher without patterns matches every path.
type Matcher struct {
	patterns []string
	compiled *ignore.GitIgnore
}

// NewMatcher compiles the patterns once
func NewMatcher(patterns []string) *Matcher {
	m := &Matcher{patterns: patterns}
	if len(patterns) > 0 {
		m.compiled = ignore.CompileIgnoreLines(patterns...)
	}
	return m
}

// Empty reports whether the matcher was built without patterns
func (m *Matcher) Empty() bool {
	return m.compiled == nil
}

// Match reports whether the path matches. Paths are compared in slash form.
func (m *Matcher) Match(p string) bool {
	if m.compiled == nil {
		return true
	}
	return m.compiled.MatchesPath(Normalize(p))
}

// MatchAny reports whether any of the paths matches
func (m *Matcher) MatchAny(paths []string) bool {
	for _, p := range paths {
		if m.Match(p) {
			return true
		}
	}
	return false
}

// Filter returns the paths that match, in input order
func (m *Matcher) Filter(paths []string) []string {
	var matched []string
	for _, p := range paths {
		if m.Match(p) {
			matched = append(matched, p)
		}
	}
	return matched
}

// Normalize cleans a path and converts it to slash form. The empty path stays empty.
func Normalize(p string) string {
	if p == "" {
		return ""
	}
	return strings.TrimPrefix(path.Clean(filepath.ToSlash(p)), "./")
}

// Relative converts path to a normalized path relative to root when it lies inside root
func Relative(root, p string) string {
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) && root != "" {
		if rel, err := filepath.Rel(root, p); err == nil && !strings.HasPrefix(rel, "..") {
			return Normalize(rel)
		}
	}
	return Normalize(p)
}

// ListFiles walks root and returns every regular file as a sorted, slash-separated
// relative path. .git and the directories in skip (relative to root) are not descended.
func ListFiles(root string, skip ...string) ([]string, error) {
	skipped := map[string]bool{".git": true}
	for _, s := range skip {
		skipped[Relative(root, s)] = true
	}

	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := Relative(root, p)
		if d.IsDir() {
			if rel != "." && skipped[rel] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}
