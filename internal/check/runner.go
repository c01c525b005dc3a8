// SPDX-License-Identifier: Apache-2.0

package check

import (
	"context"
	"sync"

	"github.com/kusari-oss/mend/internal/core/models"
	"github.com/kusari-oss/mend/internal/core/workspace"
)

// Runner feeds each check the project files matching its file patterns. The file list
// is a snapshot taken by Refresh so every check of one pass sees the same tree.
type Runner struct {
	adapter Adapter
	root    string
	skip    []string

	mu    sync.RWMutex
	files []string
}

// NewRunner creates a runner over the files under root. Directories in skip are ignored.
func NewRunner(adapter Adapter, root string, skip ...string) *Runner {
	return &Runner{adapter: adapter, root: root, skip: skip}
}

// Refresh re-lists the project files
func (r *Runner) Refresh() error {
	files, err := workspace.ListFiles(r.root, r.skip...)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.files = files
	r.mu.Unlock()
	return nil
}

// Files returns the current snapshot
func (r *Runner) Files() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.files...)
}

// Run runs one check against the snapshot files that match its patterns
func (r *Runner) Run(ctx context.Context, def models.CheckDefinition) (*Output, error) {
	files := workspace.NewMatcher(def.FilePatterns).Filter(r.Files())
	return r.adapter.Run(ctx, def, files)
}
