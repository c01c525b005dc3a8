// SPDX-License-Identifier: Apache-2.0

package fixer

import (
	"fmt"
	"sort"

	"github.com/kusari-oss/mend/internal/core/models"
)

// TableBuilder collects capabilities before the table is frozen
type TableBuilder struct {
	byKind   map[models.IssueKind][]Capability
	wildcard []Capability
	names    map[string]bool
	err      error
}

// NewTableBuilder creates an empty builder
func NewTableBuilder() *TableBuilder {
	return &TableBuilder{
		byKind: make(map[models.IssueKind][]Capability),
		names:  make(map[string]bool),
	}
}

// Register adds a capability for the given kinds. Without kinds the capability is
// consulted for every issue. Registration order is kept.
func (b *TableBuilder) Register(capability Capability, kinds ...models.IssueKind) *TableBuilder {
	if b.err != nil {
		return b
	}
	name := capability.Name()
	if b.names[name] {
		b.err = fmt.Errorf("duplicate fixer name: %s", name)
		return b
	}
	b.names[name] = true

	if len(kinds) == 0 {
		b.wildcard = append(b.wildcard, capability)
		return b
	}
	for _, kind := range kinds {
		kind = models.NormalizeKind(kind)
		b.byKind[kind] = append(b.byKind[kind], capability)
	}
	return b
}

// Build freezes the registrations into a Table
func (b *TableBuilder) Build() (*Table, error) {
	if b.err != nil {
		return nil, b.err
	}
	t := &Table{
		byKind:   make(map[models.IssueKind][]Capability, len(b.byKind)),
		wildcard: append([]Capability(nil), b.wildcard...),
	}
	for kind, caps := range b.byKind {
		t.byKind[kind] = append([]Capability(nil), caps...)
	}
	for name := range b.names {
		t.names = append(t.names, name)
	}
	sort.Strings(t.names)
	return t, nil
}

// Table maps issue kinds to the capabilities that may fix them. It is immutable.
type Table struct {
	byKind   map[models.IssueKind][]Capability
	wildcard []Capability
	names    []string
}

// Candidates returns the capabilities registered for kind followed by the wildcard ones
func (t *Table) Candidates(kind models.IssueKind) []Capability {
	specific := t.byKind[models.NormalizeKind(kind)]
	out := make([]Capability, 0, len(specific)+len(t.wildcard))
	out = append(out, specific...)
	return append(out, t.wildcard...)
}

// Names returns every registered fixer name, sorted
func (t *Table) Names() []string {
	return append([]string(nil), t.names...)
}

// Len returns the number of registered fixers
func (t *Table) Len() int {
	return len(t.names)
}
