// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"context"

	"github.com/kusari-oss/mend/internal/check"
	"github.com/kusari-oss/mend/internal/core/models"
	"github.com/kusari-oss/mend/internal/fixer"
	"github.com/stretchr/testify/mock"
)

// MockAdapter is a testify mock of check.Adapter
type MockAdapter struct {
	mock.Mock
}

// Run mocks the Run method
func (m *MockAdapter) Run(ctx context.Context, def models.CheckDefinition, files []string) (*check.Output, error) {
	args := m.Called(ctx, def, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*check.Output), args.Error(1)
}

// MockRunner is a testify mock of scheduler.CheckRunner
type MockRunner struct {
	mock.Mock
}

// Run mocks the Run method
func (m *MockRunner) Run(ctx context.Context, def models.CheckDefinition) (*check.Output, error) {
	args := m.Called(ctx, def)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*check.Output), args.Error(1)
}

// MockCapability provides a mock implementation of fixer.Capability.
// Without expectations it behaves like a fixer that never applies.
type MockCapability struct {
	mock.Mock
	FixerName string
}

// Name returns the fixer name
func (m *MockCapability) Name() string {
	return m.FixerName
}

// Score mocks the Score method
func (m *MockCapability) Score(issue models.Issue) float64 {
	if len(m.ExpectedCalls) == 0 {
		return 0
	}
	args := m.Called(issue)
	return args.Get(0).(float64)
}

// ProposeFix mocks the ProposeFix method
func (m *MockCapability) ProposeFix(ctx context.Context, issue models.Issue) (*fixer.Proposal, error) {
	args := m.Called(ctx, issue)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fixer.Proposal), args.Error(1)
}

// NewMockCapability creates a named mock capability
func NewMockCapability(name string) *MockCapability {
	return &MockCapability{FixerName: name}
}
