// SPDX-License-Identifier: Apache-2.0

package fixer

import (
	"fmt"

	"github.com/kusari-oss/mend/internal/core/models"
	"go.uber.org/zap"
)

// Creator builds a capability from its configuration
type Creator func(models.FixerDefinition, FactoryContext) (Capability, error)

// FactoryContext provides what fixers need from their environment
type FactoryContext struct {
	Root         string
	TemplatesDir string
	Logger       *zap.Logger
}

// Factory creates fixers of different types
type Factory struct {
	creators map[models.FixerType]Creator
	context  FactoryContext
}

// NewFactory creates a new fixer factory with the given context
func NewFactory(context FactoryContext) *Factory {
	if context.Logger == nil {
		context.Logger = zap.NewNop()
	}
	return &Factory{
		creators: make(map[models.FixerType]Creator),
		context:  context,
	}
}

// Register registers a new fixer type creator
func (f *Factory) Register(fixerType models.FixerType, creator Creator) {
	f.creators[fixerType] = creator
}

// Create creates a fixer of the configured type
func (f *Factory) Create(def models.FixerDefinition) (Capability, error) {
	creator, ok := f.creators[def.Type]
	if !ok {
		return nil, fmt.Errorf("unknown fixer type: %s", def.Type)
	}
	return creator(def, f.context)
}

// RegisterDefaultTypes registers the command, patch and template fixer types
func (f *Factory) RegisterDefaultTypes() {
	f.Register(models.FixerCommand, func(def models.FixerDefinition, ctx FactoryContext) (Capability, error) {
		if len(def.Command) == 0 {
			return nil, fmt.Errorf("command is required for command fixers")
		}
		base, err := newConfigured(def, ctx)
		if err != nil {
			return nil, err
		}
		return &CommandFixer{configured: base}, nil
	})

	f.Register(models.FixerPatch, func(def models.FixerDefinition, ctx FactoryContext) (Capability, error) {
		if len(def.Command) == 0 {
			return nil, fmt.Errorf("command is required for patch fixers")
		}
		base, err := newConfigured(def, ctx)
		if err != nil {
			return nil, err
		}
		return &PatchFixer{configured: base}, nil
	})

	f.Register(models.FixerTemplate, func(def models.FixerDefinition, ctx FactoryContext) (Capability, error) {
		if def.Template == "" {
			return nil, fmt.Errorf("template is required for template fixers")
		}
		templatePath, err := findTemplate(def.Template, ctx)
		if err != nil {
			return nil, err
		}
		base, err := newConfigured(def, ctx)
		if err != nil {
			return nil, err
		}
		return &TemplateFixer{configured: base, templatePath: templatePath}, nil
	})
}

// BuildTable creates every configured fixer and freezes them into a table
func (f *Factory) BuildTable(defs []models.FixerDefinition) (*Table, error) {
	builder := NewTableBuilder()
	for _, def := range defs {
		capability, err := f.Create(def)
		if err != nil {
			return nil, fmt.Errorf("error creating fixer %s: %w", def.Name, err)
		}
		builder.Register(capability, def.Kinds...)
	}
	return builder.Build()
}
