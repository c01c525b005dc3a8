// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kusari-oss/mend/internal/core/models"
)

// DependencyCycleError is returned when the check set contains a dependency cycle.
// Members lists every check that could not be scheduled; Path is one concrete cycle.
type DependencyCycleError struct {
	Members []string
	Path    []string
}

func (e *DependencyCycleError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Path, " -> "))
	}
	return fmt.Sprintf("circular dependency detected among checks: %s", strings.Join(e.Members, ", "))
}

// UnknownDependencyError is returned when a check depends on a name outside its set
type UnknownDependencyError struct {
	Check      string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("check '%s' depends on non-existent check '%s'", e.Check, e.Dependency)
}

// DuplicateCheckError is returned when two checks share a name
type DuplicateCheckError struct {
	Name string
}

func (e *DuplicateCheckError) Error() string {
	return fmt.Sprintf("duplicate check name: %s", e.Name)
}

// node is the index-addressed view of one check used by Resolve
type node struct {
	def        models.CheckDefinition
	inDegree   int
	dependents []int
}

// Resolve orders the checks into execution waves using Kahn's algorithm.
// Every wave only depends on checks in strictly earlier waves.
func Resolve(defs []models.CheckDefinition) ([]models.ExecutionWave, error) {
	return ResolveWithExternal(defs, nil)
}

// ResolveWithExternal is Resolve for a partial check set. Dependencies named in external
// already ran in an earlier pass; they add no edges and are not reported as unknown.
func ResolveWithExternal(defs []models.CheckDefinition, external map[string]models.CheckStatus) ([]models.ExecutionWave, error) {
	nodes, err := buildNodes(defs, external)
	if err != nil {
		return nil, err
	}

	var ready []int
	for i := range nodes {
		if nodes[i].inDegree == 0 {
			ready = append(ready, i)
		}
	}

	var waves []models.ExecutionWave
	scheduled := 0
	for len(ready) > 0 {
		sort.Slice(ready, func(a, b int) bool {
			return nodes[ready[a]].def.Name < nodes[ready[b]].def.Name
		})

		wave := make(models.ExecutionWave, 0, len(ready))
		var next []int
		for _, idx := range ready {
			wave = append(wave, nodes[idx].def)
			for _, dep := range nodes[idx].dependents {
				nodes[dep].inDegree--
				if nodes[dep].inDegree == 0 {
					next = append(next, dep)
				}
			}
		}

		waves = append(waves, wave)
		scheduled += len(wave)
		ready = next
	}

	if scheduled < len(nodes) {
		return nil, cycleError(nodes)
	}

	return waves, nil
}

// buildNodes validates names and dependencies and builds the adjacency structure
func buildNodes(defs []models.CheckDefinition, external map[string]models.CheckStatus) ([]node, error) {
	index := make(map[string]int, len(defs))
	nodes := make([]node, len(defs))
	for i, def := range defs {
		if _, exists := index[def.Name]; exists {
			return nil, &DuplicateCheckError{Name: def.Name}
		}
		index[def.Name] = i
		nodes[i].def = def
	}

	for i, def := range defs {
		seen := make(map[string]bool, len(def.DependsOn))
		for _, depName := range def.DependsOn {
			if seen[depName] {
				continue
			}
			seen[depName] = true

			if depName == def.Name {
				return nil, &DependencyCycleError{Members: []string{def.Name}, Path: []string{def.Name, def.Name}}
			}
			dep, exists := index[depName]
			if !exists {
				if _, ran := external[depName]; ran {
					continue
				}
				return nil, &UnknownDependencyError{Check: def.Name, Dependency: depName}
			}
			nodes[i].inDegree++
			nodes[dep].dependents = append(nodes[dep].dependents, i)
		}
	}

	return nodes, nil
}

// cycleError describes the checks left over after Kahn's algorithm stalls
func cycleError(nodes []node) error {
	remaining := make(map[string]models.CheckDefinition)
	var members []string
	for _, n := range nodes {
		if n.inDegree > 0 {
			remaining[n.def.Name] = n.def
			members = append(members, n.def.Name)
		}
	}
	sort.Strings(members)

	return &DependencyCycleError{
		Members: members,
		Path:    findCyclePath(members, remaining),
	}
}

// findCyclePath walks the unscheduled checks depth first and returns the first cycle found
func findCyclePath(members []string, graph map[string]models.CheckDefinition) []string {
	visited := make(map[string]bool)
	onPath := make(map[string]int)
	var stack []string

	var visit func(name string) []string
	visit = func(name string) []string {
		if pos, ok := onPath[name]; ok {
			cycle := append([]string{}, stack[pos:]...)
			return append(cycle, name)
		}
		if visited[name] {
			return nil
		}
		visited[name] = true
		onPath[name] = len(stack)
		stack = append(stack, name)

		deps := append([]string{}, graph[name].DependsOn...)
		sort.Strings(deps)
		for _, dep := range deps {
			if _, inRemainder := graph[dep]; !inRemainder {
				continue
			}
			if cycle := visit(dep); cycle != nil {
				return cycle
			}
		}

		stack = stack[:len(stack)-1]
		delete(onPath, name)
		return nil
	}

	for _, name := range members {
		if cycle := visit(name); cycle != nil {
			return cycle
		}
	}
	return nil
}

// Subset returns the checks named in roots plus every check that transitively depends
// on them, in their original order. DependsOn is left intact; dependencies outside the
// subset are resolved with ResolveWithExternal.
func Subset(defs []models.CheckDefinition, roots []string) []models.CheckDefinition {
	dependents := make(map[string][]string)
	for _, def := range defs {
		for _, dep := range def.DependsOn {
			dependents[dep] = append(dependents[dep], def.Name)
		}
	}

	selected := make(map[string]bool)
	queue := append([]string{}, roots...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if selected[name] {
			continue
		}
		selected[name] = true
		queue = append(queue, dependents[name]...)
	}

	var subset []models.CheckDefinition
	for _, def := range defs {
		if selected[def.Name] {
			subset = append(subset, def)
		}
	}
	return subset
}
