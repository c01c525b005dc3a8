// SPDX-License-Identifier: Apache-2.0

package graph_test

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/kusari-oss/mend/internal/core/models"
	"github.com/kusari-oss/mend/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func def(name string, deps ...string) models.CheckDefinition {
	return models.CheckDefinition{Name: name, DependsOn: deps}
}

func waveIndex(waves []models.ExecutionWave) map[string]int {
	index := make(map[string]int)
	for i, wave := range waves {
		for _, d := range wave {
			index[d.Name] = i
		}
	}
	return index
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		defs     []models.CheckDefinition
		expected [][]string
	}{
		{
			name:     "empty set",
			defs:     nil,
			expected: nil,
		},
		{
			name:     "independent checks share one wave",
			defs:     []models.CheckDefinition{def("vet"), def("gofmt"), def("lint")},
			expected: [][]string{{"gofmt", "lint", "vet"}},
		},
		{
			name: "chain",
			defs: []models.CheckDefinition{def("test", "build"), def("build", "fmt"), def("fmt")},
			expected: [][]string{
				{"fmt"},
				{"build"},
				{"test"},
			},
		},
		{
			name: "diamond",
			defs: []models.CheckDefinition{
				def("report", "lint", "typecheck"),
				def("lint", "format"),
				def("typecheck", "format"),
				def("format"),
			},
			expected: [][]string{
				{"format"},
				{"lint", "typecheck"},
				{"report"},
			},
		},
		{
			name:     "duplicate dependency entries count once",
			defs:     []models.CheckDefinition{def("a"), def("b", "a", "a")},
			expected: [][]string{{"a"}, {"b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			waves, err := graph.Resolve(tt.defs)
			require.NoError(t, err)

			var names [][]string
			for _, wave := range waves {
				names = append(names, wave.Names())
			}
			assert.Equal(t, tt.expected, names)
		})
	}
}

func TestResolveCycles(t *testing.T) {
	t.Run("two node cycle", func(t *testing.T) {
		_, err := graph.Resolve([]models.CheckDefinition{def("a", "b"), def("b", "a"), def("c")})
		require.Error(t, err)

		var cycleErr *graph.DependencyCycleError
		require.True(t, errors.As(err, &cycleErr))
		assert.Equal(t, []string{"a", "b"}, cycleErr.Members)
		assert.Equal(t, []string{"a", "b", "a"}, cycleErr.Path)
		assert.Contains(t, err.Error(), "a -> b -> a")
	})

	t.Run("self dependency", func(t *testing.T) {
		_, err := graph.Resolve([]models.CheckDefinition{def("a", "a")})
		var cycleErr *graph.DependencyCycleError
		require.True(t, errors.As(err, &cycleErr))
		assert.Equal(t, []string{"a"}, cycleErr.Members)
	})

	t.Run("cycle with downstream checks", func(t *testing.T) {
		_, err := graph.Resolve([]models.CheckDefinition{
			def("root"),
			def("x", "root", "z"),
			def("y", "x"),
			def("z", "y"),
			def("after", "z"),
		})
		var cycleErr *graph.DependencyCycleError
		require.True(t, errors.As(err, &cycleErr))
		assert.Equal(t, []string{"after", "x", "y", "z"}, cycleErr.Members)
		assert.Equal(t, []string{"z", "y", "x", "z"}, cycleErr.Path)
	})
}

func TestResolveUnknownAndDuplicate(t *testing.T) {
	_, err := graph.Resolve([]models.CheckDefinition{def("a", "missing")})
	var unknown *graph.UnknownDependencyError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "missing", unknown.Dependency)

	_, err = graph.Resolve([]models.CheckDefinition{def("a"), def("a")})
	var dup *graph.DuplicateCheckError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "a", dup.Name)
}

func TestResolveWithExternal(t *testing.T) {
	external := map[string]models.CheckStatus{"build": models.StatusPassed}
	waves, err := graph.ResolveWithExternal([]models.CheckDefinition{
		def("test", "build"),
		def("report", "test"),
	}, external)
	require.NoError(t, err)
	require.Len(t, waves, 2)
	assert.Equal(t, []string{"test"}, waves[0].Names())
	// DependsOn is preserved so the executor can still apply blocking rules
	assert.Equal(t, []string{"build"}, waves[0][0].DependsOn)
}

// Property: for random acyclic sets every check lands in exactly one wave, after all of
// its dependencies.
func TestResolveRandomAcyclic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		n := 1 + rng.Intn(25)
		defs := make([]models.CheckDefinition, n)
		for i := 0; i < n; i++ {
			defs[i].Name = fmt.Sprintf("check-%02d", i)
			for j := 0; j < i; j++ {
				if rng.Float64() < 0.2 {
					defs[i].DependsOn = append(defs[i].DependsOn, defs[j].Name)
				}
			}
		}
		rng.Shuffle(len(defs), func(i, j int) { defs[i], defs[j] = defs[j], defs[i] })

		waves, err := graph.Resolve(defs)
		require.NoError(t, err)

		count := 0
		for _, wave := range waves {
			count += len(wave)
		}
		assert.Equal(t, n, count, "every check appears exactly once")

		index := waveIndex(waves)
		require.Len(t, index, n)
		for _, d := range defs {
			for _, dep := range d.DependsOn {
				assert.Greater(t, index[d.Name], index[dep], "%s must run after %s", d.Name, dep)
			}
		}
	}
}

// Property: closing any random DAG with a back edge yields a cycle error, never a hang.
func TestResolveRandomCyclic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 30; round++ {
		n := 2 + rng.Intn(15)
		defs := make([]models.CheckDefinition, n)
		for i := 0; i < n; i++ {
			defs[i].Name = fmt.Sprintf("c%d", i)
			if i > 0 {
				defs[i].DependsOn = []string{defs[i-1].Name}
			}
		}
		back := rng.Intn(n)
		defs[0].DependsOn = append(defs[0].DependsOn, defs[back].Name)

		_, err := graph.Resolve(defs)
		var cycleErr *graph.DependencyCycleError
		require.True(t, errors.As(err, &cycleErr), "round %d", round)
		assert.NotEmpty(t, cycleErr.Members)
	}
}

func TestSubset(t *testing.T) {
	defs := []models.CheckDefinition{
		def("format"),
		def("lint", "format"),
		def("typecheck"),
		def("test", "typecheck"),
		def("report", "lint", "test"),
	}

	subset := graph.Subset(defs, []string{"typecheck"})
	var names []string
	for _, d := range subset {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"typecheck", "test", "report"}, names)

	waves, err := graph.ResolveWithExternal(subset, map[string]models.CheckStatus{
		"lint": models.StatusPassed,
	})
	require.NoError(t, err)
	require.Len(t, waves, 3)
	assert.Equal(t, []string{"report"}, waves[2].Names())

	assert.Empty(t, graph.Subset(defs, nil))
}
