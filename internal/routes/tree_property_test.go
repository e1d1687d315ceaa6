//go:build property

package routes

import (
	"context"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestTreeProperties checks that every directory on disk is listed exactly once.
func TestTreeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	names := []string{"a", "b", "c", "blog", "post"}
	segment := gen.IntRange(0, len(names)-1).Map(func(i int) string { return names[i] })
	route := gen.SliceOfN(3, segment)

	properties.Property("every directory is listed exactly once", prop.ForAll(
		func(paths [][]string) bool {
			fs := memfs.New()
			if err := fs.MkdirAll("routes", 0o755); err != nil {
				return false
			}

			expected := map[string]bool{}
			for _, segs := range paths {
				p := RoutePath(segs)
				if p.IsRoot() {
					continue
				}
				if err := fs.MkdirAll(p.Join("routes"), 0o755); err != nil {
					return false
				}
				for i := 1; i <= len(p); i++ {
					expected[p[:i].String()] = true
				}
			}

			all, err := NewTree(fs, "routes").All(context.Background())
			if err != nil {
				return false
			}

			seen := map[string]int{}
			for _, p := range all {
				seen[p.String()]++
			}
			if len(seen) != len(expected) {
				return false
			}
			for key := range expected {
				if seen[key] != 1 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(route),
	))

	properties.TestingRun(t)
}
