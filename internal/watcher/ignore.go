package watcher

import (
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// DefaultIgnorePatterns keep the build's own output from triggering rebuilds.
var DefaultIgnorePatterns = []string{"dist/", "node_modules/", ".git/"}

// IgnoreMatcher matches paths under a root against gitignore patterns.
type IgnoreMatcher struct {
	root string
	gi   *ignore.GitIgnore
}

// NewIgnoreMatcher compiles patterns for paths below root. A .gitignore file
// at the root is honoured as well. With no patterns the defaults apply.
func NewIgnoreMatcher(root string, patterns ...string) *IgnoreMatcher {
	if len(patterns) == 0 {
		patterns = DefaultIgnorePatterns
	}

	lines := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			lines = append(lines, p)
		}
	}
	lines = append(lines, readGitignore(root)...)

	return &IgnoreMatcher{
		root: root,
		gi:   ignore.CompileIgnoreLines(lines...),
	}
}

func readGitignore(root string) []string {
	data, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return strings.Split(string(data), "\n")
}

// Match reports whether a file path is ignored.
func (m *IgnoreMatcher) Match(path string) bool {
	rel, ok := m.relative(path)
	if !ok {
		return false
	}
	return m.gi.MatchesPath(rel)
}

// MatchDir reports whether a directory is ignored. Directory patterns such
// as "dist/" only match with a trailing slash.
func (m *IgnoreMatcher) MatchDir(path string) bool {
	rel, ok := m.relative(path)
	if !ok {
		return false
	}
	return m.gi.MatchesPath(rel) || m.gi.MatchesPath(rel+"/")
}

func (m *IgnoreMatcher) relative(path string) (string, bool) {
	rel := path
	if filepath.IsAbs(path) {
		var err error
		rel, err = filepath.Rel(m.root, path)
		if err != nil {
			return "", false
		}
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == "" || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}
