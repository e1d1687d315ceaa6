// Package routes models the logical route hierarchy of a cwrap project.
//
// A route is a directory under the routes root; RoutePath names one by its
// segments and Tree projects the on-disk directory structure into a flat
// listing of RoutePaths.
package routes

import (
	"path"
	"strings"

	"github.com/conneroisu/cwrap/internal/errors"
)

// RoutePath is an ordered sequence of path segments. The empty RoutePath is
// the routes root.
type RoutePath []string

// Root is the RoutePath of the routes root.
var Root = RoutePath{}

// Parse converts a slash separated route such as "blog/post1" into a
// RoutePath. Empty segments are dropped, so "", "/" and "blog//post1/" are
// accepted. Segments that could resolve outside the routes root are rejected.
func Parse(s string) (RoutePath, error) {
	s = strings.ReplaceAll(s, "\\", "/")
	raw := strings.Split(s, "/")

	segments := make(RoutePath, 0, len(raw))
	for _, seg := range raw {
		if seg == "" {
			continue
		}
		if err := validateSegment(seg); err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}

	return segments, nil
}

// New builds a RoutePath from individual segments, validating each one.
func New(segments ...string) (RoutePath, error) {
	p := make(RoutePath, 0, len(segments))
	for _, seg := range segments {
		if err := validateSegment(seg); err != nil {
			return nil, err
		}
		p = append(p, seg)
	}
	return p, nil
}

func validateSegment(seg string) error {
	switch {
	case seg == "":
		return errors.NewValidationError(errors.ErrCodeInvalidPath, "route segment must not be empty")
	case seg == "." || seg == "..":
		return errors.NewValidationError(errors.ErrCodePathTraversal, "route segment must not be a relative reference").
			WithContext("segment", seg)
	case strings.ContainsAny(seg, "/\\\x00"):
		return errors.NewValidationError(errors.ErrCodeInvalidPath, "route segment contains a separator or NUL").
			WithContext("segment", seg)
	}
	return nil
}

// IsRoot reports whether p names the routes root.
func (p RoutePath) IsRoot() bool {
	return len(p) == 0
}

// String renders the RoutePath in its slash separated display form. The
// root renders as the empty string.
func (p RoutePath) String() string {
	return strings.Join(p, "/")
}

// Child returns a new RoutePath with name appended.
func (p RoutePath) Child(name string) RoutePath {
	out := make(RoutePath, len(p), len(p)+1)
	copy(out, p)
	return append(out, name)
}

// Join returns the slash separated location of p below base, suitable for a
// billy filesystem.
func (p RoutePath) Join(base string, elem ...string) string {
	parts := make([]string, 0, 1+len(p)+len(elem))
	parts = append(parts, base)
	parts = append(parts, p...)
	parts = append(parts, elem...)
	return path.Join(parts...)
}

// Equal reports whether two RoutePaths name the same route.
func (p RoutePath) Equal(other RoutePath) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}
