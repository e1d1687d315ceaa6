package routes

import (
	"context"
	"os"

	"github.com/go-git/go-billy/v5"

	"github.com/conneroisu/cwrap/internal/errors"
)

// Tree is a read-only projection of the directories under the routes root.
// It holds no state besides the filesystem handle: every call re-reads the
// disk, because route directories are created out of band by document saves.
type Tree struct {
	fs   billy.Filesystem
	root string
}

// NewTree creates a Tree over fs, where root is the routes directory
// relative to the filesystem root (for example "routes").
func NewTree(fs billy.Filesystem, root string) *Tree {
	if root == "" {
		root = "."
	}
	return &Tree{fs: fs, root: root}
}

// Root returns the routes directory as seen by the underlying filesystem.
func (t *Tree) Root() string {
	return t.root
}

// All walks the routes root depth first and returns every directory as a
// RoutePath, parents before their descendants and siblings in directory-read
// order. The root itself is not included.
func (t *Tree) All(ctx context.Context) ([]RoutePath, error) {
	if err := t.requireDir(Root); err != nil {
		return nil, err
	}

	var out []RoutePath
	if err := t.walk(ctx, Root, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Tree) walk(ctx context.Context, at RoutePath, out *[]RoutePath) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := t.readDir(at)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		child := at.Child(entry.Name())
		*out = append(*out, child)
		if err := t.walk(ctx, child, out); err != nil {
			return err
		}
	}
	return nil
}

// Children returns the names of the immediate subdirectories of p.
func (t *Tree) Children(ctx context.Context, p RoutePath) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := t.requireDir(p); err != nil {
		return nil, err
	}

	entries, err := t.readDir(p)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// requireDir reports a not-found error when p has no directory. Some billy
// implementations return an empty listing for missing directories, so the
// check is made explicitly.
func (t *Tree) requireDir(p RoutePath) error {
	location := p.Join(t.root)
	info, err := t.fs.Stat(location)
	if err != nil {
		if p.IsRoot() && os.IsNotExist(err) {
			return errors.NewNotFoundError(errors.ErrCodeRoutesNotFound, "routes directory not found", err).
				WithPath(location)
		}
		return errors.FromFS(err, "failed to stat route directory", location)
	}
	if !info.IsDir() {
		return errors.NewNotFoundError(errors.ErrCodeFileNotFound, "route is not a directory", nil).
			WithPath(location)
	}
	return nil
}

func (t *Tree) readDir(p RoutePath) ([]os.FileInfo, error) {
	location := p.Join(t.root)
	entries, err := t.fs.ReadDir(location)
	if err != nil {
		return nil, errors.FromFS(err, "failed to read route directory", location)
	}
	return entries, nil
}
