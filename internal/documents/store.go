// Package documents persists the JSON documents of a cwrap project.
//
// The store is a plain key to document mapping: a scope (a route) and a
// document name select one file. It knows nothing about the route tree
// beyond creating the directories a save needs.
package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"

	"github.com/conneroisu/cwrap/internal/errors"
	"github.com/conneroisu/cwrap/internal/logging"
	"github.com/conneroisu/cwrap/internal/routes"
)

// Name selects a document.
type Name string

const (
	// Skeleton is the page structure of a route.
	Skeleton Name = "skeleton"
	// Templates holds the reusable templates of a route.
	Templates Name = "templates"
	// Config is the project wide configuration document.
	Config Name = "config"
	// Settings is the per-user settings document.
	Settings Name = "settings"
)

// Names lists every document the store knows about.
var Names = []Name{Skeleton, Templates, Config, Settings}

// Routed reports whether the document lives inside the route tree.
func (n Name) Routed() bool {
	return n == Skeleton || n == Templates
}

// FileName returns the on-disk file name of the document.
func (n Name) FileName() string {
	return string(n) + ".json"
}

func (n Name) valid() bool {
	for _, known := range Names {
		if n == known {
			return true
		}
	}
	return false
}

const filePerm = 0o644

// Store reads and writes documents on two filesystems: the project
// filesystem holds the route tree and config.json, the user filesystem holds
// settings.json.
type Store struct {
	project   billy.Filesystem
	user      billy.Filesystem
	routesDir string
	logger    logging.Logger
	errs      *errors.ErrorHandler

	locks sync.Map // location -> *sync.Mutex
}

// NewStore creates a Store. routesDir is the routes root relative to the
// project filesystem.
func NewStore(project, user billy.Filesystem, routesDir string, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("documents")

	return &Store{
		project:   project,
		user:      user,
		routesDir: routesDir,
		logger:    logger,
		errs:      errors.NewErrorHandler(logger),
	}
}

// Location resolves the filesystem and path backing a document. scope is
// ignored for documents that do not live in the route tree.
func (s *Store) Location(scope routes.RoutePath, name Name) (billy.Filesystem, string, error) {
	switch {
	case !name.valid():
		return nil, "", errors.NewValidationError(errors.ErrCodeUnknownDocument, "unknown document").
			WithContext("document", string(name))
	case name == Settings:
		return s.user, name.FileName(), nil
	case name == Config:
		return s.project, name.FileName(), nil
	default:
		return s.project, scope.Join(s.routesDir, name.FileName()), nil
	}
}

// Save pretty-prints doc and writes it, creating any missing parent
// directories. An existing document is overwritten wholesale.
func (s *Store) Save(ctx context.Context, scope routes.RoutePath, name Name, doc []byte) error {
	err := s.save(scope, name, doc)
	if err != nil {
		s.errs.Handle(ctx, err, "Failed to save document",
			"document", string(name), "route", scope.String())
		return err
	}

	s.logger.Debug(ctx, "Document saved", "document", string(name), "route", scope.String())
	return nil
}

func (s *Store) save(scope routes.RoutePath, name Name, doc []byte) error {
	fs, location, err := s.Location(scope, name)
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, doc, "", "  "); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidDocument, "document is not valid JSON").
			WithContext("cause", err.Error()).
			WithPath(location)
	}
	pretty.WriteByte('\n')

	unlock := s.lock(name, location)
	defer unlock()

	dir := path.Dir(location)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return errors.FromFS(err, "failed to create document directory", dir)
	}

	if err := writeAtomic(fs, dir, location, pretty.Bytes()); err != nil {
		return errors.FromFS(err, "failed to write document", location)
	}
	return nil
}

// writeAtomic writes data to a temporary file next to location and renames
// it into place, so readers see either the old or the new document.
func writeAtomic(fs billy.Filesystem, dir, location string, data []byte) error {
	name := path.Join(dir, "."+path.Base(location)+".tmp-"+uuid.NewString())

	tmp, err := fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return err
	}

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = fs.Rename(name, location)
	}
	if err != nil {
		_ = fs.Remove(name)
		return err
	}
	return nil
}

// Load returns the stored document. A missing file yields a not-found error;
// unreadable or malformed content yields an I/O error.
func (s *Store) Load(ctx context.Context, scope routes.RoutePath, name Name) (json.RawMessage, error) {
	doc, err := s.load(scope, name)
	if err != nil {
		s.errs.Handle(ctx, err, "Failed to load document",
			"document", string(name), "route", scope.String())
		return nil, err
	}

	s.logger.Debug(ctx, "Document loaded", "document", string(name), "route", scope.String())
	return doc, nil
}

func (s *Store) load(scope routes.RoutePath, name Name) (json.RawMessage, error) {
	fs, location, err := s.Location(scope, name)
	if err != nil {
		return nil, err
	}

	unlock := s.lock(name, location)
	defer unlock()

	f, err := fs.Open(location)
	if err != nil {
		return nil, errors.FromFS(err, "failed to open document", location)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.FromFS(err, "failed to read document", location)
	}

	if !json.Valid(data) {
		return nil, errors.NewIOError(errors.ErrCodeMalformedDocument, "document contains malformed JSON", nil).
			WithPath(location)
	}

	return json.RawMessage(bytes.TrimSpace(data)), nil
}

// lock serializes access to a single document so a read never observes a
// half written file from a concurrent save in this process.
func (s *Store) lock(name Name, location string) func() {
	key := "project:" + location
	if name == Settings {
		key = "user:" + location
	}
	mu, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}
