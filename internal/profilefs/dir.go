// Package profilefs persists seam profiles as one JSON document per
// profile in a directory, named seam-profile-<id>.json.
package profilefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/banshee-data/seamprofile/internal/fsutil"
	"github.com/banshee-data/seamprofile/internal/seam"
	"github.com/banshee-data/seamprofile/internal/security"
)

// DefaultDir is where profiles live when no directory is configured.
const DefaultDir = "/var/lib/rklaser/profiles"

// MaxFileSize caps how much of a profile file is read.
const MaxFileSize = 1 * 1024 * 1024

const (
	filePrefix = "seam-profile-"
	fileSuffix = ".json"
)

// FileName returns the file name used for profile id.
func FileName(id int32) string {
	return filePrefix + strconv.Itoa(int(id)) + fileSuffix
}

// Dir is a profile directory. It implements profilestore.Source and
// profilestore.Sink.
type Dir struct {
	fs        fsutil.FileSystem
	path      string
	checkPath bool
}

// Option configures a Dir.
type Option func(*Dir)

// WithFileSystem replaces the host filesystem, typically with an
// fsutil.MemoryFileSystem in tests. Symlink checks are skipped since they
// only make sense on the host.
func WithFileSystem(fsys fsutil.FileSystem) Option {
	return func(d *Dir) {
		d.fs = fsys
		d.checkPath = false
	}
}

// New returns the profile directory at path, or DefaultDir when path is
// empty. The directory is created on first write.
func New(path string, opts ...Option) *Dir {
	if path == "" {
		path = DefaultDir
	}
	d := &Dir{fs: fsutil.OSFileSystem{}, path: filepath.Clean(path), checkPath: true}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Path returns the directory.
func (d *Dir) Path() string { return d.path }

// File returns the full path of profile id.
func (d *Dir) File(id int32) string {
	return filepath.Join(d.path, FileName(id))
}

func (d *Dir) validate(name string) error {
	if !d.checkPath || !d.fs.Exists(d.path) {
		return nil
	}
	return security.ValidatePathWithinDirectory(name, d.path)
}

// ReadProfile reads and decodes profile id. A missing file is reported as
// seam.ErrNotStored.
func (d *Dir) ReadProfile(ctx context.Context, id int32) (*seam.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := d.File(id)
	if err := d.validate(name); err != nil {
		return nil, err
	}

	info, err := d.fs.Stat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, seam.ErrNotStored)
		}
		return nil, fmt.Errorf("failed to stat profile file: %w", err)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("profile file too large: %d bytes (max %d)", info.Size(), MaxFileSize)
	}

	data, err := d.fs.ReadFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, seam.ErrNotStored)
		}
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}
	doc, err := seam.DecodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return doc, nil
}

// WriteProfile writes doc to its file, replacing any previous version.
func (d *Dir) WriteProfile(ctx context.Context, doc seam.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc.Schema == "" {
		doc.Schema = seam.ProfileSchema
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profile %d: %w", doc.ID, err)
	}

	if err := d.fs.MkdirAll(d.path, 0o755); err != nil {
		return fmt.Errorf("create profile directory: %w", err)
	}
	name := d.File(doc.ID)
	if err := d.validate(name); err != nil {
		return err
	}
	if err := d.fs.WriteFile(name, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write profile %d: %w", doc.ID, err)
	}
	return nil
}

// Remove deletes the file of profile id. Removing a missing profile is not
// an error.
func (d *Dir) Remove(id int32) error {
	err := d.fs.Remove(d.File(id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// IDs returns the ids that have a file in the directory, ascending. Files
// that only look like profiles are ignored.
func (d *Dir) IDs() ([]int32, error) {
	names, err := d.fs.Glob(filepath.Join(d.path, filePrefix+"*"+fileSuffix))
	if err != nil {
		return nil, err
	}
	var ids []int32
	for _, name := range names {
		base := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(name), filePrefix), fileSuffix)
		id, err := strconv.ParseInt(base, 10, 32)
		if err != nil || id < 0 || base != strconv.FormatInt(id, 10) {
			continue
		}
		ids = append(ids, int32(id))
	}
	slices.Sort(ids)
	return ids, nil
}
