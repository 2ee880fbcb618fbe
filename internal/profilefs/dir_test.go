package profilefs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/seamprofile/internal/fsutil"
	"github.com/banshee-data/seamprofile/internal/profilestore"
	"github.com/banshee-data/seamprofile/internal/security"
	"github.com/banshee-data/seamprofile/internal/seam"
	"github.com/banshee-data/seamprofile/internal/testutil"
)

// legacyDoc is a profile file as written by the existing controller
// software.
const legacyDoc = `{
  "schema": "https://full-v.com/schemas/seam-profile.json",
  "enabled": true,
  "id": 3,
  "meta": {
    "name": "V groove",
    "jointType": 258,
    "jointTypeMajor": 1,
    "jointTypeMinor": 2,
    "version": 1
  },
  "v0": {
    "values": [1, 2, 3]
  }
}`

var (
	_ profilestore.Source = (*Dir)(nil)
	_ profilestore.Sink   = (*Dir)(nil)
)

func memDir(t *testing.T) (*Dir, *fsutil.MemoryFileSystem) {
	t.Helper()
	mfs := fsutil.NewMemoryFileSystem()
	return New("/profiles", WithFileSystem(mfs)), mfs
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "seam-profile-0.json", FileName(0))
	assert.Equal(t, "seam-profile-255.json", FileName(255))

	d := New("")
	assert.Equal(t, DefaultDir, d.Path())
	assert.Equal(t, filepath.Join(DefaultDir, "seam-profile-7.json"), d.File(7))
}

func TestReadLegacyDocument(t *testing.T) {
	d, mfs := memDir(t)
	require.NoError(t, mfs.MkdirAll("/profiles", 0o755))
	require.NoError(t, mfs.WriteFile("/profiles/seam-profile-3.json", []byte(legacyDoc), 0o644))

	doc, err := d.ReadProfile(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int32(3), doc.ID)
	assert.True(t, doc.Enabled)
	assert.Equal(t, "V groove", doc.Meta.Name)
	assert.Equal(t, []int32{1, 2, 3}, doc.V0.Values)
}

func TestReadMissingIsNotStored(t *testing.T) {
	d, _ := memDir(t)
	_, err := d.ReadProfile(context.Background(), 9)
	assert.ErrorIs(t, err, seam.ErrNotStored)
}

func TestReadRejectsOversizedFile(t *testing.T) {
	d, mfs := memDir(t)
	require.NoError(t, mfs.MkdirAll("/profiles", 0o755))
	big := `{"id": 1, "meta": {"name": "` + strings.Repeat("x", MaxFileSize) + `"}}`
	require.NoError(t, mfs.WriteFile(d.File(1), []byte(big), 0o644))

	_, err := d.ReadProfile(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
	assert.NotErrorIs(t, err, seam.ErrNotStored)
}

func TestReadCorrupt(t *testing.T) {
	d, mfs := memDir(t)
	require.NoError(t, mfs.MkdirAll("/profiles", 0o755))
	require.NoError(t, mfs.WriteFile(d.File(2), []byte(`{"id": 2, "v0": {"values": [1.5]}}`), 0o644))

	_, err := d.ReadProfile(context.Background(), 2)
	require.Error(t, err)
	assert.NotErrorIs(t, err, seam.ErrNotStored)
}

func TestWriteThenRead(t *testing.T) {
	d, mfs := memDir(t)
	want := seam.DefaultDocument(4)
	want.Enabled = true
	want.Meta.Name = "fillet"
	want.V0.Values[seam.OPDirection] = -3

	require.NoError(t, d.WriteProfile(context.Background(), want))
	assert.Equal(t, []string{"/profiles/seam-profile-4.json"}, mfs.Files("/profiles"))

	got, err := d.ReadProfile(context.Background(), 4)
	require.NoError(t, err)
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteFillsSchema(t *testing.T) {
	d, mfs := memDir(t)
	require.NoError(t, d.WriteProfile(context.Background(), seam.Document{ID: 1}))

	data, err := mfs.ReadFile(d.File(1))
	require.NoError(t, err)
	assert.Contains(t, string(data), seam.ProfileSchema)
}

func TestIDsAndRemove(t *testing.T) {
	d, mfs := memDir(t)
	ctx := context.Background()
	for _, id := range []int32{10, 2, 0} {
		require.NoError(t, d.WriteProfile(ctx, seam.DefaultDocument(id)))
	}
	for _, junk := range []string{"seam-profile-x.json", "seam-profile-01.json", "seam-profile--1.json", "notes.json"} {
		require.NoError(t, mfs.WriteFile(filepath.Join("/profiles", junk), []byte("{}"), 0o644))
	}

	ids, err := d.IDs()
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 2, 10}, ids)

	require.NoError(t, d.Remove(2))
	require.NoError(t, d.Remove(2))
	ids, _ = d.IDs()
	assert.Equal(t, []int32{0, 10}, ids)
}

func TestContextCancelled(t *testing.T) {
	d, _ := memDir(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.ReadProfile(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, d.WriteProfile(ctx, seam.DefaultDocument(0)), context.Canceled)
}

func TestHostDirectory(t *testing.T) {
	root := t.TempDir()
	d := New(filepath.Join(root, "profiles"))
	ctx := context.Background()

	_, err := d.ReadProfile(ctx, 0)
	assert.ErrorIs(t, err, seam.ErrNotStored, "missing directory reads as not stored")

	require.NoError(t, d.WriteProfile(ctx, seam.DefaultDocument(0)))
	doc, err := d.ReadProfile(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(0), doc.ID)

	// a profile file that links outside the directory is refused
	outside := filepath.Join(root, "elsewhere.json")
	require.NoError(t, os.WriteFile(outside, []byte(legacyDoc), 0o644))
	require.NoError(t, os.Symlink(outside, d.File(3)))

	_, err = d.ReadProfile(ctx, 3)
	assert.ErrorIs(t, err, security.ErrPathEscape)
}

func TestStoreOverDirectory(t *testing.T) {
	testutil.QuietLogs(t)

	d, mfs := memDir(t)
	require.NoError(t, mfs.MkdirAll("/profiles", 0o755))
	require.NoError(t, mfs.WriteFile(d.File(3), []byte(legacyDoc), 0o644))

	s := profilestore.New(d, profilestore.WithMaxProfiles(4), profilestore.WithCreateMissing(true))
	n, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ids, err := d.IDs()
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 1, 2, 3}, ids)

	require.NoError(t, s.Switch(3))
	assert.Equal(t, "V groove", s.Current().Name())
	v, err := s.Current().Table().Int(2)
	require.NoError(t, err)
	assert.Equal(t, int32(3), v)
}
