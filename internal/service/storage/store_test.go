package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"camserver/internal/logger"
	"camserver/internal/model"

	"github.com/stretchr/testify/require"
)

// ========================================
// Test Setup Helpers
// ========================================

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), logger.Discard())
	require.NoError(t, err)
	return store
}

// addCapture writes a finished successful capture.
func addCapture(t *testing.T, store *Store, id string) {
	t.Helper()
	meta := model.NewPendingMeta(id, model.CameraConfig{Exposure: 1}, "sweep", 0, ImageFilename(id))
	require.NoError(t, store.Save(id, []byte("image")))
	require.NoError(t, store.SaveThumbnail(id, []byte("thumb")))
	require.NoError(t, meta.Complete())
	require.NoError(t, store.WriteMeta(meta))
}

// addPending writes a record that a sweep still owns.
func addPending(t *testing.T, store *Store, id string) {
	t.Helper()
	meta := model.NewPendingMeta(id, model.CameraConfig{Exposure: 1}, "sweep", 0, ImageFilename(id))
	require.NoError(t, store.WriteMeta(meta))
}

func ids(t *testing.T, store *Store, max int) []string {
	t.Helper()
	infos, err := store.List(max)
	require.NoError(t, err)
	out := make([]string, 0, len(infos))
	for _, info := range infos {
		out = append(out, info.ID)
	}
	return out
}

// ========================================
// Record Tests
// ========================================

func TestStore_FileNames(t *testing.T) {
	store := newTestStore(t)
	addCapture(t, store, "20240101_120000")

	for _, name := range []string{"20240101_120000.jpeg", "thumbnail_20240101_120000.jpeg", "meta_20240101_120000.json"} {
		_, err := os.Stat(filepath.Join(store.Dir(), name))
		require.NoError(t, err, name)
	}
}

func TestStore_MetaRoundTrip(t *testing.T) {
	store := newTestStore(t)
	meta := model.NewPendingMeta("20240101_120000", model.CameraConfig{Focus: model.IntPtr(5)}, "s", 3, "hint")

	require.NoError(t, store.WriteMeta(meta))

	got, err := store.ReadMeta(meta.ID)
	require.NoError(t, err)
	require.Equal(t, *meta, *got)
	require.True(t, store.Exists(meta.ID))

	_, err = store.ReadMeta("20240101_000000")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_WriteMetaLeavesNoTempFiles(t *testing.T) {
	store := newTestStore(t)
	meta := model.NewPendingMeta("20240101_120000", model.CameraConfig{}, "", 0, "")

	require.NoError(t, store.WriteMeta(meta))
	require.NoError(t, meta.Fail("x"))
	require.NoError(t, store.WriteMeta(meta))

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestStore_PersistenceError(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.RemoveAll(store.Dir()))

	err := store.WriteMeta(model.NewPendingMeta("20240101_120000", model.CameraConfig{}, "", 0, ""))

	var persistErr *PersistenceError
	require.True(t, errors.As(err, &persistErr))
	require.Equal(t, "20240101_120000", persistErr.ID)
}

func TestStore_RejectsInvalidIDs(t *testing.T) {
	store := newTestStore(t)

	for _, id := range []string{"", "../etc/passwd", "a/b", ".hidden", "x..y"} {
		_, err := store.Path(id, KindImage)
		require.ErrorIs(t, err, ErrInvalidID, id)
		require.False(t, store.Exists(id))
	}
}

// ========================================
// Listing Tests
// ========================================

func TestStore_ListOrderAndJoin(t *testing.T) {
	store := newTestStore(t)
	addCapture(t, store, "20240101_120001")
	addCapture(t, store, "20240101_120003")
	pending := model.NewPendingMeta("20240101_120002", model.CameraConfig{}, "", 0, "")
	require.NoError(t, store.WriteMeta(pending))

	infos, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, infos, 3)

	require.Equal(t, "20240101_120003", infos[0].ID)
	require.Equal(t, "20240101_120002", infos[1].ID)
	require.Equal(t, "20240101_120001", infos[2].ID)

	require.True(t, infos[0].HasImage)
	require.True(t, infos[0].HasThumbnail)
	require.Equal(t, 2024, infos[0].Timestamp.Year())

	require.False(t, infos[1].HasImage)
	require.Equal(t, model.StatePending, infos[1].State())
}

func TestStore_ListEvictsOldest(t *testing.T) {
	store := newTestStore(t)
	for _, id := range []string{"20240101_120001", "20240101_120002", "20240101_120003", "20240101_120004"} {
		addCapture(t, store, id)
	}

	require.Equal(t, []string{"20240101_120004", "20240101_120003"}, ids(t, store, 2))

	for _, id := range []string{"20240101_120001", "20240101_120002"} {
		require.False(t, store.Exists(id), id)
	}
	require.Equal(t, []string{"20240101_120004", "20240101_120003"}, ids(t, store, 0))
}

func TestStore_ListKeepsPendingRecords(t *testing.T) {
	store := newTestStore(t)
	addPending(t, store, "20240101_120001")
	addCapture(t, store, "20240101_120002")
	addPending(t, store, "20240101_120003")
	addCapture(t, store, "20240101_120004")

	require.Equal(t, []string{"20240101_120004"}, ids(t, store, 1))

	require.False(t, store.Exists("20240101_120002"))
	require.Equal(t, []string{"20240101_120004", "20240101_120003", "20240101_120001"}, ids(t, store, 0))
}

func TestStore_ListSkipsUnreadableRecords(t *testing.T) {
	store := newTestStore(t)
	addCapture(t, store, "20240101_120001")
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "meta_broken.json"), []byte("{"), 0644))

	require.Equal(t, []string{"20240101_120001"}, ids(t, store, 0))
}

func TestStore_Prune(t *testing.T) {
	store := newTestStore(t)
	for _, id := range []string{"20240101_120001", "20240101_120002", "20240101_120003"} {
		addCapture(t, store, id)
	}

	deleted, err := store.Prune(1)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"20240101_120001", "20240101_120002"}, deleted)

	deleted, err = store.Prune(0)
	require.NoError(t, err)
	require.Empty(t, deleted)
	require.Equal(t, []string{"20240101_120003"}, ids(t, store, 0))
}

func TestStore_PruneKeepsPendingRecords(t *testing.T) {
	store := newTestStore(t)
	addPending(t, store, "20240101_120001")
	addCapture(t, store, "20240101_120002")
	addCapture(t, store, "20240101_120003")

	deleted, err := store.Prune(1)
	require.NoError(t, err)
	require.Equal(t, []string{"20240101_120002"}, deleted)

	meta, err := store.ReadMeta("20240101_120001")
	require.NoError(t, err)
	require.True(t, meta.Waiting)
}

func TestStore_FailPending(t *testing.T) {
	store := newTestStore(t)
	addPending(t, store, "20240101_120001")
	addCapture(t, store, "20240101_120002")
	addPending(t, store, "20240101_120003")

	failed, err := store.FailPending("interrupted by restart")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"20240101_120001", "20240101_120003"}, failed)

	for _, id := range failed {
		meta, err := store.ReadMeta(id)
		require.NoError(t, err)
		require.Equal(t, model.StateFailed, meta.State())
		require.Equal(t, "interrupted by restart", *meta.Error)
	}

	meta, err := store.ReadMeta("20240101_120002")
	require.NoError(t, err)
	require.Equal(t, model.StateSuccess, meta.State())

	failed, err = store.FailPending("interrupted by restart")
	require.NoError(t, err)
	require.Empty(t, failed)
}

// ========================================
// File Access Tests
// ========================================

func TestStore_Open(t *testing.T) {
	store := newTestStore(t)
	addCapture(t, store, "20240101_120001")

	f, err := store.Open("20240101_120001", KindThumbnail)
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.Equal(t, "thumb", string(data))

	_, err = store.Open("20240101_999999", KindImage)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeleteAndClear(t *testing.T) {
	store := newTestStore(t)
	addCapture(t, store, "20240101_120001")
	addCapture(t, store, "20240101_120002")

	require.NoError(t, store.Delete("20240101_120001"))
	require.False(t, store.Exists("20240101_120001"))
	require.ErrorIs(t, store.Delete("20240101_120001"), ErrNotFound)

	removed, err := store.Clear()
	require.NoError(t, err)
	require.Equal(t, 3, removed)
	require.Empty(t, ids(t, store, 0))
}

func TestStore_DeleteAndClearKeepPending(t *testing.T) {
	store := newTestStore(t)
	addCapture(t, store, "20240101_120001")
	addPending(t, store, "20240101_120002")
	require.NoError(t, store.Save("20240101_120002", []byte("image")))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "thumbnail_20240101_120002.jpeg.tmp"), []byte("part"), 0644))

	require.ErrorIs(t, store.Delete("20240101_120002"), ErrPending)

	removed, err := store.Clear()
	require.NoError(t, err)
	require.Equal(t, 3, removed)

	for _, name := range []string{"meta_20240101_120002.json", "20240101_120002.jpeg", "thumbnail_20240101_120002.jpeg.tmp"} {
		_, err := os.Stat(filepath.Join(store.Dir(), name))
		require.NoError(t, err, name)
	}
	require.Equal(t, []string{"20240101_120002"}, ids(t, store, 0))
}

func TestStore_RemoveImageKeepsRecord(t *testing.T) {
	store := newTestStore(t)
	addCapture(t, store, "20240101_120001")

	require.NoError(t, store.RemoveImage("20240101_120001"))

	infos, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.False(t, infos[0].HasImage)
	require.False(t, infos[0].HasThumbnail)
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("")
	require.NoError(t, err)
	require.Equal(t, KindImage, kind)

	kind, err = ParseKind("thumbnail")
	require.NoError(t, err)
	require.Equal(t, KindThumbnail, kind)

	_, err = ParseKind("raw")
	require.Error(t, err)
}
