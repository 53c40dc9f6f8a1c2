package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"camserver/internal/model"

	"github.com/stretchr/testify/require"
)

// ========================================
// Test Setup Helpers
// ========================================

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testSweep(id string, created time.Time, foci ...int) *model.Sweep {
	sweep := &model.Sweep{
		ID:         id,
		CreatedAt:  created,
		CameraType: model.CameraAstro,
		Exposure:   100,
		Gain:       3,
		FocusMin:   foci[0],
	}
	if len(foci) > 1 {
		max := foci[len(foci)-1]
		step := foci[1] - foci[0]
		sweep.FocusMax = &max
		sweep.FocusStep = &step
	}
	for i, f := range foci {
		sweep.Jobs = append(sweep.Jobs, model.SweepJob{
			ImageID:  created.Add(time.Duration(i) * time.Second).Format("20060102_150405"),
			Sequence: i,
			Focus:    f,
		})
	}
	return sweep
}

// ========================================
// Sweep Repository Tests
// ========================================

func TestSweepRepository_InsertAndGet(t *testing.T) {
	repo := NewSweepRepository(setupTestDB(t))
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	sweep := testSweep("01HTESTSWEEP0000000000001", created, 100, 101, 102)
	sweep.Aperture = model.IntPtr(4)

	require.NoError(t, repo.Insert(sweep))

	got, err := repo.GetByID(sweep.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.CreatedAt.Equal(created))
	require.Equal(t, model.CameraAstro, got.CameraType)
	require.Equal(t, 4, *got.Aperture)
	require.Equal(t, 102, *got.FocusMax)
	require.Equal(t, 1, *got.FocusStep)
	require.Equal(t, sweep.Jobs, got.Jobs)
}

func TestSweepRepository_GetMissing(t *testing.T) {
	repo := NewSweepRepository(setupTestDB(t))

	got, err := repo.GetByID("missing")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSweepRepository_OptionalColumns(t *testing.T) {
	repo := NewSweepRepository(setupTestDB(t))
	sweep := testSweep("single", time.Now(), 7)

	require.NoError(t, repo.Insert(sweep))

	got, err := repo.GetByID("single")
	require.NoError(t, err)
	require.Nil(t, got.FocusMax)
	require.Nil(t, got.FocusStep)
	require.Nil(t, got.Aperture)
	require.Len(t, got.Jobs, 1)
}

func TestSweepRepository_ListNewestFirst(t *testing.T) {
	repo := NewSweepRepository(setupTestDB(t))
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Insert(testSweep(id, base.Add(time.Duration(i)*time.Minute), 1, 2)))
	}

	all, err := repo.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "c", all[0].ID)
	require.Equal(t, "a", all[2].ID)
	require.Len(t, all[0].Jobs, 2)

	limited, err := repo.List(2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	require.Equal(t, "b", limited[1].ID)
}

func TestSweepRepository_DuplicateInsertFails(t *testing.T) {
	repo := NewSweepRepository(setupTestDB(t))
	sweep := testSweep("dup", time.Now(), 1)

	require.NoError(t, repo.Insert(sweep))
	require.Error(t, repo.Insert(sweep))

	got, err := repo.GetByID("dup")
	require.NoError(t, err)
	require.Len(t, got.Jobs, 1)
}

func TestSweepRepository_DeleteAll(t *testing.T) {
	repo := NewSweepRepository(setupTestDB(t))
	require.NoError(t, repo.Insert(testSweep("a", time.Now(), 1, 2, 3)))

	require.NoError(t, repo.DeleteAll())

	all, err := repo.List(0)
	require.NoError(t, err)
	require.Empty(t, all)
}
