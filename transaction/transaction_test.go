package transaction

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBegin_StartsActiveWithNoSnapshots(t *testing.T) {
	tx := Begin()
	assert.Equal(t, Active, tx.State())
	assert.Equal(t, 0, tx.SnapshotCount())
}

func TestSnapshot_ExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.txt")
	require.NoError(t, os.WriteFile(path, []byte("original content"), 0o644))

	tx := Begin()
	require.NoError(t, tx.Snapshot(path))
	assert.Equal(t, 1, tx.SnapshotCount())
}

func TestSnapshot_NonexistentFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.txt")

	tx := Begin()
	require.NoError(t, tx.Snapshot(path))
	assert.Equal(t, 1, tx.SnapshotCount())
}

func TestRollback_RestoresOriginalContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.txt")
	require.NoError(t, os.WriteFile(path, []byte("original content"), 0o644))

	tx := Begin()
	require.NoError(t, tx.Snapshot(path))
	require.NoError(t, os.WriteFile(path, []byte("modified content"), 0o644))

	require.NoError(t, tx.Rollback())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original content", string(content))
	assert.Equal(t, RolledBack, tx.State())
}

func TestRollback_DeletesCreatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "new_file.txt")

	tx := Begin()
	require.NoError(t, tx.Snapshot(path))
	require.NoError(t, os.WriteFile(path, []byte("new content"), 0o644))

	require.NoError(t, tx.Rollback())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRollback_MultipleFilesInReverseOrder(t *testing.T) {
	dir := t.TempDir()
	file1 := filepath.Join(dir, "file1.txt")
	file2 := filepath.Join(dir, "file2.txt")
	require.NoError(t, os.WriteFile(file1, []byte("content1"), 0o644))
	require.NoError(t, os.WriteFile(file2, []byte("content2"), 0o644))

	tx := Begin()
	require.NoError(t, tx.Snapshot(file1))
	require.NoError(t, tx.Snapshot(file2))
	require.NoError(t, os.WriteFile(file1, []byte("modified1"), 0o644))
	require.NoError(t, os.WriteFile(file2, []byte("modified2"), 0o644))

	require.NoError(t, tx.Rollback())

	c1, err := os.ReadFile(file1)
	require.NoError(t, err)
	c2, err := os.ReadFile(file2)
	require.NoError(t, err)
	assert.Equal(t, "content1", string(c1))
	assert.Equal(t, "content2", string(c2))
}

func TestCommit_GeneratesNonNilID(t *testing.T) {
	tx := Begin()
	commitID, err := tx.Commit()
	require.NoError(t, err)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", commitID.String())
	assert.Equal(t, Committed, tx.State())
}

func TestRollback_AfterCommitFails(t *testing.T) {
	tx := Begin()
	_, err := tx.Commit()
	require.NoError(t, err)

	err = tx.Rollback()
	require.Error(t, err)
}

func TestSnapshot_AfterRollbackFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.txt")

	tx := Begin()
	require.NoError(t, tx.Snapshot(path))
	require.NoError(t, tx.Rollback())

	err := tx.Snapshot(path)
	require.Error(t, err)
}

func TestCommit_AfterRollbackFails(t *testing.T) {
	tx := Begin()
	require.NoError(t, tx.Rollback())

	_, err := tx.Commit()
	require.Error(t, err)
}
