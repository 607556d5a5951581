package dirscan_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvsdb/kvs/internal/dirscan"
	"github.com/kvsdb/kvs/internal/fileid"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
}

func TestScanEmptyDirSynthesizesAppendOne(t *testing.T) {
	dir := t.TempDir()
	ex, err := dirscan.Scan(dir)
	require.NoError(t, err)
	assert.Equal(t, []fileid.FileId{fileid.Append(1)}, ex.AppendFiles)
	assert.Empty(t, ex.CompactFiles)
	assert.Empty(t, ex.TempFiles)
	assert.Equal(t, uint32(0), ex.LastVersion)
}

func TestScanSortsAndClassifies(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a_3")
	touch(t, dir, "a_1")
	touch(t, dir, "c_2")
	touch(t, dir, "t_5")

	ex, err := dirscan.Scan(dir)
	require.NoError(t, err)
	assert.Equal(t, []fileid.FileId{fileid.Append(1), fileid.Append(3)}, ex.AppendFiles)
	assert.Equal(t, []fileid.FileId{fileid.Compact(2)}, ex.CompactFiles)
	assert.Equal(t, []fileid.FileId{fileid.Temp(5)}, ex.TempFiles)
	assert.Equal(t, uint32(5), ex.LastVersion)
}

func TestScanIgnoresSubdirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	touch(t, dir, "a_1")

	ex, err := dirscan.Scan(dir)
	require.NoError(t, err)
	assert.Equal(t, []fileid.FileId{fileid.Append(1)}, ex.AppendFiles)
}

func TestScanFailsOnMalformedEntry(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a_1")
	touch(t, dir, "schema.json")

	_, err := dirscan.Scan(dir)
	assert.Error(t, err)
}

func TestScanFailsOnMissingDir(t *testing.T) {
	_, err := dirscan.Scan(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}
