package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMkdirAllCreatesWithFixedPermissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "deeper")
	require.NoError(t, MkdirAll(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
	require.Equal(t, os.FileMode(ReadWriteExecutePermissions), info.Mode().Perm())
}

func TestMkdirAllRejectsExistingDirWithWrongPermissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "wrong-perms")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.Error(t, MkdirAll(dir))
}

func TestWriteFileThenReadFileAsBytesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, WriteFile(path, []byte("payload")))

	data, err := ReadFileAsBytes(path)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), data)
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "present")
	require.False(t, FileExists(path))
	require.NoError(t, WriteFile(path, []byte("x")))
	require.True(t, FileExists(path))
	require.False(t, FileExists(dir))
}

func TestHasDir(t *testing.T) {
	dir := t.TempDir()
	has, err := HasDir(dir)
	require.NoError(t, err)
	require.True(t, has)

	has, err = HasDir(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	require.False(t, has)
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("copy me"), 0o600))

	require.NoError(t, CopyFile(src, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "copy me", string(data))
}

func TestCopyDirRecursive(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a"), []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "b"), []byte("b"), 0o600))

	require.NoError(t, CopyDir(src, dst))
	require.True(t, DirsEqual(src, dst))
}

func TestExpandPathCleansAndExpandsHome(t *testing.T) {
	out, err := ExpandPath("~/foo/../bar")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(HomeDir(), "bar"), out)
}
