package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveHomeExplicitWins(t *testing.T) {
	t.Setenv(EnvHome, "/from/env")
	dir := realTempDir(t)

	home, err := ResolveHome(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, home)
}

func TestResolveHomeFromEnv(t *testing.T) {
	dir := realTempDir(t)
	t.Setenv(EnvHome, dir)

	home, err := ResolveHome("")
	require.NoError(t, err)
	assert.Equal(t, dir, home)
}

func TestResolveHomeMissing(t *testing.T) {
	t.Setenv(EnvHome, "")

	_, err := ResolveHome("")
	require.Error(t, err)

	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "$"+EnvHome, le.Path)
	assert.Contains(t, err.Error(), EnvHome)
}

func TestResolveHomeExpandsTilde(t *testing.T) {
	userHome, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no user home directory")
	}
	home, err := ResolveHome("~/eric")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(userHome, "eric"), home)
}

func TestResolveHomeMakesAbsolute(t *testing.T) {
	home, err := ResolveHome("relative/eric")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(home))
}

func TestResolveHomeFollowsSymlink(t *testing.T) {
	root := realTempDir(t)
	install := filepath.Join(root, "ERiC-41.6.2.0", "Linux-x86_64")
	require.NoError(t, os.MkdirAll(install, 0o755))
	link := filepath.Join(root, "current")
	require.NoError(t, os.Symlink(install, link))

	home, err := ResolveHome(link)
	require.NoError(t, err)
	assert.Equal(t, install, home)
}

func TestResolveHomeKeepsDanglingPath(t *testing.T) {
	missing := filepath.Join(realTempDir(t), "not-installed")

	home, err := ResolveHome(missing)
	require.NoError(t, err)
	assert.Equal(t, missing, home)
}

// realTempDir returns t.TempDir() with symlinks resolved, as on macOS /var.
func realTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func TestLibraryPathLayout(t *testing.T) {
	p := LibraryPath("/opt/eric", APISubdir, APILibrary)
	assert.Equal(t, filepath.Join("/opt/eric", "lib"), filepath.Dir(p))
	assert.Contains(t, filepath.Base(p), "ericapi")

	p = LibraryPath("/opt/eric", ToolkitSubdir, ToolkitLib)
	assert.Equal(t, filepath.Join("/opt/eric", "erictoolkit"), filepath.Dir(p))
}

func TestOpenMissingLibraryNamesPath(t *testing.T) {
	path := LibraryPath(t.TempDir(), APISubdir, APILibrary)

	lib, err := Open(path)
	require.Error(t, err)
	assert.Nil(t, lib)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, path, le.Path)
	assert.Contains(t, err.Error(), path)
}

func TestOpenNonLibraryFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libericapi.so")
	require.NoError(t, os.WriteFile(path, []byte("not an ELF file"), 0o600))

	_, err := Open(path)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, path, le.Path)
}

func TestLookupOnNilLibrary(t *testing.T) {
	var lib *SharedLibrary
	_, err := lib.Lookup("EricInitialisiere")
	assert.Error(t, err)
}
