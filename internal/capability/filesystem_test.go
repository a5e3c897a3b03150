package capability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemGrantPrefixContainment(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "file.txt"), []byte("x"), 0o644))

	grant, err := ReadOnlyDir(dir)
	require.NoError(t, err)

	tests := []struct {
		name string
		req  FilesystemRequest
		want bool
	}{
		{"file inside", FilesystemRequest{Path: filepath.Join(dir, "sub", "file.txt"), Read: true}, true},
		{"prefix itself", FilesystemRequest{Path: dir, Read: true}, true},
		{"outside prefix", FilesystemRequest{Path: filepath.Join(os.TempDir(), "elsewhere"), Read: true}, false},
		{"write on read-only", FilesystemRequest{Path: filepath.Join(dir, "sub", "file.txt"), Write: true}, false},
		{"neither read nor write", FilesystemRequest{Path: filepath.Join(dir, "sub", "file.txt")}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, grant.Allows(tc.req))
		})
	}
}

func TestFilesystemGrantSiblingPrefixNotMatched(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "data")
	sibling := filepath.Join(parent, "data-secret")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.MkdirAll(sibling, 0o755))

	grant, err := ReadOnlyDir(dir)
	require.NoError(t, err)

	// "/data" must not cover "/data-secret": containment is per path
	// element, not a string prefix.
	assert.False(t, grant.Allows(FilesystemRequest{Path: sibling, Read: true}))
}

func TestFilesystemGrantTraversalNormalized(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("x"), 0o644))

	grant, err := ReadOnlyDir(dir)
	require.NoError(t, err)

	inside := filepath.Join(dir, "missing", "..", "file.txt")
	assert.True(t, grant.Allows(FilesystemRequest{Path: inside, Read: true}))

	escape := filepath.Join(dir, "..", "..")
	assert.False(t, grant.Allows(FilesystemRequest{Path: escape, Read: true}))
}

func TestFilesystemGrantSymlinkEscapeDenied(t *testing.T) {
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("x"), 0o600))

	dir := t.TempDir()
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(secret, link))

	grant, err := ReadOnlyDir(dir)
	require.NoError(t, err)

	// The link lives inside the prefix but resolves outside it.
	assert.False(t, grant.Allows(FilesystemRequest{Path: link, Read: true}))
}

func TestFilesystemGrantNonexistentWriteTarget(t *testing.T) {
	dir := t.TempDir()
	grant, err := ReadWriteDir(dir)
	require.NoError(t, err)

	// The file does not exist yet; its parent does and resolves inside.
	target := filepath.Join(dir, "new-output.json")
	assert.True(t, grant.Allows(FilesystemRequest{Path: target, Write: true}))

	// A target whose parent does not exist either cannot be pinned.
	deep := filepath.Join(dir, "missing", "new-output.json")
	assert.False(t, grant.Allows(FilesystemRequest{Path: deep, Write: true}))
}

func TestNewFilesystemGrantRejectsNoAccess(t *testing.T) {
	_, err := NewFilesystemGrant(t.TempDir(), false, false)
	assert.Error(t, err)
}

func TestNewFilesystemGrantRejectsMissingPrefix(t *testing.T) {
	_, err := ReadOnlyDir(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}
