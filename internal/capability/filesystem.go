package capability

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemRequest is an attempt to open a path for reading and/or writing.
type FilesystemRequest struct {
	Path  string
	Read  bool
	Write bool
}

func (r FilesystemRequest) Kind() Kind { return KindFilesystem }

func (r FilesystemRequest) Describe() string {
	return fmt.Sprintf("%s (%s)", r.Path, accessString(r.Read, r.Write))
}

// FilesystemGrant permits access beneath a single directory prefix. The
// prefix is canonicalized at construction; request paths are canonicalized
// at check time so symlinks cannot smuggle a path outside the prefix.
type FilesystemGrant struct {
	prefix string
	read   bool
	write  bool
}

// NewFilesystemGrant builds a grant for the directory tree rooted at prefix.
// The prefix must exist so it can be fully resolved; a grant for a path that
// cannot be canonicalized would be unverifiable.
func NewFilesystemGrant(prefix string, read, write bool) (*FilesystemGrant, error) {
	if !read && !write {
		return nil, fmt.Errorf("filesystem grant for %q permits neither read nor write", prefix)
	}
	resolved, err := canonicalize(prefix)
	if err != nil {
		return nil, fmt.Errorf("resolving grant prefix %q: %w", prefix, err)
	}
	return &FilesystemGrant{prefix: resolved, read: read, write: write}, nil
}

// ReadOnlyDir grants read-only access beneath prefix.
func ReadOnlyDir(prefix string) (*FilesystemGrant, error) {
	return NewFilesystemGrant(prefix, true, false)
}

// ReadWriteDir grants read and write access beneath prefix.
func ReadWriteDir(prefix string) (*FilesystemGrant, error) {
	return NewFilesystemGrant(prefix, true, true)
}

func (g *FilesystemGrant) Kind() Kind { return KindFilesystem }

func (g *FilesystemGrant) Allows(req Request) bool {
	fsReq, ok := req.(FilesystemRequest)
	if !ok {
		return false
	}
	if fsReq.Read && !g.read {
		return false
	}
	if fsReq.Write && !g.write {
		return false
	}
	if !fsReq.Read && !fsReq.Write {
		return false
	}
	resolved, err := canonicalize(fsReq.Path)
	if err != nil {
		// Unresolvable paths are never covered.
		return false
	}
	return contains(g.prefix, resolved)
}

func (g *FilesystemGrant) Describe() string {
	return fmt.Sprintf("filesystem %s under %s", accessString(g.read, g.write), g.prefix)
}

// canonicalize cleans the path and resolves symlinks. For paths that do not
// exist yet (a file the guest intends to create) the parent directory is
// resolved instead and the final element re-appended, so a write target is
// still pinned to a real location.
func canonicalize(path string) (string, error) {
	cleaned := filepath.Clean(path)
	resolved, err := filepath.EvalSymlinks(cleaned)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}
	parent, err := filepath.EvalSymlinks(filepath.Dir(cleaned))
	if err != nil {
		return "", err
	}
	return filepath.Join(parent, filepath.Base(cleaned)), nil
}

// contains reports whether candidate is prefix itself or lies beneath it.
// Both arguments must already be canonical.
func contains(prefix, candidate string) bool {
	if candidate == prefix {
		return true
	}
	sep := string(filepath.Separator)
	if prefix == sep {
		return strings.HasPrefix(candidate, sep)
	}
	return strings.HasPrefix(candidate, prefix+sep)
}

func accessString(read, write bool) string {
	switch {
	case read && write:
		return "read-write"
	case write:
		return "write-only"
	case read:
		return "read-only"
	default:
		return "no-access"
	}
}
