package host

import (
	"context"
	"fmt"
	"os"

	"github.com/aayushadhikari7/aegis/internal/capability"
)

// fsReadFileEntry implements `fs_read_file`: the guest passes a packed
// ptr+len path and receives a packed ptr+len buffer with the file contents.
func fsReadFileEntry() Entry {
	return Entry{
		Name:        "fs_read_file",
		ParamCount:  1,
		ResultCount: 1,
		Description: "read a file; requires a filesystem read grant covering the path",
		RequestFor: func(hctx *Context, args []uint64) (capability.Request, error) {
			path, err := hctx.ReadString(args[0])
			if err != nil {
				return nil, err
			}
			return capability.FilesystemRequest{Path: path, Read: true}, nil
		},
		Impl: func(ctx context.Context, hctx *Context, args []uint64) ([]uint64, error) {
			path, err := hctx.ReadString(args[0])
			if err != nil {
				return nil, err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", path, err)
			}
			packed, err := hctx.WriteBytes(data)
			if err != nil {
				return nil, err
			}
			return []uint64{packed}, nil
		},
	}
}

// fsWriteFileEntry implements `fs_write_file`: packed path, packed data.
func fsWriteFileEntry() Entry {
	return Entry{
		Name:        "fs_write_file",
		ParamCount:  2,
		ResultCount: 0,
		Description: "write a file; requires a filesystem write grant covering the path",
		RequestFor: func(hctx *Context, args []uint64) (capability.Request, error) {
			path, err := hctx.ReadString(args[0])
			if err != nil {
				return nil, err
			}
			return capability.FilesystemRequest{Path: path, Write: true}, nil
		},
		Impl: func(ctx context.Context, hctx *Context, args []uint64) ([]uint64, error) {
			path, err := hctx.ReadString(args[0])
			if err != nil {
				return nil, err
			}
			data, err := hctx.ReadBytes(args[1])
			if err != nil {
				return nil, err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return nil, fmt.Errorf("writing %s: %w", path, err)
			}
			return nil, nil
		},
	}
}
