package host

import (
	"fmt"

	"github.com/aayushadhikari7/aegis/internal/capability"
	"github.com/aayushadhikari7/aegis/internal/resource"
)

// Memory is the dispatcher's view of guest linear memory.
type Memory interface {
	// Read copies length bytes starting at ptr. ok is false when the range
	// is out of bounds.
	Read(ptr, length uint32) ([]byte, bool)

	// Write copies data into guest memory at ptr. ok is false when the
	// range is out of bounds.
	Write(ptr uint32, data []byte) bool
}

// Allocator requests a guest-side buffer for host→guest payloads, typically
// backed by the guest's exported allocator.
type Allocator func(size uint32) (uint32, error)

// Context is everything a host function may touch during one invocation.
// It carries no ambient authority: filesystem and network access inside an
// implementation must go through the request the dispatcher already checked.
type Context struct {
	SandboxID string
	Caps      *capability.Set
	Mem       Memory
	Meter     *resource.FuelMeter
	Limiter   *resource.Limiter
	Alloc     Allocator
}

// ReadString reads a packed ptr+len string from guest memory.
func (c *Context) ReadString(packed uint64) (string, error) {
	data, err := c.ReadBytes(packed)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadBytes reads a packed ptr+len byte range from guest memory.
func (c *Context) ReadBytes(packed uint64) ([]byte, error) {
	ptr, length := UnpackPtrLen(packed)
	data, ok := c.Mem.Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("guest memory read out of bounds: ptr=%d len=%d", ptr, length)
	}
	return data, nil
}

// WriteBytes allocates guest memory for data, writes it, and returns the
// packed ptr+len.
func (c *Context) WriteBytes(data []byte) (uint64, error) {
	if c.Alloc == nil {
		return 0, fmt.Errorf("no guest allocator available")
	}
	ptr, err := c.Alloc(uint32(len(data)))
	if err != nil {
		return 0, fmt.Errorf("guest allocation failed: %w", err)
	}
	if !c.Mem.Write(ptr, data) {
		return 0, fmt.Errorf("guest memory write out of bounds: ptr=%d len=%d", ptr, len(data))
	}
	return PackPtrLen(ptr, uint32(len(data))), nil
}

// PackPtrLen packs a guest pointer and length into one uint64, pointer in
// the high 32 bits.
func PackPtrLen(ptr, length uint32) uint64 {
	return uint64(ptr)<<32 | uint64(length)
}

// UnpackPtrLen splits a packed uint64 into pointer and length.
func UnpackPtrLen(packed uint64) (ptr, length uint32) {
	return uint32(packed >> 32), uint32(packed)
}
