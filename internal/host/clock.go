package host

import (
	"context"
	"time"

	"github.com/aayushadhikari7/aegis/internal/capability"
)

// Clock source selectors for `clock_now`.
const (
	clockArgMonotonic uint64 = 0
	clockArgRealtime  uint64 = 1
)

var processStart = time.Now()

// clockNowEntry implements `clock_now`: the guest passes a source selector
// (0 monotonic, 1 realtime) and receives nanoseconds. Monotonic time is
// measured from process start so it leaks no wall-clock data.
func clockNowEntry() Entry {
	return Entry{
		Name:        "clock_now",
		ParamCount:  1,
		ResultCount: 1,
		Description: "read the host clock; requires a clock grant for the selected source",
		RequestFor: func(hctx *Context, args []uint64) (capability.Request, error) {
			access := capability.ClockMonotonic
			if args[0] == clockArgRealtime {
				access = capability.ClockRealtime
			}
			return capability.ClockRequest{Access: access}, nil
		},
		Impl: func(ctx context.Context, hctx *Context, args []uint64) ([]uint64, error) {
			if args[0] == clockArgRealtime {
				return []uint64{uint64(time.Now().UnixNano())}, nil
			}
			return []uint64{uint64(time.Since(processStart))}, nil
		},
	}
}

// RegisterBuiltins adds the built-in host functions to a registry.
func RegisterBuiltins(r *Registry) error {
	for _, e := range []Entry{
		fsReadFileEntry(),
		fsWriteFileEntry(),
		netProbeEntry(),
		logMessageEntry(),
		clockNowEntry(),
	} {
		if err := r.Register(e); err != nil {
			return err
		}
	}
	return nil
}
