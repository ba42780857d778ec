//go:build !linux

// File: internal/affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for platforms without sched_setaffinity. Pinning
// is a best-effort optimization (spec.md's Config.PinTickDriver is
// never fatal to leave unsatisfied), so this reports the condition
// rather than failing the caller's init path.

package affinity

import (
	"errors"
	"runtime"
)

// ErrUnsupported is returned by Pin on platforms with no core-pinning
// syscall available.
var ErrUnsupported = errors.New("affinity: core pinning is not supported on this platform")

// Pin always fails on unsupported platforms.
func Pin(cpu int) error { return ErrUnsupported }

// NumCPU reports how many CPUs are visible, for callers that want an
// upper bound even when Pin itself is unavailable.
func NumCPU() int { return runtime.NumCPU() }
