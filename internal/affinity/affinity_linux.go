//go:build linux
// +build linux

// File: internal/affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux sched_setaffinity(2)-based core pinning.

package affinity

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Pin locks the calling goroutine to its current OS thread and
// restricts that thread to cpu. Callers that want the pin to hold must
// not return from the goroutine that called Pin without it continuing
// to own the thread (the tick driver's run loop does this naturally:
// Pin is called once at the top of the loop goroutine).
func Pin(cpu int) error {
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("affinity: sched_setaffinity cpu %d: %w", cpu, err)
	}
	return nil
}

// NumCPU reports how many CPUs are available to pin against.
func NumCPU() int { return runtime.NumCPU() }
