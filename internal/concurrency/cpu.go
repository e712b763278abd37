// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
)

// NumCPUs returns the number of logical CPUs.
func NumCPUs() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// DefaultRunnerCount is the reactor count used when none is configured:
// one and a half runners per two CPUs, at least one.
func DefaultRunnerCount() int {
	return max(1, NumCPUs()/2*3)
}
