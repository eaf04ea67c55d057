package util

import "runtime"

// HardwareParallelism returns the worker-pool width to use for the
// preprocessor's chunk extraction pool (spec.md §4.3 step 3, §5,
// §9: "worker pool of size equal to hardware parallelism").
func HardwareParallelism() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		return 1
	}
	return n
}
