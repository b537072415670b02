//go:build linux

package thread

import "golang.org/x/sys/unix"

// osThreadID returns the kernel thread id currently running the caller.
// Diagnostic only; goroutines migrate between OS threads.
func osThreadID() int {
	return unix.Gettid()
}
