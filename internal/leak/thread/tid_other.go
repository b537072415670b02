//go:build !linux

package thread

// osThreadID returns 0 on platforms without a cheap thread-id accessor.
func osThreadID() int {
	return 0
}
