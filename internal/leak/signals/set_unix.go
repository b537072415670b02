//go:build unix

package signals

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// fatalSignalSet returns the signals that terminate the process by default
// and deserve a stack trace first.
func fatalSignalSet() []os.Signal {
	return []os.Signal{
		unix.SIGSEGV,
		unix.SIGBUS,
		unix.SIGILL,
		unix.SIGABRT,
		unix.SIGFPE,
		unix.SIGTRAP,
	}
}

// reraise hands the signal back to the platform: drop our handler, then
// deliver the same signal again so the default disposition runs.
func reraise(sig os.Signal) {
	signal.Reset(sig)
	if s, ok := sig.(syscall.Signal); ok {
		_ = unix.Kill(os.Getpid(), s)
	}
}
