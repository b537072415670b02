//go:build !unix

package signals

import "os"

// fatalSignalSet is empty where no trappable fatal-signal set exists;
// Install degrades to a no-op.
func fatalSignalSet() []os.Signal {
	return nil
}

func reraise(os.Signal) {}
