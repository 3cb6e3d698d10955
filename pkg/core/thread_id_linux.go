// +build linux

package core

import "golang.org/x/sys/unix"

// CurrentThreadID returns the kernel id of the calling OS thread. It is only
// stable for goroutines locked to their thread.
func CurrentThreadID() int64 {
	return int64(unix.Gettid())
}
