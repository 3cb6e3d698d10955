// +build !linux

package core

import (
	"bytes"
	"runtime"
	"strconv"
)

// CurrentThreadID falls back to the goroutine id where the kernel thread id
// is not exposed. Every context is driven by a single goroutine, so the value
// still tells contexts apart.
func CurrentThreadID() int64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	if i := bytes.IndexByte(buf, ' '); i > 0 {
		buf = buf[:i]
	}
	id, err := strconv.ParseInt(string(buf), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
