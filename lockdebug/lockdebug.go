// Package lockdebug asserts the VM core's lock hierarchy at runtime: the
// page-table lock must be acquired before any PTE lock, never the other
// way around. It is the spiritual successor of the source's caller.go,
// which used runtime.Callers to fingerprint call chains; here the same
// kind of introspection tracks, per goroutine, which level of the
// hierarchy is currently held.
package lockdebug

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"sync"
)

// Enabled gates the bookkeeping, mirroring the source's Stats/Timing
// build-time switches. Leave it on in tests; a production build under
// real lock-free-of-bugs confidence could flip it off to avoid the
// per-lock goroutine-id lookup.
const Enabled = true

// Level identifies a rung in the lock hierarchy, top-down.
type Level int

const (
	Table Level = iota + 1
	Entry
)

func (l Level) String() string {
	switch l {
	case Table:
		return "page-table"
	case Entry:
		return "pte"
	default:
		return "unknown"
	}
}

var (
	mu    sync.Mutex
	stack = map[uint64][]Level{}
)

// Enter records that the calling goroutine is about to acquire a lock at
// the given level, panicking if doing so would violate the hierarchy
// (acquiring a lower-numbered level while a higher one is already held).
// It returns a function that must be called when the lock is released.
func Enter(level Level) func() {
	if !Enabled {
		return func() {}
	}
	id := goid()

	mu.Lock()
	held := stack[id]
	if len(held) > 0 && held[len(held)-1] >= level {
		mu.Unlock()
		panic(fmt.Sprintf("lockdebug: out-of-order acquire of %v lock while holding %v\n%s",
			level, held[len(held)-1], callers(3)))
	}
	stack[id] = append(held, level)
	mu.Unlock()

	return func() {
		mu.Lock()
		s := stack[id]
		stack[id] = s[:len(s)-1]
		mu.Unlock()
	}
}

func callers(skip int) string {
	var buf bytes.Buffer
	for i := skip; ; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fmt.Fprintf(&buf, "\t%s:%d\n", file, line)
	}
	return buf.String()
}

// goid extracts the calling goroutine's id from its stack trace header,
// the same trick runtime introspection libraries have used for years in
// the absence of an exported runtime.Goid.
func goid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// "goroutine 123 [running]:..."
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
