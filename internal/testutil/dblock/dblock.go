// Package dblock serializes integration tests that share one PostgreSQL
// database across test binaries by holding a local TCP port.
package dblock

import (
	"net"
	"os"
	"time"
)

const defaultLockAddr = "127.0.0.1:45432"

func lockAddr() string {
	if addr := os.Getenv("LEDGER_TEST_DB_LOCK_ADDR"); addr != "" {
		return addr
	}
	return defaultLockAddr
}

// Acquire blocks until the lock is held and returns its release function.
func Acquire() func() {
	addr := lockAddr()
	for {
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return func() { ln.Close() }
		}
		time.Sleep(50 * time.Millisecond)
	}
}
