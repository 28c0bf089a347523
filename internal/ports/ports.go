// Package ports probes local TCP ports and allocates free ones for the worker.
//
// Two different questions are asked of a port:
//   - IsPortOpen: does something answer here? Used to decide whether an
//     existing occupant might be our worker.
//   - CanBind: could we listen here? Used by the allocator; success means free.
//
// Neither returns an error: every failure is a boolean signal.
package ports

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// DefaultMaxAttempts bounds the allocator's forward scan.
const DefaultMaxAttempts = 100

// DialTimeout bounds IsPortOpen.
const DialTimeout = 300 * time.Millisecond

// ErrNoPortAvailable is returned when the allocator exhausts its scan budget.
var ErrNoPortAvailable = errors.New("no available port")

// Host is the loopback name used for every probe and for the worker URL.
const Host = "localhost"

// Addr returns "localhost:<port>".
func Addr(port int) string {
	return net.JoinHostPort(Host, strconv.Itoa(port))
}

// IsPortOpen reports whether something accepts TCP connections on localhost:port.
func IsPortOpen(port int) bool {
	conn, err := net.DialTimeout("tcp", Addr(port), DialTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// CanBind reports whether localhost:port can be bound right now.
// The listener is closed immediately; "address in use" and every other
// failure count as not free.
func CanBind(port int) bool {
	if port <= 0 || port > 65535 {
		return false
	}
	ln, err := net.Listen("tcp", Addr(port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

// Allocator scans forward from a start port for a free one.
type Allocator struct {
	// Free reports whether a port may be used. Defaults to CanBind.
	Free func(port int) bool

	// MaxAttempts bounds the scan. Defaults to DefaultMaxAttempts.
	MaxAttempts int
}

// FindAvailablePort returns the first port in [start, start+maxAttempts) that
// can be bound. maxAttempts <= 0 means DefaultMaxAttempts.
func FindAvailablePort(start, maxAttempts int) (int, error) {
	return (&Allocator{MaxAttempts: maxAttempts}).Find(start)
}

// Find returns the first free port at or after start, or ErrNoPortAvailable.
func (a *Allocator) Find(start int) (int, error) {
	free := a.Free
	if free == nil {
		free = CanBind
	}
	attempts := a.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	last := start
	for i := 0; i < attempts; i++ {
		port := start + i
		if port > 65535 {
			break
		}
		last = port
		if free(port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("%w in range %d-%d", ErrNoPortAvailable, start, last)
}
