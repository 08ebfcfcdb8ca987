// Package id generates identifiers for bridge sessions, ports and host
// connections.
//
// Sessions and ports use prefixed ULIDs so log lines sort by creation time
// and read at a glance (sess_01H..., port_01H...). Host connections use
// random UUIDs, matching what websocket clients usually log on their side.
package id

import (
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// SessionID identifies one streaming port session.
type SessionID string

// PortID identifies a port opened over a host connection.
type PortID string

// ConnectionID identifies one host transport connection.
type ConnectionID string

const (
	SessionPrefix = "sess"
	PortPrefix    = "port"
)

// Source hands out ULIDs that increase strictly, even within one millisecond.
type Source struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// NewSource returns a Source reading randomness from r (crypto/rand when nil).
func NewSource(r io.Reader) *Source {
	if r == nil {
		r = rand.Reader
	}
	return &Source{entropy: ulid.Monotonic(r, 0), now: time.Now}
}

var shared = NewSource(nil)

// Next returns the next ULID.
func (s *Source) Next() ulid.ULID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy)
}

// Prefixed returns prefix_ULID.
func (s *Source) Prefixed(prefix string) string {
	return prefix + "_" + s.Next().String()
}

func NewSessionID() SessionID { return SessionID(shared.Prefixed(SessionPrefix)) }

func NewPortID() PortID { return PortID(shared.Prefixed(PortPrefix)) }

func NewConnectionID() ConnectionID { return ConnectionID(uuid.NewString()) }

func (id SessionID) String() string    { return string(id) }
func (id PortID) String() string       { return string(id) }
func (id ConnectionID) String() string { return string(id) }

// parse strips any prefix and decodes the ULID.
func parse(s string) (ulid.ULID, error) {
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	return ulid.ParseStrict(s)
}

// IsValid reports whether s is a ULID, with or without a prefix.
func IsValid(s string) bool {
	_, err := parse(s)
	return err == nil
}

// Timestamp extracts the creation time from a (prefixed) ULID.
func Timestamp(s string) (time.Time, error) {
	u, err := parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
