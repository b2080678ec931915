package hal

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Default token identity (Alcor Micro flash drive).
const (
	DefaultVendorID  uint16 = 0x058f
	DefaultProductID uint16 = 0x6387
)

// Token describes an attached token.
type Token struct {
	VendorID  uint16
	ProductID uint16
	Path      string // sysfs devpath or simulated file path
	Bus       uint8
	Dev       uint8
}

// String returns "vvvv:pppp" with the location when known.
func (t Token) String() string {
	s := fmt.Sprintf("%04x:%04x", t.VendorID, t.ProductID)
	if t.Bus != 0 || t.Dev != 0 {
		s += fmt.Sprintf(" bus %03d dev %03d", t.Bus, t.Dev)
	}
	return s
}

// Filter selects tokens by ID. A zero field matches any value.
type Filter struct {
	VendorID  uint16
	ProductID uint16
}

// DefaultFilter matches the default token.
var DefaultFilter = Filter{VendorID: DefaultVendorID, ProductID: DefaultProductID}

// Match reports whether vid and pid pass the filter.
func (f Filter) Match(vid, pid uint16) bool {
	return (f.VendorID == 0 || f.VendorID == vid) &&
		(f.ProductID == 0 || f.ProductID == pid)
}

// String implements fmt.Stringer.
func (f Filter) String() string {
	return fmt.Sprintf("%04x:%04x", f.VendorID, f.ProductID)
}

// ParseID parses a 16-bit hexadecimal ID with optional 0x prefix.
func ParseID(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid USB ID %q: %w", s, err)
	}
	return uint16(v), nil
}

// TokenHAL reports token arrival and removal.
//
// Callers use it as Init, Start, then any number of alternating
// WaitForAttach and WaitForDetach calls, then Stop and Close. Wait calls
// return pkg.ErrCancelled once the HAL is stopped and ctx.Err() when ctx
// is done.
type TokenHAL interface {
	// Init acquires resources. The context bounds the HAL's lifetime.
	Init(ctx context.Context) error

	// Start begins monitoring. A token present at Start is reported by
	// the first WaitForAttach.
	Start() error

	// Stop ends monitoring and unblocks waiters.
	Stop() error

	// Close releases resources.
	Close() error

	// WaitForAttach blocks until a matching token arrives.
	WaitForAttach(ctx context.Context) (Token, error)

	// WaitForDetach blocks until the attached token is removed.
	WaitForDetach(ctx context.Context) (Token, error)
}
