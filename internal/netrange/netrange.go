package netrange

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

var (
	// ErrInvalidCIDR is returned when a CIDR string cannot be parsed.
	ErrInvalidCIDR = errors.New("invalid CIDR notation")
)

// Range is an immutable IP network expressed as base-address/prefix-length.
// Build it once with Parse; a zero Range matches nothing.
type Range struct {
	base   []byte
	prefix int
	v6     bool
	text   string
}

// Parse parses CIDR notation ("10.0.0.0/8", "fe80::/64") into a Range.
// The left side must be a valid IPv4 or IPv6 literal and the prefix length
// must fit the address family's bit width.
func Parse(text string) (Range, error) {
	addrPart, prefixPart, found := strings.Cut(strings.TrimSpace(text), "/")
	if !found {
		return Range{}, fmt.Errorf("%w: %q missing prefix length", ErrInvalidCIDR, text)
	}

	ip := net.ParseIP(addrPart)
	if ip == nil {
		return Range{}, fmt.Errorf("%w: %q has an invalid address", ErrInvalidCIDR, text)
	}

	prefix, err := strconv.Atoi(prefixPart)
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q has a non-numeric prefix length", ErrInvalidCIDR, text)
	}

	base := ip.To4()
	v6 := false
	maxBits := 32
	if base == nil {
		base = ip.To16()
		v6 = true
		maxBits = 128
	}

	if prefix < 0 || prefix > maxBits {
		return Range{}, fmt.Errorf("%w: %q prefix length out of range [0,%d]", ErrInvalidCIDR, text, maxBits)
	}

	out := make([]byte, len(base))
	copy(out, base)
	return Range{base: out, prefix: prefix, v6: v6, text: strings.TrimSpace(text)}, nil
}

// ParseAll parses every string in texts, skipping malformed entries. It
// returns the valid ranges together with the rejected inputs so callers can
// log them; a bad entry never fails the whole list.
func ParseAll(texts []string) ([]Range, []string) {
	ranges := make([]Range, 0, len(texts))
	var rejected []string
	for _, text := range texts {
		r, err := Parse(text)
		if err != nil {
			rejected = append(rejected, text)
			continue
		}
		ranges = append(ranges, r)
	}
	return ranges, rejected
}

// Contains reports whether ip falls inside the range. Addresses of a
// different family than the range never match.
func (r Range) Contains(ip net.IP) bool {
	if len(r.base) == 0 || ip == nil {
		return false
	}

	addr := ip.To4()
	if r.v6 {
		if addr != nil {
			return false
		}
		addr = ip.To16()
	}
	if addr == nil || len(addr) != len(r.base) {
		return false
	}

	fullBytes := r.prefix / 8
	for i := 0; i < fullBytes; i++ {
		if addr[i] != r.base[i] {
			return false
		}
	}

	// Partial byte: compare only the top prefix%8 bits.
	if remainder := r.prefix % 8; remainder != 0 {
		mask := byte(0xFF << (8 - remainder))
		if addr[fullBytes]&mask != r.base[fullBytes]&mask {
			return false
		}
	}

	return true
}

// IsIPv6 reports the address family of the range.
func (r Range) IsIPv6() bool { return r.v6 }

// PrefixLength returns the configured prefix length in bits.
func (r Range) PrefixLength() int { return r.prefix }

// String returns the notation the range was parsed from.
func (r Range) String() string { return r.text }
