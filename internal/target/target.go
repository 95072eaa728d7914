// Package target provides target specification parsing and expansion for netsweep.
// A specification string (single host, comma-separated list, or CIDR block)
// plus a port specification is parsed up front into a strongly-typed Spec,
// which then produces a lazy, restartable sequence of individual targets.
package target

import (
	"fmt"
	"iter"
	"net/netip"
)

const (
	// Expansion limits. Anything larger is rejected at parse time rather
	// than silently producing millions of probes.
	minIPv4PrefixBits = 16
	minIPv6PrefixBits = 112
)

// Target is a single address plus an optional port. Port 0 means the target
// is probed at the host level (ICMP echo) rather than a specific port.
type Target struct {
	Addr netip.Addr
	Port uint16
}

// String returns the target in host:port form, or just the address when no
// port is set.
func (t Target) String() string {
	if t.Port == 0 {
		return t.Addr.String()
	}
	return netip.AddrPortFrom(t.Addr, t.Port).String()
}

// Key returns a stable identity for deduplication and report keying.
func (t Target) Key() string {
	return t.String()
}

// Compare orders targets by address, then port.
func (t Target) Compare(other Target) int {
	if c := t.Addr.Compare(other.Addr); c != 0 {
		return c
	}
	switch {
	case t.Port < other.Port:
		return -1
	case t.Port > other.Port:
		return 1
	default:
		return 0
	}
}

// hostRange is one parsed token of the target specification: either a single
// address or a CIDR block to expand.
type hostRange struct {
	addr   netip.Addr
	prefix netip.Prefix
	isCIDR bool
}

// Spec is a parsed target and port specification. It is immutable once
// created and its expansion has no side effects.
type Spec struct {
	ranges []hostRange
	ports  []uint16
}

// Ports returns the parsed port list, sorted ascending with duplicates removed.
func (s *Spec) Ports() []uint16 {
	out := make([]uint16, len(s.ports))
	copy(out, s.ports)
	return out
}

// AddrCount returns the number of distinct addresses the spec expands to.
func (s *Spec) AddrCount() int {
	seen := make(map[netip.Addr]struct{})
	for addr := range s.Addrs() {
		seen[addr] = struct{}{}
	}
	return len(seen)
}

// Count returns the total number of targets the spec expands to.
func (s *Spec) Count() int {
	n := s.AddrCount()
	if len(s.ports) == 0 {
		return n
	}
	return n * len(s.ports)
}

// Addrs returns a lazy, restartable sequence of the distinct addresses in
// the spec, in specification order. CIDR blocks exclude the network and
// broadcast addresses for IPv4 prefixes shorter than /31; /31 and /32
// (and their IPv6 equivalents) yield their literal addresses.
func (s *Spec) Addrs() iter.Seq[netip.Addr] {
	return func(yield func(netip.Addr) bool) {
		seen := make(map[netip.Addr]struct{})
		emit := func(addr netip.Addr) bool {
			if _, dup := seen[addr]; dup {
				return true
			}
			seen[addr] = struct{}{}
			return yield(addr)
		}
		for _, r := range s.ranges {
			if !r.isCIDR {
				if !emit(r.addr) {
					return
				}
				continue
			}
			for addr := range expandPrefix(r.prefix) {
				if !emit(addr) {
					return
				}
			}
		}
	}
}

// Targets returns a lazy, restartable sequence of Target values: every
// address crossed with every port. With no ports it yields one host-level
// target per address.
func (s *Spec) Targets() iter.Seq[Target] {
	return func(yield func(Target) bool) {
		for addr := range s.Addrs() {
			if len(s.ports) == 0 {
				if !yield(Target{Addr: addr}) {
					return
				}
				continue
			}
			for _, port := range s.ports {
				if !yield(Target{Addr: addr, Port: port}) {
					return
				}
			}
		}
	}
}

// expandPrefix yields the usable addresses of a CIDR block in order.
func expandPrefix(prefix netip.Prefix) iter.Seq[netip.Addr] {
	return func(yield func(netip.Addr) bool) {
		first := prefix.Masked().Addr()
		hostBits := first.BitLen() - prefix.Bits()

		// /31, /32 and the IPv6 equivalents have no network/broadcast
		// distinction: yield everything.
		if hostBits <= 1 {
			addr := first
			for prefix.Contains(addr) {
				if !yield(addr) {
					return
				}
				addr = addr.Next()
			}
			return
		}

		// IPv6 has no broadcast address, but mirroring the IPv4 hosts()
		// behavior keeps expansion counts uniform across families.
		addr := first.Next()
		last := lastAddr(prefix)
		for addr.Less(last) {
			if !yield(addr) {
				return
			}
			addr = addr.Next()
		}
	}
}

// lastAddr returns the highest address in a prefix (the IPv4 broadcast).
func lastAddr(prefix netip.Prefix) netip.Addr {
	bytes := prefix.Masked().Addr().AsSlice()
	bits := prefix.Bits()
	for i := bits; i < len(bytes)*8; i++ {
		bytes[i/8] |= 1 << (7 - i%8)
	}
	addr, ok := netip.AddrFromSlice(bytes)
	if !ok {
		panic(fmt.Sprintf("invalid address bytes for prefix %s", prefix))
	}
	return addr
}
