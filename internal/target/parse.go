package target

import (
	"context"
	"fmt"
	"net/netip"
	"slices"
	"strconv"
	"strings"

	"github.com/anstrom/netsweep/internal/errors"
)

const (
	maxPort                = 65535
	expectedPortRangeParts = 2
)

// Parser turns specification strings into Spec values. Hostname tokens are
// resolved through the configured Resolver at parse time so that malformed
// or unresolvable input is rejected before any probing begins.
type Parser struct {
	resolver Resolver
}

// NewParser creates a parser using the given resolver. A nil resolver
// disables hostname targets; IPs and CIDR blocks still parse.
func NewParser(resolver Resolver) *Parser {
	return &Parser{resolver: resolver}
}

// Parse parses a target specification (single host, comma-separated list,
// or CIDR notation) and a port specification (single port, comma list, or
// ranges like "1-1024") into a Spec. Both fail with a TARGET_INVALID error
// on malformed input.
func (p *Parser) Parse(ctx context.Context, targets, ports string) (*Spec, error) {
	ranges, err := p.parseTargets(ctx, targets)
	if err != nil {
		return nil, err
	}

	portList, err := ParsePorts(ports)
	if err != nil {
		return nil, err
	}

	return &Spec{ranges: ranges, ports: portList}, nil
}

// parseTargets parses the host part of the specification.
func (p *Parser) parseTargets(ctx context.Context, targets string) ([]hostRange, error) {
	targets = strings.TrimSpace(targets)
	if targets == "" {
		return nil, errors.NewScanError(errors.CodeTargetInvalid, "empty target specification")
	}

	var ranges []hostRange
	for _, token := range strings.Split(targets, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, errors.ErrInvalidTarget(targets)
		}

		parsed, err := p.parseToken(ctx, token)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, parsed...)
	}
	return ranges, nil
}

// parseToken parses one comma-separated token: CIDR, IP address, or hostname.
func (p *Parser) parseToken(ctx context.Context, token string) ([]hostRange, error) {
	if strings.Contains(token, "/") {
		prefix, err := netip.ParsePrefix(token)
		if err != nil {
			return nil, errors.WrapScanErrorWithTarget(
				errors.CodeTargetInvalid, "invalid CIDR notation", token, err)
		}
		if err := checkPrefixSize(prefix); err != nil {
			return nil, err
		}
		return []hostRange{{prefix: prefix.Masked(), isCIDR: true}}, nil
	}

	if addr, err := netip.ParseAddr(token); err == nil {
		return []hostRange{{addr: addr.Unmap()}}, nil
	}

	// Not an address: treat as hostname.
	if p.resolver == nil {
		return nil, errors.ErrInvalidTarget(token)
	}
	addrs, err := p.resolver.LookupHost(ctx, token)
	if err != nil {
		return nil, errors.WrapScanErrorWithTarget(
			errors.CodeTargetInvalid, "hostname did not resolve", token, err)
	}
	if len(addrs) == 0 {
		return nil, errors.NewScanErrorWithTarget(
			errors.CodeTargetInvalid, "hostname resolved to no addresses", token)
	}
	ranges := make([]hostRange, 0, len(addrs))
	for _, addr := range addrs {
		ranges = append(ranges, hostRange{addr: addr.Unmap()})
	}
	return ranges, nil
}

// checkPrefixSize rejects CIDR blocks too large to expand.
func checkPrefixSize(prefix netip.Prefix) error {
	minBits := minIPv4PrefixBits
	if prefix.Addr().Is6() {
		minBits = minIPv6PrefixBits
	}
	if prefix.Bits() < minBits {
		return errors.NewScanErrorWithTarget(
			errors.CodeTargetInvalid,
			fmt.Sprintf("network too large, smallest allowed prefix is /%d", minBits),
			prefix.String())
	}
	return nil
}

// ParsePorts parses a port specification into a sorted, deduplicated list.
// Supported forms: "22", "22,80,443", "1-1024", and mixes of those. An empty
// specification is valid and yields no ports (host-level probing).
func ParsePorts(spec string) ([]uint16, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	seen := make(map[uint16]struct{})
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, errors.ErrInvalidPortSpec(spec)
		}
		if strings.Contains(part, "-") {
			if err := parsePortRange(part, seen); err != nil {
				return nil, err
			}
			continue
		}
		port, err := parsePortNumber(part)
		if err != nil {
			return nil, err
		}
		seen[port] = struct{}{}
	}

	ports := make([]uint16, 0, len(seen))
	for port := range seen {
		ports = append(ports, port)
	}
	slices.Sort(ports)
	return ports, nil
}

// parsePortRange parses a "start-end" token into the seen set.
func parsePortRange(part string, seen map[uint16]struct{}) error {
	bounds := strings.SplitN(part, "-", expectedPortRangeParts)
	if len(bounds) != expectedPortRangeParts {
		return errors.ErrInvalidPortSpec(part)
	}
	start, err := parsePortNumber(bounds[0])
	if err != nil {
		return err
	}
	end, err := parsePortNumber(bounds[1])
	if err != nil {
		return err
	}
	if start > end {
		return errors.NewScanErrorWithTarget(
			errors.CodeTargetInvalid, "port range start greater than end", part)
	}
	for p := int(start); p <= int(end); p++ {
		seen[uint16(p)] = struct{}{}
	}
	return nil
}

// parsePortNumber parses a single port, enforcing 1..65535.
func parsePortNumber(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.WrapScanErrorWithTarget(
			errors.CodeTargetInvalid, "invalid port number", s, err)
	}
	if v < 1 || v > maxPort {
		return 0, errors.NewScanErrorWithTarget(
			errors.CodeTargetInvalid,
			fmt.Sprintf("port %d out of range 1-%d", v, maxPort), s)
	}
	return uint16(v), nil
}
