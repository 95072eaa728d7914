package target

import (
	"context"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"

	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/logging"
)

const (
	defaultResolveTimeout = 5 * time.Second
	resolvConfPath        = "/etc/resolv.conf"
	defaultDNSPort        = "53"
)

// Resolver resolves hostnames to addresses.
type Resolver interface {
	LookupHost(ctx context.Context, name string) ([]netip.Addr, error)
}

// DNSResolver resolves names by querying the system's configured nameservers
// directly, falling back to the OS resolver when no nameserver answers.
type DNSResolver struct {
	client  *dns.Client
	servers []string
	logger  *logging.Logger
}

// ResolverOption configures a DNSResolver.
type ResolverOption func(*DNSResolver)

// WithServers overrides the nameservers from the system configuration.
// Servers are bare IP addresses; the standard DNS port is assumed.
func WithServers(servers []string) ResolverOption {
	return func(r *DNSResolver) {
		r.servers = r.servers[:0]
		for _, s := range servers {
			r.servers = append(r.servers, net.JoinHostPort(s, defaultDNSPort))
		}
	}
}

// WithQueryTimeout sets the timeout for a single DNS exchange.
func WithQueryTimeout(timeout time.Duration) ResolverOption {
	return func(r *DNSResolver) {
		if timeout > 0 {
			r.client.Timeout = timeout
		}
	}
}

// NewDNSResolver creates a resolver from the system resolver configuration.
func NewDNSResolver(logger *logging.Logger, opts ...ResolverOption) *DNSResolver {
	if logger == nil {
		logger = logging.Default()
	}

	var servers []string
	if conf, err := dns.ClientConfigFromFile(resolvConfPath); err == nil {
		port := conf.Port
		if port == "" {
			port = defaultDNSPort
		}
		for _, s := range conf.Servers {
			servers = append(servers, net.JoinHostPort(s, port))
		}
	}

	resolver := &DNSResolver{
		client:  &dns.Client{Timeout: defaultResolveTimeout},
		servers: servers,
		logger:  logger.WithComponent("resolver"),
	}
	for _, opt := range opts {
		opt(resolver)
	}
	return resolver
}

// LookupHost resolves a hostname to its A and AAAA addresses. It fails with
// a RESOLVE_FAILED error when the name does not resolve anywhere.
func (r *DNSResolver) LookupHost(ctx context.Context, name string) ([]netip.Addr, error) {
	var addrs []netip.Addr
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		found, err := r.query(ctx, name, qtype)
		if err != nil {
			r.logger.Debug("direct DNS query failed", "name", name, "qtype", qtype, "error", err)
			continue
		}
		addrs = append(addrs, found...)
	}
	if len(addrs) > 0 {
		return addrs, nil
	}

	// No usable answer from configured nameservers: let the OS resolver try
	// (covers hosts files, mDNS, and split-horizon setups).
	return r.systemLookup(ctx, name)
}

// query sends a single question to each configured nameserver in order.
func (r *DNSResolver) query(ctx context.Context, name string, qtype uint16) ([]netip.Addr, error) {
	if len(r.servers) == 0 {
		return nil, errors.NewResolveError("no nameservers configured", name)
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		reply, _, err := r.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = err
			continue
		}
		if reply.Rcode != dns.RcodeSuccess {
			lastErr = errors.NewResolveError(dns.RcodeToString[reply.Rcode], name)
			continue
		}
		return answersToAddrs(reply), nil
	}
	return nil, errors.WrapResolveError("all nameservers failed", name, lastErr)
}

// answersToAddrs extracts addresses from A and AAAA answer records.
func answersToAddrs(reply *dns.Msg) []netip.Addr {
	var addrs []netip.Addr
	for _, rr := range reply.Answer {
		switch record := rr.(type) {
		case *dns.A:
			if addr, ok := netip.AddrFromSlice(record.A.To4()); ok {
				addrs = append(addrs, addr)
			}
		case *dns.AAAA:
			if addr, ok := netip.AddrFromSlice(record.AAAA); ok {
				addrs = append(addrs, addr)
			}
		}
	}
	return addrs
}

// systemLookup resolves through the OS resolver.
func (r *DNSResolver) systemLookup(ctx context.Context, name string) ([]netip.Addr, error) {
	ips, err := net.DefaultResolver.LookupNetIP(ctx, "ip", name)
	if err != nil {
		return nil, errors.WrapResolveError("hostname lookup failed", name, err)
	}
	addrs := make([]netip.Addr, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, ip.Unmap())
	}
	return addrs, nil
}
