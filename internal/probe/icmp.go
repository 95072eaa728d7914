package probe

import (
	"context"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	defaultICMPTimeout = 2 * time.Second

	// IANA protocol numbers for parsing received messages.
	protocolICMP     = 1
	protocolIPv6ICMP = 58

	icmpReadBufferSize = 1500
)

// ICMPProber performs ICMP echo probes. It prefers a raw ICMP socket and
// falls back to an unprivileged datagram socket (Linux allows these for
// users in ping_group_range).
type ICMPProber struct {
	id  int
	seq atomic.Uint32
}

// NewICMPProber creates an ICMP echo prober.
func NewICMPProber() *ICMPProber {
	return &ICMPProber{id: os.Getpid() & 0xffff}
}

// Probe sends one echo request and waits for the reply. An echo reply
// reports open, a destination-unreachable reports closed, silence up to the
// timeout reports filtered, and socket failures (typically missing
// privileges) report error.
func (p *ICMPProber) Probe(ctx context.Context, req Request) Result {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultICMPTimeout
	}

	res := Result{
		Target:   req.Target,
		Protocol: ProtocolICMP,
	}

	conn, dgram, err := p.listen(req)
	if err != nil {
		res.Status = StatusError
		res.Detail = err.Error()
		return res
	}
	defer conn.Close()

	seq := int(p.seq.Add(1) & 0xffff)
	msg := p.buildEcho(req, seq)
	payload, err := msg.Marshal(nil)
	if err != nil {
		res.Status = StatusError
		res.Detail = err.Error()
		return res
	}

	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		res.Status = StatusError
		res.Detail = err.Error()
		return res
	}

	start := time.Now()
	if _, err := conn.WriteTo(payload, p.destAddr(req, dgram)); err != nil {
		return classifyDialError(res, err)
	}

	return p.awaitReply(conn, req, seq, dgram, start, res)
}

// listen opens an ICMP socket for the target's address family. The second
// return value reports whether the socket is an unprivileged datagram
// socket, which changes addressing and reply matching.
func (p *ICMPProber) listen(req Request) (conn *icmp.PacketConn, dgram bool, err error) {
	if req.Target.Addr.Is4() {
		if conn, err = icmp.ListenPacket("ip4:icmp", "0.0.0.0"); err == nil {
			return conn, false, nil
		}
		conn, err = icmp.ListenPacket("udp4", "0.0.0.0")
		return conn, true, err
	}
	if conn, err = icmp.ListenPacket("ip6:ipv6-icmp", "::"); err == nil {
		return conn, false, nil
	}
	conn, err = icmp.ListenPacket("udp6", "::")
	return conn, true, err
}

// buildEcho constructs the echo request for the target's address family.
func (p *ICMPProber) buildEcho(req Request, seq int) *icmp.Message {
	body := &icmp.Echo{
		ID:   p.id,
		Seq:  seq,
		Data: []byte("netsweep echo probe"),
	}
	if req.Target.Addr.Is4() {
		return &icmp.Message{Type: ipv4.ICMPTypeEcho, Body: body}
	}
	return &icmp.Message{Type: ipv6.ICMPTypeEchoRequest, Body: body}
}

// destAddr builds the destination address for the socket flavor in use.
func (p *ICMPProber) destAddr(req Request, dgram bool) net.Addr {
	ip := req.Target.Addr.AsSlice()
	if dgram {
		return &net.UDPAddr{IP: ip}
	}
	return &net.IPAddr{IP: ip}
}

// awaitReply reads from the socket until a matching reply, an unreachable
// notification, or the deadline.
func (p *ICMPProber) awaitReply(
	conn *icmp.PacketConn, req Request, seq int, dgram bool, start time.Time, res Result,
) Result {
	proto := protocolICMP
	if req.Target.Addr.Is6() {
		proto = protocolIPv6ICMP
	}

	buf := make([]byte, icmpReadBufferSize)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			return classifyDialError(res, err)
		}

		msg, err := icmp.ParseMessage(proto, buf[:n])
		if err != nil {
			continue
		}

		switch msg.Type {
		case ipv4.ICMPTypeEchoReply, ipv6.ICMPTypeEchoReply:
			if !p.matchesEcho(msg, seq, dgram) {
				continue
			}
			if !peerMatches(peer, req) {
				continue
			}
			res.Status = StatusOpen
			res.Latency = time.Since(start)
			return res
		case ipv4.ICMPTypeDestinationUnreachable, ipv6.ICMPTypeDestinationUnreachable:
			res.Status = StatusClosed
			res.Detail = "destination unreachable"
			res.Latency = time.Since(start)
			return res
		}
	}
}

// matchesEcho reports whether a reply belongs to this probe. Datagram
// sockets rewrite the echo ID, so only the sequence number is comparable.
func (p *ICMPProber) matchesEcho(msg *icmp.Message, seq int, dgram bool) bool {
	echo, ok := msg.Body.(*icmp.Echo)
	if !ok {
		return false
	}
	if echo.Seq != seq {
		return false
	}
	return dgram || echo.ID == p.id
}

// peerMatches reports whether the reply came from the probed address.
func peerMatches(peer net.Addr, req Request) bool {
	var ip net.IP
	switch addr := peer.(type) {
	case *net.IPAddr:
		ip = addr.IP
	case *net.UDPAddr:
		ip = addr.IP
	default:
		return false
	}
	return ip.Equal(req.Target.Addr.AsSlice())
}
