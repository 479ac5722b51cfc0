package ddns

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

// dnsExchanger abstracts dns.Client.ExchangeContext for testability.
type dnsExchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, addr string) (*dns.Msg, time.Duration, error)
}

// whoamiName is the resolver "whoami" convention served by Cloudflare's
// public resolvers (1.1.1.1 and 2606:4700:4700::1111): a CHAOS TXT query for
// this name is answered with the textual address the query arrived from.
const whoamiName = "whoami.cloudflare."

// DNSResolver constructs a resolver that asks server for this host's public
// address over the DNS protocol instead of HTTP.
//
// The query is forced over UDP on the matching family ("udp4"/"udp6"),
// so the answered address is guaranteed to be of the requested family.
// server may omit the port, which defaults to 53.
func DNSResolver(family Family, server string) Resolver {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	proto := "udp4"
	if family == IPv6 {
		proto = "udp6"
	}
	return &dnsResolver{
		family:    family,
		server:    server,
		exchanger: &dns.Client{Net: proto, Timeout: 10 * time.Second},
	}
}

type dnsResolver struct {
	family    Family
	server    string
	exchanger dnsExchanger
}

// Resolve implements ddns.Resolver.
func (dr *dnsResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	m := new(dns.Msg)
	m.SetQuestion(whoamiName, dns.TypeTXT)
	m.Question[0].Qclass = dns.ClassCHAOS

	resp, _, err := dr.exchanger.ExchangeContext(ctx, m, dr.server)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("whoami query to %s failed: %w", dr.server, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return netip.Addr{}, fmt.Errorf("whoami query to %s returned %s", dr.server, dns.RcodeToString[resp.Rcode])
	}
	for _, rr := range resp.Answer {
		txt, ok := rr.(*dns.TXT)
		if !ok || len(txt.Txt) == 0 {
			continue
		}
		addr, err := netip.ParseAddr(txt.Txt[0])
		if err != nil {
			return netip.Addr{}, fmt.Errorf("error parsing %s address from whoami answer %q: %w", dr.family, txt.Txt[0], err)
		}
		addr = addr.Unmap()
		if !dr.family.Matches(addr) {
			return netip.Addr{}, fmt.Errorf("server %s answered whoami with %s, which is not an %s address", dr.server, addr, dr.family)
		}
		return addr, nil
	}
	return netip.Addr{}, fmt.Errorf("whoami query to %s returned no TXT answer", dr.server)
}
