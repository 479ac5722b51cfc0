package ddns

import (
	"fmt"
	"net/netip"
)

// Family selects which address family a resolver looks up and which DNS
// record type the reconciler manages for it.
type Family int

const (
	IPv4 Family = iota
	IPv6
)

// Families lists both address families in reconciliation order.
var Families = [...]Family{IPv4, IPv6}

// RecordType returns the DNS record type managed for the family:
// "A" for IPv4 and "AAAA" for IPv6.
func (f Family) RecordType() string {
	switch f {
	case IPv4:
		return "A"
	case IPv6:
		return "AAAA"
	}
	panic("ddns: unknown address family")
}

func (f Family) String() string {
	switch f {
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// Matches reports whether addr belongs to the family.
// 4-in-6 mapped addresses count as IPv4.
func (f Family) Matches(addr netip.Addr) bool {
	return addr.IsValid() && FamilyOf(addr) == f
}

// FamilyOf returns the family addr belongs to.
func FamilyOf(addr netip.Addr) Family {
	if addr.Is4() || addr.Is4In6() {
		return IPv4
	}
	return IPv6
}

// Record is a DNS provider's stored record, reduced to the fields this tool
// reads and conditionally mutates. The provider owns the record's lifecycle;
// fields not listed here keep whatever values the provider assigns.
type Record struct {
	ID      string
	ZoneID  string
	Name    string
	Type    string // "A" or "AAAA"
	Content string // IP address as stored by the provider
	TTL     int    // 1 means "automatic" at Cloudflare
	Proxied bool
}

// Addr parses the record content as an IP address in canonical form,
// so equivalent textual representations compare as equal.
func (r Record) Addr() (netip.Addr, error) {
	addr, err := netip.ParseAddr(r.Content)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("record %q (%s): unparseable content %q: %w", r.Name, r.ID, r.Content, err)
	}
	return addr.Unmap(), nil
}
