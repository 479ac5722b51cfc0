package ddns

import (
	"context"
	"fmt"
	"net/netip"
)

// FromString constructs a resolver that always returns the fixed IP parsed
// from addr, useful for pinning a record to a known address.
func FromString(family Family, addr string) (Resolver, error) {
	a, err := netip.ParseAddr(addr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse IP: %w", err)
	}
	a = a.Unmap()
	if !family.Matches(a) {
		return nil, fmt.Errorf("%s is not an %s address", a, family)
	}
	return stringResolver(a.String()), nil
}

type stringResolver string

func (s stringResolver) Resolve(context.Context) (netip.Addr, error) {
	return netip.MustParseAddr(string(s)), nil
}
