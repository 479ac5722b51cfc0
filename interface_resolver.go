package ddns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// InterfaceResolver constructs a resolver that returns the first address of
// the requested family reported by the given network interfaces, skipping
// loopback and link-local addresses. If no interfaces are provided then all
// interfaces are considered.
//
// This is only useful when the machine holds a publicly routable address
// directly, e.g. a VPS; behind NAT use WebResolver or DNSResolver instead.
func InterfaceResolver(family Family, iface ...string) Resolver {
	return interfaceResolver{family: family, ifaces: iface}
}

type interfaceResolver struct {
	family Family
	ifaces []string
}

func (r interfaceResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	addrs, err := r.interfaceAddrs()
	if err != nil {
		return netip.Addr{}, err
	}
	var errs []error
	for _, addr := range addrs {
		// addr: ip+net:192.168.86.253/24
		// addr: ip+net:fd64:9f44:fc30:0:b951:8b16:2812:a227/64
		// addr: ip+net:fe80::2cc9:801b:3551:9a43/64
		ip, err := netip.ParsePrefix(addr.String())
		if err != nil {
			errs = append(errs, fmt.Errorf("error parsing local ip %s: %s", addr.String(), err))
			continue
		}
		a := ip.Addr().Unmap()
		if a.IsLoopback() || a.IsLinkLocalUnicast() {
			continue
		}
		if r.family.Matches(a) {
			return a, nil
		}
	}
	errs = append(errs, fmt.Errorf("no %s address found on the selected interfaces", r.family))
	return netip.Addr{}, errors.Join(errs...)
}

func (r interfaceResolver) interfaceAddrs() ([]net.Addr, error) {
	if len(r.ifaces) == 0 {
		addrs, err := net.InterfaceAddrs()
		if err != nil {
			return nil, fmt.Errorf("error getting addresses for interface: %w", err)
		}
		return addrs, nil
	}
	var (
		addrs []net.Addr
		errs  []error
	)
	for _, ifs := range r.ifaces {
		iface, err := net.InterfaceByName(ifs)
		if err != nil {
			errs = append(errs, fmt.Errorf("error getting interface %s by name: %w", ifs, err))
			continue
		}
		a, err := iface.Addrs()
		if err != nil {
			errs = append(errs, fmt.Errorf("error looking up addresses for interface %s: %w", ifs, err))
			continue
		}
		addrs = append(addrs, a...)
	}
	if len(addrs) == 0 {
		return nil, errors.Join(errs...)
	}
	return addrs, nil
}
