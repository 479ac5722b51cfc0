package ddns

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"
)

// WebResolver constructs a resolver which asks an external web service for
// this host's public address of the given family.
//
// The endpoint must speak http and return status "200 OK",
// with the bare textual IP address as the first line of the response body.
// All other responses are errors, including a body that parses as an address
// of the wrong family - this protects against a misconfigured endpoint
// returning an HTML error page, and against a dual-stack endpoint answering
// over the other family.
//
// The resolver performs a single GET per call and never retries;
// retry policy belongs to the caller's schedule.
//
// The recommended approach is to run your own service over https,
// using an endpoint that only answers on the requested family,
// e.g. https://v4.example.com.
func WebResolver(family Family, endpoint string) (Resolver, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("error parsing URL: %w", err)
	}
	return &webResolver{family: family, serviceURL: u}, nil
}

type webResolver struct {
	httpClient *http.Client
	family     Family
	serviceURL *url.URL
}

// Resolve implements ddns.Resolver.
func (wr *webResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	// 15 seconds is an eternity for the size of the request we're making,
	// but this ensures that all calls to resolve will eventually complete
	// even if the caller supplied context.Background and http.DefaultClient
	// (with no timeout).
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wr.serviceURL.String(), nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	httpclient := wr.httpClient
	if httpclient == nil {
		httpclient = http.DefaultClient
	}

	resp, err := httpclient.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("http request returned %s", resp.Status)
	}

	scanner := bufio.NewReader(resp.Body)
	ipstring, _ := scanner.ReadString('\n')
	addr, err := netip.ParseAddr(strings.TrimSpace(ipstring))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error parsing %s address from response body: %w", wr.family, err)
	}
	addr = addr.Unmap()
	if !wr.family.Matches(addr) {
		return netip.Addr{}, fmt.Errorf("endpoint %s returned %s, which is not an %s address", wr.serviceURL, addr, wr.family)
	}
	return addr, nil
}
