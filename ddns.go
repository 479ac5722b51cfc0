package ddns

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/netip"
	"sync"
	"time"

	"github.com/cloudflare/cloudflare-go"
)

var discard = log.New(io.Discard, "", log.LstdFlags)

// New returns a Client that keeps hosts in DNS zone zoneID pointed at this
// host's current public addresses.
//
// A provider option (ddns.UsingCloudflare or ddns.UsingProvider) and at
// least one family resolver (ddns.UsingWebResolver, ddns.UsingDNSResolver,
// or ddns.UsingResolver) are required. A family without a resolver is
// skipped on every tick; it is not an error.
//
// The returned Client is not safe for concurrent ticks. Run serializes them.
func New(zoneID string, hosts []string, options ...Option) (*Client, error) {
	if zoneID == "" {
		return nil, &ConfigError{Field: "zone", Reason: "zone ID cannot be empty"}
	}
	if len(hosts) == 0 {
		return nil, &ConfigError{Field: "hosts", Reason: "at least one hostname is required"}
	}
	c := &Client{
		zoneID:    zoneID,
		hosts:     append([]string(nil), hosts...),
		resolvers: map[Family]Resolver{},
		logger:    discard,
		prev:      map[Family]netip.Addr{},
	}
	for i, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("ddns.New: option %d returned an error: %w", i, err)
		}
	}
	if c.provider == nil {
		return nil, &ConfigError{Field: "provider", Reason: "no DNS provider was registered and there is no default option - use ddns.UsingCloudflare or similar"}
	}
	if len(c.resolvers) == 0 {
		return nil, &ConfigError{Field: "endpoints", Reason: "at least one address family resolver must be configured"}
	}

	// this lets us propagate the http client to dependencies regardless of
	// the order options were passed in
	if c.httpClient != nil {
		UsingHTTPClient(c.httpClient)(c)
	}
	return c, nil
}

type Option func(*Client) error

// UsingCloudflare registers the Cloudflare v4 API as the DNS provider,
// authenticated with the given bearer token.
func UsingCloudflare(token string) Option {
	return func(c *Client) (err error) {
		if c.provider, err = newCloudflareProvider(token); err != nil {
			return fmt.Errorf("ddns.UsingCloudflare: error creating cloudflare DNS provider: %w", err)
		}
		return nil
	}
}

// UsingProvider registers a custom Provider implementation.
func UsingProvider(provider Provider) Option {
	return func(c *Client) error {
		if provider == nil {
			return fmt.Errorf("ddns.UsingProvider: provider cannot be nil")
		}
		c.provider = provider
		return nil
	}
}

// UsingResolver registers resolver for the given address family, replacing
// any previously registered resolver for that family.
func UsingResolver(family Family, resolver Resolver) Option {
	return func(c *Client) error {
		if resolver == nil {
			return fmt.Errorf("ddns.UsingResolver: resolver cannot be nil")
		}
		c.resolvers[family] = resolver
		return nil
	}
}

// UsingWebResolver registers a web "what is my IP" endpoint for the family.
func UsingWebResolver(family Family, endpoint string) Option {
	return func(c *Client) error {
		r, err := WebResolver(family, endpoint)
		if err != nil {
			return fmt.Errorf("ddns.UsingWebResolver: %w", err)
		}
		c.resolvers[family] = r
		return nil
	}
}

// UsingDNSResolver registers a DNS-protocol "whoami" lookup against server
// for the family.
func UsingDNSResolver(family Family, server string) Option {
	return func(c *Client) error {
		c.resolvers[family] = DNSResolver(family, server)
		return nil
	}
}

// WithCreateMissing allows the reconciler to create records that do not
// exist yet. The default is to skip them with a diagnostic.
func WithCreateMissing(create bool) Option {
	return func(c *Client) error {
		c.createMissing = create
		return nil
	}
}

// WithLogger directs the client's progress and error logging to logger.
// The default is to discard log messages.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			logger = discard
		}
		c.logger = logger
		return nil
	}
}

// UsingHTTPClient replaces the HTTP client used by resolvers and providers
// that speak HTTP.
func UsingHTTPClient(httpclient *http.Client) Option {
	return func(c *Client) error {
		if httpclient == nil {
			httpclient = http.DefaultClient
		}
		c.httpClient = httpclient
		type setHTTPClient interface {
			SetHTTPClient(*http.Client)
		}
		for _, r := range c.resolvers {
			switch hc := r.(type) {
			case *webResolver:
				hc.httpClient = httpclient
			case setHTTPClient:
				hc.SetHTTPClient(httpclient)
			}
		}
		switch p := c.provider.(type) {
		case *cloudflareProvider:
			if err := cloudflare.HTTPClient(httpclient)(p.api); err != nil {
				return fmt.Errorf("ddns.UsingHTTPClient: %w", err)
			}
		case setHTTPClient:
			p.SetHTTPClient(httpclient)
		case nil:
		}
		return nil
	}
}

// Client drives reconciliation ticks for one zone and host list.
type Client struct {
	resolvers     map[Family]Resolver
	provider      Provider
	logger        *log.Logger
	httpClient    *http.Client
	zoneID        string
	hosts         []string
	createMissing bool

	// prev holds the previous tick's resolved addresses and exists only to
	// log address changes between ticks. Reconciliation never consults it:
	// desired state is recomputed from provider records every tick.
	prev map[Family]netip.Addr
}

// RunTick performs one full reconciliation pass: resolve every configured
// family concurrently, wait for all of them to settle, then converge every
// hostname. The returned TickResult carries per-operation outcomes;
// TickResult.Err is non-nil when any operation failed.
func (c *Client) RunTick(ctx context.Context) TickResult {
	start := time.Now()

	addrs, failures := c.resolveAll(ctx)
	c.logAddressChanges(addrs)

	r := &Reconciler{
		Provider:      c.provider,
		ZoneID:        c.zoneID,
		CreateMissing: c.createMissing,
		Logger:        c.logger,
	}
	result := r.Reconcile(ctx, addrs, c.hosts)
	result.Ops = append(failures, result.Ops...)

	tickDuration.Observe(time.Since(start).Seconds())
	if result.Err() != nil {
		ticksTotal.WithLabelValues("error").Inc()
	} else {
		ticksTotal.WithLabelValues("success").Inc()
	}
	return result
}

// resolveAll looks up every configured family concurrently and waits for all
// lookups to finish before returning. A failed lookup removes that family
// from this tick and is reported as a failed operation.
func (c *Client) resolveAll(ctx context.Context) (map[Family]netip.Addr, []Operation) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		addrs    = make(map[Family]netip.Addr, len(c.resolvers))
		failures []Operation
	)
	for family, resolver := range c.resolvers {
		wg.Add(1)
		go func(family Family, resolver Resolver) {
			defer wg.Done()
			addr, err := resolver.Resolve(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.logger.Printf("could not resolve the current %s address: %s", family, err)
				failures = append(failures, Operation{
					Family: family,
					Err:    fmt.Errorf("resolving %s address: %w", family, err),
				})
				return
			}
			addrs[family] = addr.Unmap()
		}(family, resolver)
	}
	wg.Wait()
	return addrs, failures
}

func (c *Client) logAddressChanges(addrs map[Family]netip.Addr) {
	for _, family := range Families {
		addr, ok := addrs[family]
		if !ok {
			continue
		}
		prev, seen := c.prev[family]
		switch {
		case !seen:
			c.logger.Printf("%s changed from 'none' to '%s'", family, addr)
		case prev != addr:
			c.logger.Printf("%s changed from '%s' to '%s'", family, prev, addr)
		}
		c.prev[family] = addr
	}
}

// Run drives repeated reconciliation ticks every interval.
//
// An interval of zero runs exactly one tick and returns its aggregate
// outcome. Otherwise Run ticks immediately, then sleeps for interval between
// ticks until ctx is cancelled; tick failures are logged and never stop the
// loop. Ticks are strictly sequential: when one overruns the interval the
// next starts only after it completes, so the effective period can exceed
// interval under slow network conditions.
func (c *Client) Run(ctx context.Context, interval time.Duration) error {
	result := c.RunTick(ctx)
	if interval <= 0 {
		return result.Err()
	}
	if err := result.Err(); err != nil {
		c.logger.Printf("tick finished with errors: %s", err)
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		if err := c.RunTick(ctx).Err(); err != nil {
			c.logger.Printf("tick finished with errors: %s", err)
		}
		timer.Reset(interval)
	}
}
