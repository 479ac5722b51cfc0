package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/idna"

	"github.com/ddnskit/ddns"
)

// config is read once from the environment at startup and is immutable
// afterwards. Validation failures here are fatal: no tick is attempted.
type config struct {
	ZoneID        string
	APIToken      string
	Hosts         []string
	Endpoints     map[ddns.Family]string
	Interval      time.Duration
	CreateMissing bool
	MetricsAddr   string
}

func configFromEnv(getenv func(string) string) (*config, error) {
	cfg := &config{Endpoints: map[ddns.Family]string{}}

	cfg.ZoneID = strings.TrimSpace(getenv("CF_DNS_ZONE_ID"))
	if cfg.ZoneID == "" {
		return nil, &ddns.ConfigError{Field: "CF_DNS_ZONE_ID", Reason: "not set"}
	}

	cfg.APIToken = strings.TrimSpace(getenv("CF_DNS_API_TOKEN"))

	hosts, err := parseHosts(getenv("CF_DNS_HOSTS"))
	if err != nil {
		return nil, err
	}
	cfg.Hosts = hosts

	if v := strings.TrimSpace(getenv("IPV4_ENDPOINT")); v != "" {
		cfg.Endpoints[ddns.IPv4] = v
	}
	if v := strings.TrimSpace(getenv("IPV6_ENDPOINT")); v != "" {
		cfg.Endpoints[ddns.IPv6] = v
	}
	if len(cfg.Endpoints) == 0 {
		return nil, &ddns.ConfigError{Field: "IPV4_ENDPOINT/IPV6_ENDPOINT", Reason: "at least one IP API endpoint must be defined"}
	}

	if v := strings.TrimSpace(getenv("REPEAT_INTERVAL_SECONDS")); v != "" {
		secs, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, &ddns.ConfigError{Field: "REPEAT_INTERVAL_SECONDS", Reason: fmt.Sprintf("%q is not a non-negative whole number of seconds", v)}
		}
		cfg.Interval = time.Duration(secs) * time.Second
	}

	if v := strings.TrimSpace(getenv("CF_DNS_CREATE_HOST_RECORDS")); v != "" {
		create, err := strconv.ParseBool(v)
		if err != nil {
			return nil, &ddns.ConfigError{Field: "CF_DNS_CREATE_HOST_RECORDS", Reason: fmt.Sprintf("%q is not a boolean", v)}
		}
		cfg.CreateMissing = create
	}

	cfg.MetricsAddr = strings.TrimSpace(getenv("CF_DNS_METRICS_ADDR"))

	return cfg, nil
}

// parseHosts splits the semicolon-separated host list and canonicalizes each
// entry to its ASCII (punycode) form. Duplicates are kept as configured; the
// second occurrence reconciles against the already-converged record. An
// entry with a leading wildcard segment ("*.lab.example.com") is kept
// verbatim and is looked up provider-side as a literal record name, never
// glob-expanded.
func parseHosts(raw string) ([]string, error) {
	var hosts []string
	for _, h := range strings.Split(raw, ";") {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		ascii, err := idna.ToASCII(h)
		if err != nil {
			return nil, &ddns.ConfigError{Field: "CF_DNS_HOSTS", Reason: fmt.Sprintf("invalid hostname %q: %s", h, err)}
		}
		hosts = append(hosts, ascii)
	}
	if len(hosts) == 0 {
		return nil, &ddns.ConfigError{Field: "CF_DNS_HOSTS", Reason: "at least one hostname is required (semicolon-separated)"}
	}
	return hosts, nil
}
