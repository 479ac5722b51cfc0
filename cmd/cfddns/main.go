// Command cfddns keeps a set of Cloudflare DNS records pointed at this
// host's current public IP address, polling periodically and updating the
// records only when the address actually changes.
//
// Configuration is read from the environment (optionally via a .env file):
//
//	CF_DNS_ZONE_ID             Cloudflare zone ID (required)
//	CF_DNS_API_TOKEN           API token (or use the -k key file)
//	CF_DNS_HOSTS               semicolon-separated hostnames to keep updated (required)
//	IPV4_ENDPOINT              "what is my IP" URL for IPv4, or dns://server
//	IPV6_ENDPOINT              "what is my IP" URL for IPv6, or dns://server
//	REPEAT_INTERVAL_SECONDS    seconds between ticks; 0 or unset runs once
//	CF_DNS_CREATE_HOST_RECORDS "true" to create records that do not exist yet
//	CF_DNS_METRICS_ADDR        listen address for prometheus metrics
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ddnskit/ddns"
)

var flags = struct {
	EnvFile     string
	KeyFile     string
	MetricsAddr string
}{}

func init() {
	flag.StringVar(&flags.EnvFile, "env-file", ".env", "Path to an optional env file with configuration variables")
	flag.StringVar(&flags.KeyFile, "k", filepath.Join(os.Getenv("HOME"), ".cloudflare"), "Path to cloudflare API credentials file, used when CF_DNS_API_TOKEN is not set")
	flag.StringVar(&flags.MetricsAddr, "metrics-addr", "", "Listen address for prometheus metrics (overrides CF_DNS_METRICS_ADDR; empty disables)")
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	logger := log.Default()

	if err := godotenv.Load(flags.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading %q: %w", flags.EnvFile, err)
	}

	cfg, err := configFromEnv(os.Getenv)
	if err != nil {
		return err
	}

	token, err := resolveToken(cfg, flags.KeyFile)
	if err != nil {
		return err
	}

	opts := []ddns.Option{
		ddns.UsingCloudflare(token),
		ddns.WithCreateMissing(cfg.CreateMissing),
		ddns.WithLogger(logger),
	}
	for family, endpoint := range cfg.Endpoints {
		opts = append(opts, resolverOption(family, endpoint))
	}

	client, err := ddns.New(cfg.ZoneID, cfg.Hosts, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer stop()

	metricsAddr := flags.MetricsAddr
	if metricsAddr == "" {
		metricsAddr = cfg.MetricsAddr
	}
	startMetricsServer(ctx, metricsAddr, logger)

	logger.Printf("monitoring %d hosts:", len(cfg.Hosts))
	for _, host := range cfg.Hosts {
		logger.Printf("\t%s", host)
	}
	logger.Printf("for %d record types:", len(cfg.Endpoints))
	for _, family := range ddns.Families {
		if _, ok := cfg.Endpoints[family]; ok {
			logger.Printf("\t%s", family.RecordType())
		}
	}

	err = client.Run(ctx, cfg.Interval)
	if errors.Is(err, context.Canceled) {
		logger.Println("shutting down")
		return nil
	}
	return err
}

// resolverOption picks the resolver implementation from the endpoint URL:
// dns://server selects the DNS whoami resolver, anything else is treated as
// an HTTP "what is my IP" endpoint.
func resolverOption(family ddns.Family, endpoint string) ddns.Option {
	if server, ok := strings.CutPrefix(endpoint, "dns://"); ok {
		return ddns.UsingDNSResolver(family, server)
	}
	return ddns.UsingWebResolver(family, endpoint)
}

// startMetricsServer exposes /metrics on addr. An empty addr disables the
// server. The server shuts down gracefully when ctx is cancelled.
func startMetricsServer(ctx context.Context, addr string, logger *log.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			logger.Printf("metrics server shutdown error: %s", err)
		}
	}()
	go func() {
		logger.Printf("metrics server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("metrics server error: %s", err)
		}
	}()
}
