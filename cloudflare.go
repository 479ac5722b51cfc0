package ddns

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/cloudflare/cloudflare-go"
)

func newCloudflareProvider(token string, opts ...cloudflare.Option) (cf *cloudflareProvider, err error) {
	cf = new(cloudflareProvider)
	// The client's default policy silently re-sends failed requests,
	// including creates, and a re-sent create can leave a duplicate record
	// behind. Retry policy belongs to the caller's schedule: the next tick
	// re-lists before acting.
	opts = append([]cloudflare.Option{cloudflare.UsingRetryPolicy(0, 0, 0)}, opts...)
	cf.api, err = cloudflare.NewWithAPIToken(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating cloudflare api client: %w", err)
	}
	cf.comment = "managed by ddns"
	return cf, nil
}

// cloudflareProvider implements ddns.Provider against the Cloudflare v4 API.
//
// It should be constructed through ddns.UsingCloudflare.
type cloudflareProvider struct {
	api     *cloudflare.API
	comment string // optional comment to attach to each new DNS entry
}

func (cf *cloudflareProvider) ListRecords(ctx context.Context, zoneID, name, recordType string) ([]Record, error) {
	records, _, err := cf.api.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zoneID), cloudflare.ListDNSRecordsParams{
		Type: recordType,
		Name: name,
	})
	if err != nil {
		return nil, wrapAPIError(err)
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		out = append(out, fromCloudflare(zoneID, r))
	}
	return out, nil
}

func (cf *cloudflareProvider) CreateRecord(ctx context.Context, zoneID string, record Record) (Record, error) {
	ttl := record.TTL
	if ttl == 0 {
		ttl = 1 // provider "automatic"
	}
	created, err := cf.api.CreateDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), cloudflare.CreateDNSRecordParams{
		Type:    record.Type,
		Name:    record.Name,
		Content: record.Content,
		TTL:     ttl,
		Proxied: cloudflare.BoolPtr(record.Proxied),
		Comment: cf.comment,
	})
	if err != nil {
		return Record{}, wrapAPIError(err)
	}
	return fromCloudflare(zoneID, created), nil
}

func (cf *cloudflareProvider) UpdateRecord(ctx context.Context, zoneID, recordID, content string) (Record, error) {
	updated, err := cf.api.UpdateDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), cloudflare.UpdateDNSRecordParams{
		ID:      recordID,
		Content: content,
	})
	if err != nil {
		return Record{}, wrapAPIError(err)
	}
	return fromCloudflare(zoneID, updated), nil
}

func fromCloudflare(zoneID string, r cloudflare.DNSRecord) Record {
	proxied := r.Proxied != nil && *r.Proxied
	return Record{
		ID:      r.ID,
		ZoneID:  zoneID,
		Name:    r.Name,
		Type:    r.Type,
		Content: r.Content,
		TTL:     r.TTL,
		Proxied: proxied,
	}
}

var httpStatusPattern = regexp.MustCompile(`\(HTTP (\d{3})\)`)

// wrapAPIError converts cloudflare-go's errors into *APIError so callers see
// the provider-agnostic taxonomy. Non-2xx responses carry a *cloudflare.Error
// in the chain, which keeps the real HTTP status and the response body's
// messages. The exception is 429 and 5xx: the client consumes those in its
// retry loop and reports only a plain error, so the status is recovered from
// the message when possible. Transport-level failures keep Status 0.
func wrapAPIError(err error) error {
	if err == nil {
		return nil
	}
	var cfErr *cloudflare.Error
	if errors.As(err, &cfErr) {
		return &APIError{Status: cfErr.StatusCode, Message: cfErr.Error()}
	}
	msg := err.Error()
	if m := httpStatusPattern.FindStringSubmatch(msg); m != nil {
		status, _ := strconv.Atoi(m[1])
		return &APIError{Status: status, Message: msg}
	}
	if strings.Contains(msg, "rate limit") {
		return &APIError{Status: http.StatusTooManyRequests, Message: msg}
	}
	return &APIError{Message: msg}
}
