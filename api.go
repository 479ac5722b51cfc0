package ddns

import (
	"context"
	"net/netip"
)

// Resolver looks up the host's current public address for a single address
// family. Implementations perform one lookup per call and do not retry;
// retry policy belongs to the caller's schedule.
type Resolver interface {
	Resolve(context.Context) (netip.Addr, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(context.Context) (netip.Addr, error)

func (f ResolverFunc) Resolve(ctx context.Context) (netip.Addr, error) { return f(ctx) }

// Provider is the DNS provider's record API. Every call is a fresh round
// trip; implementations do not cache responses. Mutating calls are not
// idempotent at the HTTP layer, so callers must not blindly retry creates
// without re-listing current state first.
type Provider interface {
	// ListRecords returns records in zone zoneID whose name and type match
	// exactly, in provider list order.
	ListRecords(ctx context.Context, zoneID, name, recordType string) ([]Record, error)

	// CreateRecord creates record in zone zoneID and returns it as stored,
	// including the provider-assigned ID.
	CreateRecord(ctx context.Context, zoneID string, record Record) (Record, error)

	// UpdateRecord replaces the content of an existing record.
	UpdateRecord(ctx context.Context, zoneID, recordID, content string) (Record, error)
}
