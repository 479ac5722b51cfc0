package ddns

import (
	"context"
	"fmt"
	"log"
	"net/netip"
)

// Action describes what the reconciler decided for one (hostname, family) pair.
type Action int

const (
	// ActionNone marks an operation that failed before a decision could be
	// made, e.g. the provider list call errored.
	ActionNone Action = iota
	ActionSkip
	ActionCreate
	ActionUpdate
)

func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	}
	return "none"
}

// Skip reasons reported in Operation.Reason.
const (
	ReasonUnchanged      = "unchanged"
	ReasonCreateDisabled = "record not found, creation disabled"
	ReasonDuplicate      = "extra duplicate records ignored"
)

// Operation is one decided-and-executed step of a reconciliation tick.
// Operations are never persisted; the whole set is rebuilt from provider
// state on every tick.
type Operation struct {
	Host   string
	Family Family
	Action Action
	Reason string     // set for skips
	Record Record     // the provider record involved, when one exists
	Addr   netip.Addr // the address written by a create or update
	Err    error      // non-nil when the operation failed
}

// Failed reports whether the operation counts as a failure for the tick.
// Skips, including policy skips, are not failures.
func (op Operation) Failed() bool { return op.Err != nil }

// TickResult collects the outcome of every operation of one tick.
// Partial success is normal and expected: one hostname failing does not
// abort or invalidate the others.
type TickResult struct {
	Ops []Operation
}

// Err summarizes the tick: nil when every operation succeeded, otherwise an
// error counting the failures.
func (t TickResult) Err() error {
	failed := 0
	for _, op := range t.Ops {
		if op.Failed() {
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d operations failed", failed, len(t.Ops))
}

// Reconciler computes the minimal set of create/update operations needed to
// point the configured hostnames at the resolved addresses, and executes
// them against the provider as they are decided.
type Reconciler struct {
	Provider Provider
	ZoneID   string
	// CreateMissing allows creating records that do not exist yet.
	// When false a missing record is a policy skip, never a create.
	CreateMissing bool
	Logger        *log.Logger // nil discards
}

// Reconcile runs one pass over every configured hostname for every family
// that has a resolved address this tick. Families absent from addrs are
// skipped entirely.
//
// Hostnames with a leading wildcard segment such as "*.lab.example.com" are
// looked up as literal record names; no glob expansion happens on either
// side.
//
// Each operation is executed immediately and independently: a provider
// failure for one hostname never blocks the remaining hostnames.
func (r *Reconciler) Reconcile(ctx context.Context, addrs map[Family]netip.Addr, hosts []string) TickResult {
	logger := r.Logger
	if logger == nil {
		logger = discard
	}
	var result TickResult
	for _, family := range Families {
		addr, ok := addrs[family]
		if !ok {
			continue
		}
		for _, host := range hosts {
			result.Ops = append(result.Ops, r.reconcileHost(ctx, logger, host, family, addr)...)
		}
	}
	return result
}

func (r *Reconciler) reconcileHost(ctx context.Context, logger *log.Logger, host string, family Family, addr netip.Addr) []Operation {
	rtype := family.RecordType()
	records, err := r.Provider.ListRecords(ctx, r.ZoneID, host, rtype)
	if err != nil {
		logger.Printf("error listing %s records for %q: %s", rtype, host, err)
		return []Operation{{
			Host:   host,
			Family: family,
			Err:    fmt.Errorf("listing %s records for %q: %w", rtype, host, err),
		}}
	}

	if len(records) == 0 {
		if !r.CreateMissing {
			logger.Printf("no %s record found for %q and record creation is disabled", rtype, host)
			return []Operation{{Host: host, Family: family, Action: ActionSkip, Reason: ReasonCreateDisabled}}
		}
		return []Operation{r.create(ctx, logger, host, family, addr)}
	}

	// The provider may hold duplicates for one (name, type). The first record
	// in list order is authoritative; the rest are reported and left alone.
	ops := make([]Operation, 0, len(records))
	ops = append(ops, r.converge(ctx, logger, host, family, addr, records[0]))
	for _, dup := range records[1:] {
		logger.Printf("ignoring duplicate %s record %s for %q", dup.Type, dup.ID, host)
		ops = append(ops, Operation{Host: host, Family: family, Action: ActionSkip, Reason: ReasonDuplicate, Record: dup})
	}
	return ops
}

// converge compares the authoritative record against the resolved address
// and updates it when they differ. Comparison is on parsed addresses, so
// equivalent textual forms count as unchanged.
func (r *Reconciler) converge(ctx context.Context, logger *log.Logger, host string, family Family, addr netip.Addr, rec Record) Operation {
	current, err := rec.Addr()
	if err != nil {
		// Unparseable content can only mean the record was edited outside
		// this tool; writing the resolved address converges it.
		logger.Printf("replacing %s", err)
	} else if current == addr.Unmap() {
		return Operation{Host: host, Family: family, Action: ActionSkip, Reason: ReasonUnchanged, Record: rec}
	}

	updated, err := r.Provider.UpdateRecord(ctx, r.ZoneID, rec.ID, addr.String())
	if err != nil {
		recordOperationsTotal.WithLabelValues("update", "error").Inc()
		logger.Printf("failed to update %s record %q from %q to %q: %s", rec.Type, host, rec.Content, addr, err)
		return Operation{
			Host: host, Family: family, Action: ActionUpdate, Record: rec, Addr: addr,
			Err: fmt.Errorf("updating record %s for %q: %w", rec.ID, host, err),
		}
	}
	recordOperationsTotal.WithLabelValues("update", "success").Inc()
	logger.Printf("updated %s record %q from %q to %q", rec.Type, host, rec.Content, addr)
	return Operation{Host: host, Family: family, Action: ActionUpdate, Record: updated, Addr: addr}
}

func (r *Reconciler) create(ctx context.Context, logger *log.Logger, host string, family Family, addr netip.Addr) Operation {
	created, err := r.Provider.CreateRecord(ctx, r.ZoneID, Record{
		Name:    host,
		Type:    family.RecordType(),
		Content: addr.String(),
		TTL:     1, // provider "automatic"
	})
	if err != nil {
		recordOperationsTotal.WithLabelValues("create", "error").Inc()
		logger.Printf("failed to create %s record %q with IP %q: %s", family.RecordType(), host, addr, err)
		return Operation{
			Host: host, Family: family, Action: ActionCreate, Addr: addr,
			Err: fmt.Errorf("creating %s record for %q: %w", family.RecordType(), host, err),
		}
	}
	recordOperationsTotal.WithLabelValues("create", "success").Inc()
	logger.Printf("created %s record %q with IP %q", created.Type, host, addr)
	return Operation{Host: host, Family: family, Action: ActionCreate, Record: created, Addr: addr}
}
