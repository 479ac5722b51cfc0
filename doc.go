/*
Package ddns keeps a set of DNS records pointed at this host's current public IP address.

Usage will always start with [ddns.New],
which returns the Client used to run reconciliation ticks.
New requires the DNS zone ID and the list of hostnames to keep updated,
plus a [Provider] implementation for a DNS provider and at least one
address family resolver.
Additional client configuration options are listed in the docs for New.
*/
package ddns
