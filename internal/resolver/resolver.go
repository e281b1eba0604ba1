// Package resolver turns a bare Minecraft hostname into a connect port using DNS SRV records.
package resolver

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcstatus/internal/config"
	"github.com/woozymasta/mcstatus/internal/models"
)

// SRV service and protocol of the Java status service.
const (
	Service = "minecraft"
	Proto   = "tcp"
)

// SRVLookuper performs SRV lookups. *net.Resolver satisfies it.
type SRVLookuper interface {
	LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
}

// Resolver resolves connect ports for Java hosts.
type Resolver struct {
	lookup  SRVLookuper
	timeout time.Duration
}

// New creates a Resolver from configuration. A configured DNS server switches the
// lookup backend from the system resolver to a direct DNS client.
func New(cfg config.Resolve) *Resolver {
	var lookup SRVLookuper = net.DefaultResolver
	if cfg.DNSServer != "" {
		lookup = NewDNSClient(cfg.DNSServer, cfg.SRVTimeout)
	}

	return NewWithLookup(lookup, cfg.SRVTimeout)
}

// NewWithLookup creates a Resolver using the given lookup backend.
func NewWithLookup(lookup SRVLookuper, timeout time.Duration) *Resolver {
	return &Resolver{lookup: lookup, timeout: timeout}
}

// Resolve returns explicitPort when non-zero, otherwise the port of the first SRV record
// for host. Any failure resolves to the default Java port; Resolve never fails.
func (r *Resolver) Resolve(ctx context.Context, host string, explicitPort uint16) (port uint16) {
	if explicitPort != 0 {
		return explicitPort
	}

	port = models.DefaultJavaPort
	if net.ParseIP(host) != nil {
		return port
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Warn().Interface("panic", rec).Str("host", host).Msg("SRV lookup panicked, using default port")
			port = models.DefaultJavaPort
		}
	}()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	_, records, err := r.lookup.LookupSRV(ctx, Service, Proto, host)
	if err != nil {
		log.Debug().Err(err).Str("host", host).Msg("SRV lookup failed, using default port")
		return port
	}
	if len(records) == 0 || records[0] == nil || records[0].Port == 0 {
		log.Debug().Str("host", host).Msg("No SRV record, using default port")
		return port
	}

	log.Trace().
		Str("host", host).
		Str("target", records[0].Target).
		Uint16("port", records[0].Port).
		Msg("SRV record resolved")

	return records[0].Port
}
