// Package registry records resolved servers in the tracked-server database.
package registry

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcstatus/internal/geoip"
	"github.com/woozymasta/mcstatus/internal/models"
)

// lookupTimeout bounds the address lookup of a recorded host.
const lookupTimeout = 2 * time.Second

// Store persists tracked servers. *storage.Repository implements it.
type Store interface {
	UpsertServer(s models.Server) error
}

// CountryLookup maps an IP address to an ISO country code. *geoip.Provider implements it.
type CountryLookup interface {
	GetCountryCode(ip string) string
}

// IPLookuper resolves host names. *net.Resolver implements it.
type IPLookuper interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Registry enriches resolution results with address data and stores them.
type Registry struct {
	store   Store
	geo     CountryLookup
	lookup  IPLookuper
	nowFunc func() time.Time
}

// New creates a Registry. geo may be nil, country detection is then disabled.
func New(store Store, geo *geoip.Provider) *Registry {
	r := &Registry{store: store, lookup: net.DefaultResolver, nowFunc: time.Now}
	if geo != nil {
		r.geo = geo
	}
	return r
}

// NewWithLookup creates a Registry with explicit collaborators.
func NewWithLookup(store Store, geo CountryLookup, lookup IPLookuper) *Registry {
	return &Registry{store: store, geo: geo, lookup: lookup, nowFunc: time.Now}
}

// Record stores the result of resolving host with the requested port (0 when discovered).
func (r *Registry) Record(ctx context.Context, host string, port uint16, res *models.StatusResult) error {
	srv := models.ServerFromStatus(host, int(port), res, r.nowFunc().UTC())

	srv.IP = r.resolveIP(ctx, host)
	if srv.IP != "" && r.geo != nil {
		srv.CountryCode = r.geo.GetCountryCode(srv.IP)
	}

	if err := r.store.UpsertServer(srv); err != nil {
		return err
	}

	log.Debug().
		Str("host", host).
		Uint16("port", port).
		Str("ip", srv.IP).
		Str("country", srv.CountryCode).
		Bool("online", srv.Online).
		Msg("Server recorded")

	return nil
}

// resolveIP returns the first IPv4 address of host, any address otherwise, or "".
func (r *Registry) resolveIP(ctx context.Context, host string) string {
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	addrs, err := r.lookup.LookupIPAddr(ctx, host)
	if err != nil || len(addrs) == 0 {
		log.Trace().Err(err).Str("host", host).Msg("Address lookup failed")
		return ""
	}

	for _, addr := range addrs {
		if addr.IP.To4() != nil {
			return addr.IP.String()
		}
	}
	return addrs[0].IP.String()
}
