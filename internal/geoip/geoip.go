// Package geoip provides IP geolocation using the MaxMind GeoLite2 database.
//
// It decorates the endpoints of uploaded captures in the HTTP API. Generated
// fixtures use private addresses, which are never looked up.
//
// # Database Setup
//
// Download GeoLite2-City.mmdb from a free MaxMind account and point
// server.geoip_database (or K4PCAP_SERVER_GEOIP_DATABASE) at it.
package geoip

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"github.com/oschwald/maxminddb-golang"
)

var (
	// ErrPrivateAddress is returned for addresses that cannot have a public
	// location: private, loopback, link-local, multicast and unspecified.
	ErrPrivateAddress = errors.New("geoip: address is not publicly routable")

	// ErrClosed is returned by lookups on a closed Reader.
	ErrClosed = errors.New("geoip: reader is closed")
)

// Location represents geographic information for an IP address.
//
// If the database does not contain information for a particular field,
// that field will be set to "Unknown" (for strings) or 0 (for coordinates).
type Location struct {
	IP        string  `json:"ip"`
	City      string  `json:"city"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// geoLite2Record matches the MMDB layout of GeoLite2 City records.
type geoLite2Record struct {
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Country struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"country"`
	Location struct {
		Latitude  float64 `maxminddb:"latitude"`
		Longitude float64 `maxminddb:"longitude"`
	} `maxminddb:"location"`
}

// Reader provides concurrent-safe lookups against an open database.
type Reader struct {
	db *maxminddb.Reader
	mu sync.RWMutex
}

// NewReader opens a GeoLite2 database file. The caller must Close it.
func NewReader(databasePath string) (*Reader, error) {
	db, err := maxminddb.Open(databasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoLite2 database: %w", err)
	}
	return &Reader{db: db}, nil
}

// Close releases the database. It is safe to call more than once.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		err := r.db.Close()
		r.db = nil
		return err
	}
	return nil
}

// Routable reports whether addr could have a public location.
func Routable(addr netip.Addr) bool {
	return addr.IsValid() &&
		!addr.IsPrivate() &&
		!addr.IsLoopback() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsMulticast() &&
		!addr.IsUnspecified()
}

// Lookup returns the location of addr.
//
// Parameters:
//   - addr: An IPv4 or IPv6 address.
//
// Returns:
//   - *Location: City, country and coordinates, "Unknown" where missing.
//   - error: ErrPrivateAddress without touching the database for addresses
//     that are not routable, ErrClosed after Close, or a lookup failure.
func (r *Reader) Lookup(addr netip.Addr) (*Location, error) {
	if !Routable(addr) {
		return nil, fmt.Errorf("%w: %s", ErrPrivateAddress, addr)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.db == nil {
		return nil, ErrClosed
	}

	var record geoLite2Record
	if err := r.db.Lookup(net.IP(addr.AsSlice()), &record); err != nil {
		return nil, fmt.Errorf("database lookup failed: %w", err)
	}

	loc := &Location{
		IP:        addr.String(),
		City:      record.City.Names["en"],
		Country:   record.Country.Names["en"],
		Latitude:  record.Location.Latitude,
		Longitude: record.Location.Longitude,
	}
	if loc.City == "" {
		loc.City = "Unknown"
	}
	if loc.Country == "" {
		loc.Country = "Unknown"
	}
	return loc, nil
}
