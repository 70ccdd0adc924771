package geoip

import (
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Provider resolves IP addresses to ISO country codes.
type Provider struct {
	db *geoip2.Reader
}

// Open loads the MMDB file at path.
func Open(path string) (*Provider, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}

	return &Provider{db: db}, nil
}

// Close releases the database.
func (p *Provider) Close() error {
	return p.db.Close()
}

// Country returns the ISO code (e.g. "DE") for ip, or "" when unknown.
// Sighting IPs may carry a port ("1.2.3.4:27960"), which is stripped.
func (p *Provider) Country(ip string) string {
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}

	record, err := p.db.Country(parsed)
	if err != nil {
		return ""
	}

	return record.Country.IsoCode
}
