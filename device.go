package jobsculpt

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/mssola/useragent"
)

const (
	UnknownPlatform  = "Unknown Platform"
	UnknownCountry   = "Unknown Country"
	UnknownCity      = "Unknown City"
	UnknownTimeZone  = "Unknown TimeZone"
	UnknownContinent = "Unknown Continent"
	UnknownCurrency  = "Unknown Currency"

	DefaultGeoTimeout = 3 * time.Second
)

// DevelopmentLocation is returned for loopback callers so local runs never
// reach the geo service.
var DevelopmentLocation = Location{
	Country:   "India",
	City:      "New Delhi",
	TimeZone:  "Asia/Kolkata",
	Continent: "Asia",
	Currency:  "INR",
}

// UnknownLocation is used when the caller cannot be located
var UnknownLocation = Location{
	Country:   UnknownCountry,
	City:      UnknownCity,
	TimeZone:  UnknownTimeZone,
	Continent: UnknownContinent,
	Currency:  UnknownCurrency,
}

// DeviceRequest holds the request attributes a fingerprint is derived from
type DeviceRequest struct {
	UserAgent    string
	PlatformHint string
	IP           string
}

// Fingerprint describes the client behind a request
type Fingerprint struct {
	DeviceName string
	Platform   string
	IP         string
	Location   Location
}

// GeoLocator resolves the approximate location of a public IP
type GeoLocator interface {
	Lookup(ctx context.Context, ip string) (Location, error)
}

// DeviceResolver turns request headers into a Fingerprint. Implementations
// never fail: unresolvable parts are replaced with sentinels.
type DeviceResolver interface {
	Resolve(ctx context.Context, req DeviceRequest) Fingerprint
}

// HeaderDeviceResolver resolves devices from the user agent, the
// sec-ch-ua-platform client hint and a GeoLocator.
type HeaderDeviceResolver struct {
	geo     GeoLocator
	timeout time.Duration
	logger  Logger
}

var _ DeviceResolver = (*HeaderDeviceResolver)(nil)

// DeviceResolverOption configures HeaderDeviceResolver
type DeviceResolverOption func(*HeaderDeviceResolver)

// WithGeoTimeout bounds each geo lookup
func WithGeoTimeout(d time.Duration) DeviceResolverOption {
	return func(r *HeaderDeviceResolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithDeviceLogger sets the logger
func WithDeviceLogger(logger Logger) DeviceResolverOption {
	return func(r *HeaderDeviceResolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewDeviceResolver returns a resolver. A nil geo skips lookups for public
// addresses and reports them as unknown.
func NewDeviceResolver(geo GeoLocator, opts ...DeviceResolverOption) *HeaderDeviceResolver {
	r := &HeaderDeviceResolver{
		geo:     geo,
		timeout: DefaultGeoTimeout,
		logger:  defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *HeaderDeviceResolver) Resolve(ctx context.Context, req DeviceRequest) Fingerprint {
	return Fingerprint{
		DeviceName: DeviceName(req.UserAgent),
		Platform:   CleanPlatform(req.PlatformHint),
		IP:         strings.TrimSpace(req.IP),
		Location:   r.locate(ctx, req.IP),
	}
}

func (r *HeaderDeviceResolver) locate(ctx context.Context, rawIP string) Location {
	addr, err := netip.ParseAddr(strings.TrimSpace(rawIP))
	if err != nil {
		return UnknownLocation
	}
	addr = addr.Unmap()

	if addr.IsLoopback() {
		return DevelopmentLocation
	}

	if !addr.IsGlobalUnicast() || addr.IsPrivate() {
		return UnknownLocation
	}

	if r.geo == nil {
		return UnknownLocation
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	loc, err := r.geo.Lookup(ctx, addr.String())
	if err != nil {
		r.logger.Warn("geo lookup failed", "ip", addr.String(), "error", err)
		return UnknownLocation
	}

	return fillLocation(loc)
}

// DeviceName renders "<browser> on <os>" from a user agent string
func DeviceName(userAgent string) string {
	ua := useragent.New(userAgent)

	browser, _ := ua.Browser()
	if strings.TrimSpace(browser) == "" {
		browser = "Unknown Browser"
	}

	os := ua.OS()
	if strings.TrimSpace(os) == "" {
		os = "Unknown OS"
	}

	return fmt.Sprintf("%s on %s", browser, os)
}

// CleanPlatform strips the quotes client hints wrap their values in
func CleanPlatform(hint string) string {
	p := strings.Trim(strings.TrimSpace(hint), `"`)
	if p == "" {
		return UnknownPlatform
	}
	return p
}

func fillLocation(loc Location) Location {
	if strings.TrimSpace(loc.Country) == "" {
		loc.Country = UnknownCountry
	}
	if strings.TrimSpace(loc.City) == "" {
		loc.City = UnknownCity
	}
	if strings.TrimSpace(loc.TimeZone) == "" {
		loc.TimeZone = UnknownTimeZone
	}
	if strings.TrimSpace(loc.Continent) == "" {
		loc.Continent = UnknownContinent
	}
	if strings.TrimSpace(loc.Currency) == "" {
		loc.Currency = UnknownCurrency
	}
	return loc
}
