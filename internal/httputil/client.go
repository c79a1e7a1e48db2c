// Package httputil builds the hardened HTTP client used to fetch archives and
// their signatures from a download origin.
package httputil

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// ClientOptions configures NewClient. Zero values take the defaults.
type ClientOptions struct {
	// Timeout bounds a whole request including the body. Archives can be
	// large, so callers usually pass the configured download timeout.
	Timeout time.Duration

	DialTimeout           time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration

	// MaxRedirects limits the redirect chain. Default: 10.
	MaxRedirects int

	// AllowHTTP permits plain http origins and redirects. Only set for
	// explicitly configured mirrors.
	AllowHTTP bool
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Minute
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 30 * time.Second
	}
	if o.TLSHandshakeTimeout <= 0 {
		o.TLSHandshakeTimeout = 10 * time.Second
	}
	if o.ResponseHeaderTimeout <= 0 {
		o.ResponseHeaderTimeout = 30 * time.Second
	}
	if o.MaxRedirects <= 0 {
		o.MaxRedirects = 10
	}
	return o
}

// NewClient returns an HTTP client for archive downloads.
//
// Transparent decompression is disabled so the bytes hashed and cached are
// exactly the bytes the origin served. Redirects must stay on https (unless
// AllowHTTP) and may not point at private, loopback or link-local addresses.
func NewClient(opts ClientOptions) *http.Client {
	opts = opts.withDefaults()
	return &http.Client{
		Timeout: opts.Timeout,
		Transport: &http.Transport{
			Proxy:              http.ProxyFromEnvironment,
			DisableCompression: true,
			DialContext: (&net.Dialer{
				Timeout:   opts.DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   opts.TLSHandshakeTimeout,
			ResponseHeaderTimeout: opts.ResponseHeaderTimeout,
			ExpectContinueTimeout: time.Second,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: redirectPolicy(opts.MaxRedirects, opts.AllowHTTP, net.LookupIP),
	}
}

// CheckURL rejects URLs that NewClient would not be allowed to fetch.
func CheckURL(raw string, allowHTTP bool) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid download URL %q: %w", raw, err)
	}
	switch u.Scheme {
	case "https":
	case "http":
		if !allowHTTP {
			return fmt.Errorf("download URL must use https, got %s", u.Redacted())
		}
	default:
		return fmt.Errorf("unsupported download URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("download URL has no host: %s", u.Redacted())
	}
	return nil
}

type lookupFunc func(host string) ([]net.IP, error)

var errTooManyRedirects = errors.New("too many redirects")

func redirectPolicy(max int, allowHTTP bool, lookup lookupFunc) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errTooManyRedirects
		}
		if req.URL.Scheme != "https" && !(allowHTTP && req.URL.Scheme == "http") {
			return fmt.Errorf("refusing redirect to non-https URL %s", req.URL.Redacted())
		}

		host := req.URL.Hostname()
		if ip := net.ParseIP(host); ip != nil {
			return CheckRedirectIP(ip, host)
		}
		// Every resolved address is checked so a rebinding DNS answer
		// cannot sneak a private address past the first lookup.
		ips, err := lookup(host)
		if err != nil {
			return fmt.Errorf("failed to resolve redirect host %s: %w", host, err)
		}
		for _, ip := range ips {
			if err := CheckRedirectIP(ip, host); err != nil {
				return err
			}
		}
		return nil
	}
}

// CheckRedirectIP returns an error when ip is not a public unicast address.
func CheckRedirectIP(ip net.IP, host string) error {
	var kind string
	switch {
	case ip.IsLoopback():
		kind = "loopback"
	case ip.IsPrivate():
		kind = "private"
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		kind = "link-local"
	case ip.IsMulticast():
		kind = "multicast"
	case ip.IsUnspecified():
		kind = "unspecified"
	default:
		return nil
	}
	return fmt.Errorf("refusing redirect to %s address %s (%s)", kind, ip, host)
}
