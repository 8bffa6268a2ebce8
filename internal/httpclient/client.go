// Package httpclient provides the outbound HTTP client used for notification
// delivery. Unless told otherwise it refuses to reach loopback, private,
// link-local and other non-public addresses, both on the initial request and
// on every redirect and resolved dial address.
package httpclient

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
)

// DefaultMaxRedirects bounds redirect chains when Options.MaxRedirects is 0
const DefaultMaxRedirects = 5

// ErrBlocked is wrapped by every refusal to reach a target
var ErrBlocked = errors.New("outbound request blocked")

// Options configures a Client
type Options struct {
	Timeout      time.Duration
	MaxRedirects int
	AllowPrivate bool // Permit loopback and private targets (tests, on-prem receivers)
}

// Client is an http.Client that only talks to public http(s) endpoints
type Client struct {
	http         *http.Client
	allowPrivate bool
	maxRedirects int
}

// extraBlocked are non-public ranges netip has no predicate for
var extraBlocked = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("2001:db8::/32"),
	netip.MustParsePrefix("fec0::/10"),
}

// New creates a Client
func New(opts Options) *Client {
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}
	c := &Client{
		allowPrivate: opts.AllowPrivate,
		maxRedirects: opts.MaxRedirects,
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !opts.AllowPrivate {
		dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, errors.Wrap(err, "invalid dial address")
			}
			ips, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to resolve host %q", host)
			}
			for _, ip := range ips {
				if Blocked(ip) {
					return nil, errors.Wrapf(ErrBlocked, "%s resolves to non-public address %s", host, ip)
				}
			}
			// Dial the vetted address so a second lookup cannot rebind
			return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].String(), port))
		}
	}

	c.http = &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= c.maxRedirects {
				return errors.Wrapf(ErrBlocked, "stopped after %d redirects", c.maxRedirects)
			}
			return c.checkURL(req.URL)
		},
	}
	return c
}

// Check parses raw and reports whether the client would send to it
func (c *Client) Check(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, "invalid URL")
	}
	if err := c.checkURL(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (c *Client) checkURL(u *url.URL) error {
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return errors.Wrapf(ErrBlocked, "scheme %q not allowed", u.Scheme)
	}
	if u.User != nil {
		return errors.Wrap(ErrBlocked, "URL must not carry credentials")
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return errors.Wrap(ErrBlocked, "URL has no host")
	}
	if c.allowPrivate {
		return nil
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return errors.Wrap(ErrBlocked, "localhost is not allowed")
	}
	if ip, err := netip.ParseAddr(host); err == nil && Blocked(ip) {
		return errors.Wrapf(ErrBlocked, "non-public address %s", ip)
	}
	return nil
}

// Blocked reports whether ip is outside the public unicast space
func Blocked(ip netip.Addr) bool {
	ip = ip.Unmap()
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() || ip.IsUnspecified() || ip.IsInterfaceLocalMulticast() {
		return true
	}
	for _, p := range extraBlocked {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

// Do sends req after checking its URL
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := c.checkURL(req.URL); err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

// PostJSON sends body to target with a JSON content type.
// Any status outside 2xx is an error; the response body is discarded.
func (c *Client) PostJSON(ctx context.Context, target string, body []byte, header http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return errors.Wrapf(err, "POST %s failed", req.URL.Redacted())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Newf("POST %s returned %s", req.URL.Redacted(), resp.Status)
	}
	return nil
}
