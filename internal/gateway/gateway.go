// ABOUTME: Builds storefront API clients bound to a session snapshot
// ABOUTME: Each client is immutable; session changes produce a new client

package gateway

import (
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// DefaultTimeout bounds every outbound call
const DefaultTimeout = 60 * time.Second

// Snapshot is the session state a client is bound to
type Snapshot struct {
	Credential string
	UserID     int64
}

// Authenticated reports whether the snapshot carries a credential
func (s Snapshot) Authenticated() bool {
	return s.Credential != ""
}

// Options configures a Builder
type Options struct {
	BaseURL string
	Timeout time.Duration
	// AllProxy is an optional ssh+socks5://user@host:port?private-key=/path URL
	AllProxy string
	// Jar holds ambient cookies such as csrftoken. A fresh jar is created when nil.
	Jar http.CookieJar
}

// Builder produces clients that share transport and cookies
type Builder struct {
	baseURL       *url.URL
	httpClient    *http.Client
	jar           http.CookieJar
	onAuthFailure func(Snapshot)
}

// NewBuilder validates options and prepares the shared transport
func NewBuilder(opts Options) (*Builder, error) {
	base, err := ParseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	jar := opts.Jar
	if jar == nil {
		jar, err = cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.AllProxy != "" {
		dial, err := socks5DialContext(opts.AllProxy)
		if err != nil {
			return nil, err
		}
		transport.Proxy = nil
		transport.DialContext = dial
	} else {
		transport.DialContext = (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext
	}

	return &Builder{
		baseURL: base,
		jar:     jar,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			Jar:       jar,
		},
	}, nil
}

// ParseBaseURL validates the API origin and makes sure it ends with a slash
func ParseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid API URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid API URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q: missing host", raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

// OnAuthFailure registers the hook called when an authenticated call is rejected.
// The hook runs before the failing call returns.
func (b *Builder) OnAuthFailure(fn func(Snapshot)) {
	b.onAuthFailure = fn
}

// BaseURL returns the configured API origin
func (b *Builder) BaseURL() *url.URL {
	u := *b.baseURL
	return &u
}

// Jar returns the shared cookie jar
func (b *Builder) Jar() http.CookieJar {
	return b.jar
}

// Build returns a client bound to a copy of snapshot
func (b *Builder) Build(snapshot Snapshot) *Client {
	return &Client{
		baseURL:       b.BaseURL(),
		httpClient:    b.httpClient,
		jar:           b.jar,
		snapshot:      snapshot,
		onAuthFailure: b.onAuthFailure,
	}
}

// Client issues storefront API calls on behalf of one session snapshot
type Client struct {
	baseURL       *url.URL
	httpClient    *http.Client
	jar           http.CookieJar
	snapshot      Snapshot
	onAuthFailure func(Snapshot)
}

// Snapshot returns the session state this client was built from
func (c *Client) Snapshot() Snapshot {
	return c.snapshot
}
