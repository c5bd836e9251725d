// Package transport issues the HTTP calls made by load scripts.
//
// A Client wraps one pooled *http.Client shared by every simulated user. It
// resolves targets against the base address, merges default query parameters
// under explicit ones, applies default headers and basic auth, never follows
// redirects, and reports deadline expiry as ErrTimeout so callers can tell a
// timeout apart from a completed response or another transport fault.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultConnectTimeout bounds TCP connection establishment.
	DefaultConnectTimeout = 10 * time.Second
	// DefaultReadTimeout bounds a whole call, headers and body included.
	DefaultReadTimeout = 500 * time.Second

	TCPKeepAliveInterval  = 30 * time.Second
	TLSHandshakeTimeout   = 10 * time.Second
	IdleConnTimeout       = 90 * time.Second
	ExpectContinueTimeout = 1 * time.Second
)

// ErrTimeout is returned (wrapped) when no response arrived before a deadline.
var ErrTimeout = errors.New("request timed out")

// Request describes one call relative to the client's base address.
type Request struct {
	Method  string
	Target  string            // path (or absolute URL) of the call
	Params  map[string]string // query parameters, merged over the defaults
	Headers map[string]string
	Body    string
}

// Response is a completed call.
type Response struct {
	Status     int
	StatusText string
	Headers    map[string]string
	Body       []byte
	Duration   time.Duration
}

// BodyString returns the body as a string.
func (r *Response) BodyString() string {
	return string(r.Body)
}

// Doer performs calls. *Client implements it; tests substitute fakes.
type Doer interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Options configures a Client.
type Options struct {
	BaseURL        string
	DefaultParams  map[string]string
	DefaultHeaders map[string]string
	BasicAuthUser  string
	BasicAuthPass  string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Insecure       bool // skip TLS verification
	MaxConns       int  // connection pool size, usually the number of simulated users
}

// Client is the shared HTTP transport.
type Client struct {
	base       *url.URL
	opts       Options
	httpClient *http.Client
}

// New builds a Client with connection pooling sized for opts.MaxConns users.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", opts.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", opts.BaseURL)
	}

	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = 1
	}

	transport := &http.Transport{
		MaxIdleConns:        opts.MaxConns,
		MaxIdleConnsPerHost: opts.MaxConns,
		MaxConnsPerHost:     opts.MaxConns * 2,
		IdleConnTimeout:     IdleConnTimeout,
		ForceAttemptHTTP2:   true,
		DialContext: (&net.Dialer{
			Timeout:   opts.ConnectTimeout,
			KeepAlive: TCPKeepAliveInterval,
		}).DialContext,
		TLSHandshakeTimeout:   TLSHandshakeTimeout,
		ExpectContinueTimeout: ExpectContinueTimeout,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: opts.Insecure, //nolint:gosec
		},
	}

	return &Client{
		base: base,
		opts: opts,
		httpClient: &http.Client{
			Timeout:   opts.ReadTimeout,
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// Close releases idle pooled connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// BuildURL appends target to the base address and encodes the merged query.
// Absolute targets (with a scheme) bypass the base address.
func (c *Client) BuildURL(target string, params map[string]string) (string, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid target %q: %w", target, err)
	}

	u := ref
	if !ref.IsAbs() {
		u = c.base.JoinPath(ref.Path)
		u.RawQuery = ref.RawQuery
	}

	query := u.Query()
	for k, v := range MergeParams(c.opts.DefaultParams, params) {
		query.Set(k, v)
	}
	u.RawQuery = query.Encode()

	return u.String(), nil
}

// MergeParams overlays explicit on defaults; explicit values win on collision.
func MergeParams(defaults, explicit map[string]string) map[string]string {
	merged := make(map[string]string, len(defaults)+len(explicit))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range explicit {
		merged[k] = v
	}
	return merged
}

// Do performs req. A completed call returns a Response whatever its status.
// Deadline expiry returns an error wrapping ErrTimeout; any other fault is
// returned as is.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	target, err := c.BuildURL(req.Target, req.Params)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range c.opts.DefaultHeaders {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if c.opts.BasicAuthUser != "" {
		httpReq.SetBasicAuth(c.opts.BasicAuthUser, c.opts.BasicAuthPass)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to read response body: %w", err))
	}

	headers := make(map[string]string, len(resp.Header))
	for k, values := range resp.Header {
		headers[k] = strings.Join(values, ", ")
	}

	return &Response{
		Status:     resp.StatusCode,
		StatusText: resp.Status,
		Headers:    headers,
		Body:       data,
		Duration:   time.Since(start),
	}, nil
}

// classify wraps deadline failures in ErrTimeout.
func classify(err error) error {
	if IsTimeout(err) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// IsTimeout reports whether err is a deadline expiry of any flavour.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
