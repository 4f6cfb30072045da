// Package restclient is the JSON-over-HTTP client the storefront uses for its backends.
// Every call is bounded by a timeout and runs through a circuit breaker.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultTimeout = 3 * time.Second
	maxBodyBytes   = 4 << 20
)

// ErrNotFound is returned for a 404 response.
var ErrNotFound = errors.New("resource not found")

// StatusError is any other non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
}

type Client struct {
	base    string
	hc      *http.Client
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithTimeout bounds each call, breaker included. Non-positive values keep DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New builds a client for baseURL. name labels the breaker in logs.
func New(name, baseURL string, log logrus.FieldLogger, opts ...Option) *Client {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warnf("CircuitBreaker[%s] state changed from %s to %s", name, from, to)
		},
	}

	c := &Client{
		base:    strings.TrimRight(baseURL, "/"),
		cb:      gobreaker.NewCircuitBreaker(st),
		timeout: DefaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	if c.hc == nil {
		c.hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return c
}

type reply struct {
	code int
	body []byte
}

// Do sends in (if non-nil) as the JSON body and decodes a 2xx response into out (if non-nil).
// Transport errors and 5xx responses count against the breaker; 4xx responses do not.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		payload = b
	}

	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	res, err := c.cb.Execute(func() (interface{}, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.hc.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return nil, &StatusError{Method: method, Path: path, Code: resp.StatusCode}
		}
		return &reply{code: resp.StatusCode, body: data}, nil
	})
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}

	r := res.(*reply)
	switch {
	case r.code == http.StatusNotFound:
		return ErrNotFound
	case r.code >= 400:
		return &StatusError{Method: method, Path: path, Code: r.code}
	}
	if out == nil || len(bytes.TrimSpace(r.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.body, out); err != nil {
		return errors.Wrapf(err, "decode %s %s", method, path)
	}
	return nil
}
