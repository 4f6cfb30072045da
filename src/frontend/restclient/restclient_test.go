package restclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New("test", srv.URL+"/", logrus.New(), WithHTTPClient(srv.Client()))
}

func TestDoRoundTripsJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/users/1", r.URL.Path)
		assert.Equal(t, "x@y.z", r.URL.Query().Get("email"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		json.NewEncoder(w).Encode(map[string]int{"got": in["n"] + 1})
	})

	var out map[string]int
	err := c.Do(context.Background(), http.MethodPatch, "/users/1", url.Values{"email": {"x@y.z"}}, map[string]int{"n": 41}, &out)
	require.NoError(t, err)
	assert.Equal(t, 42, out["got"])
}

func TestDoMapsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	err := c.Do(context.Background(), http.MethodGet, "/users/9", nil, nil, nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDoReportsStatusErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	err := c.Do(context.Background(), http.MethodGet, "/products", nil, nil, nil)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Code)
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})
	for i := 0; i < 8; i++ {
		_ = c.Do(context.Background(), http.MethodGet, "/products", nil, nil, nil)
	}
	assert.Equal(t, 5, calls, "breaker should stop forwarding once it trips")
}

func TestWithTimeoutBoundsSlowBackends(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	c := New("slow", srv.URL, logrus.New(), WithHTTPClient(srv.Client()), WithTimeout(50*time.Millisecond))

	start := time.Now()
	err := c.Do(context.Background(), http.MethodGet, "/products", nil, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)
}

func TestWithTimeoutIgnoresNonPositive(t *testing.T) {
	c := New("test", "http://example.invalid", logrus.New(), WithTimeout(0))
	assert.Equal(t, DefaultTimeout, c.timeout)
}
