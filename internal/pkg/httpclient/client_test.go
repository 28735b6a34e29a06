package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type staticResolver struct {
	host string
	port int
	err  error
}

func (r staticResolver) DiscoverServiceInstance(string) (string, int, error) {
	return r.host, r.port, r.err
}

func newClient(resolver Resolver) *Client {
	return NewClient(noop.NewTracerProvider().Tracer("test"), resolver)
}

func TestDoJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]int
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&in)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"method":      r.Method,
			"contentType": r.Header.Get("Content-Type"),
			"custom":      r.Header.Get("X-Custom"),
			"doubled":     in["n"] * 2,
		})
	}))
	defer srv.Close()
	c := newClient(nil)

	var out struct {
		Method      string `json:"method"`
		ContentType string `json:"contentType"`
		Custom      string `json:"custom"`
		Doubled     int    `json:"doubled"`
	}
	header := http.Header{"X-Custom": {"yes"}}
	require.NoError(t, c.DoJSON(context.Background(), http.MethodPut, srv.URL, header, map[string]int{"n": 21}, &out))
	assert.Equal(t, "PUT", out.Method)
	assert.Equal(t, "application/json", out.ContentType)
	assert.Equal(t, "yes", out.Custom)
	assert.Equal(t, 42, out.Doubled)

	require.NoError(t, c.DoJSON(context.Background(), http.MethodGet, srv.URL, nil, nil, &out))
	assert.Empty(t, out.ContentType, "no body, no content type")
}

func TestDoJSON_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/plain" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"stock exhausted"}`))
	}))
	defer srv.Close()
	c := newClient(nil)

	err := c.PostJSON(context.Background(), srv.URL+"/reserve", map[string]string{"sku": "a"})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusConflict, statusErr.Status)
	assert.Equal(t, "stock exhausted", statusErr.Message)
	assert.Contains(t, err.Error(), "stock exhausted")

	err = c.PostJSON(context.Background(), srv.URL+"/plain", nil)
	require.True(t, errors.As(err, &statusErr))
	assert.Empty(t, statusErr.Message)
	assert.Contains(t, err.Error(), "status 500")
}

func TestCallService(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "/stock/release", r.URL.Path)
	}))
	defer srv.Close()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	c := newClient(staticResolver{host: u.Hostname(), port: port})
	require.NoError(t, c.CallService(context.Background(), "inventory", "/stock/release", map[string]string{"orderId": "o-1"}))
	assert.Equal(t, 1, hits)

	err = newClient(staticResolver{err: errors.New("no healthy instance")}).CallService(context.Background(), "inventory", "/x", nil)
	assert.EqualError(t, err, "no healthy instance")

	err = newClient(nil).CallService(context.Background(), "inventory", "/x", nil)
	assert.Error(t, err)
}
