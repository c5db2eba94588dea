package management

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func TestAPIRequestCountShapes(t *testing.T) {
	cases := map[string]string{
		"bare array": `[{"count":5},{"count":7}]`,
		"result":     `{"result":[{"count":5},{"count":7}]}`,
		"data":       `{"data":[{"count":12}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/projects/abcd1234/analytics/endpoints/usage.api-requests-count", r.URL.Path)
				assert.Equal(t, "Bearer pat-token", r.Header.Get("Authorization"))
				_, _ = w.Write([]byte(body))
			})

			n, err := c.APIRequestCount(context.Background(), "abcd1234", "pat-token")
			require.NoError(t, err)
			assert.Equal(t, int64(12), n)
		})
	}
}

func TestAPIRequestCountEmptyObject(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	n, err := c.APIRequestCount(context.Background(), "abcd1234", "pat-token")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAPIRequestCountStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"JWT expired"}`))
	})

	_, err := c.APIRequestCount(context.Background(), "abcd1234", "pat-token")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, "JWT expired", statusErr.Message)
	assert.NotContains(t, err.Error(), "pat-token")
}

func TestAPIRequestCountHonorsCancellation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}, WithRate(0, 0))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.APIRequestCount(ctx, "abcd1234", "pat-token")
	assert.Error(t, err)
}

func TestRateLimiterPacesRequests(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}, WithRate(20, 1))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.APIRequestCount(context.Background(), "abcd1234", "pat-token")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestNewClientRequiresAbsoluteURL(t *testing.T) {
	_, err := NewClient("api.example.com")
	assert.Error(t, err)
}
