package credentials

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "supamon-backend/internal/errors"
	"supamon-backend/internal/postgrest"
)

// redirectTransport sends every request to target regardless of its host.
type redirectTransport struct {
	target *url.URL
	calls  atomic.Int32
}

func (t *redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.calls.Add(1)
	out := req.Clone(req.Context())
	out.URL.Scheme = t.target.Scheme
	out.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(out)
}

func newValidator(t *testing.T, handler http.HandlerFunc) (*Validator, *redirectTransport) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	target, err := url.Parse(srv.URL)
	require.NoError(t, err)
	rt := &redirectTransport{target: target}

	v, err := NewValidator("example-host.co", "auth.users", postgrest.WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)
	return v, rt
}

func TestInvalidURLMakesNoNetworkCall(t *testing.T) {
	v, rt := newValidator(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	for _, raw := range []string{
		"ftp://abcd1234.example-host.co",
		"https://abcd1234.other.co",
		"https://abc-123.example-host.co",
		"not a url",
		"",
	} {
		res := v.Validate(context.Background(), raw, "key")
		assert.False(t, res.Valid, raw)
		require.NotNil(t, res.Error, raw)
		assert.True(t, errors.Is(res.Error, apperrors.ErrInvalidURLFormat), raw)
	}
	assert.Equal(t, int32(0), rt.calls.Load())
}

func TestNotFoundProbeCountsAsValid(t *testing.T) {
	v, rt := newValidator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/users", r.URL.Path)
		assert.Equal(t, "auth", r.Header.Get("Accept-Profile"))
		assert.Equal(t, "good-key", r.Header.Get("apikey"))
		w.WriteHeader(http.StatusNotFound)
	})

	res := v.Validate(context.Background(), "https://abcd1234.example-host.co", "good-key")
	assert.True(t, res.Valid)
	assert.Equal(t, "abcd1234", res.ProjectRef)
	assert.Nil(t, res.Error)
	assert.Equal(t, int32(1), rt.calls.Load())
}

func TestMissingRelationCodeCountsAsValid(t *testing.T) {
	v, _ := newValidator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"42P01","message":"relation does not exist"}`))
	})

	res := v.Validate(context.Background(), "https://abcd1234.example-host.co/", "good-key")
	assert.True(t, res.Valid)
}

func TestUnexposedSchemaCountsAsValid(t *testing.T) {
	v, _ := newValidator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "auth", r.Header.Get("Accept-Profile"))
		w.WriteHeader(http.StatusNotAcceptable)
		_, _ = w.Write([]byte(`{"code":"PGRST106","message":"The schema must be one of the following: public, graphql_public"}`))
	})

	res := v.Validate(context.Background(), "https://abcd1234.example-host.co", "good-key")
	assert.True(t, res.Valid)
	assert.Equal(t, "abcd1234", res.ProjectRef)
	assert.Nil(t, res.Error)
}

func TestSuccessfulProbeIsValid(t *testing.T) {
	v, _ := newValidator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "*/3")
	})

	res := v.Validate(context.Background(), "  HTTPS://ABCD1234.example-host.co  ", "good-key")
	assert.True(t, res.Valid)
	assert.Equal(t, "abcd1234", res.ProjectRef)
}

func TestUnauthorizedIsRejected(t *testing.T) {
	v, _ := newValidator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid API key"}`))
	})

	res := v.Validate(context.Background(), "https://abcd1234.example-host.co", "bad-key")
	assert.False(t, res.Valid)
	assert.Empty(t, res.ProjectRef)
	require.NotNil(t, res.Error)
	assert.True(t, errors.Is(res.Error, apperrors.ErrCredentialRejected))
	assert.Contains(t, res.Error.Details, "Invalid API key")
	assert.NotContains(t, res.Error.Details, "bad-key")
}

func TestServerErrorIsRejected(t *testing.T) {
	v, _ := newValidator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	res := v.Validate(context.Background(), "https://abcd1234.example-host.co", "key")
	assert.False(t, res.Valid)
	assert.True(t, errors.Is(res.Error, apperrors.ErrCredentialRejected))
}

func TestEmptyCredentialIsRejectedOffline(t *testing.T) {
	v, rt := newValidator(t, func(w http.ResponseWriter, r *http.Request) {})

	res := v.Validate(context.Background(), "https://abcd1234.example-host.co", "   ")
	assert.True(t, errors.Is(res.Error, apperrors.ErrCredentialRejected))
	assert.Equal(t, int32(0), rt.calls.Load())
}

func TestParseProjectRef(t *testing.T) {
	v, err := NewValidator("supabase.co", "")
	require.NoError(t, err)

	ref, ok := v.ParseProjectRef("https://xyzxyz.supabase.co")
	assert.True(t, ok)
	assert.Equal(t, "xyzxyz", ref)

	_, ok = v.ParseProjectRef("https://xyzxyz.supabaseXco")
	assert.False(t, ok)
}
