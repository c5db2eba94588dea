package postgrest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, "service-key")
	require.NoError(t, err)
	return c
}

func TestCountUsesHeadAndProfile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "/rest/v1/users", r.URL.Path)
		assert.Equal(t, "*", r.URL.Query().Get("select"))
		assert.Equal(t, "gte.2024-01-01T00:00:00Z", r.URL.Query().Get("last_sign_in_at"))
		assert.Equal(t, "count=exact", r.Header.Get("Prefer"))
		assert.Equal(t, "auth", r.Header.Get("Accept-Profile"))
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Range", "0-0/42")
		w.WriteHeader(http.StatusOK)
	})

	n, err := c.Count(context.Background(), "auth.users", Gte("last_sign_in_at", "2024-01-01T00:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestCountWithoutExactTotalFails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "0-0/*")
	})

	_, err := c.Count(context.Background(), "profiles")
	assert.Error(t, err)
}

func TestSelectBuildsQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/users", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "id,email,created_at", q.Get("select"))
		assert.Equal(t, "created_at.desc", q.Get("order"))
		assert.Equal(t, "10", q.Get("limit"))
		_ = json.NewEncoder(w).Encode([]map[string]string{{"id": "u1", "email": "a@b.c"}})
	})

	var rows []struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	err := c.Select(context.Background(), "auth.users", Query{
		Columns: "id,email,created_at",
		Order:   "created_at.desc",
		Limit:   10,
	}, &rows)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a@b.c", rows[0].Email)
}

func TestRPCPostsArguments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/rpc/pg_database_size", r.URL.Path)
		var args map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&args))
		assert.Equal(t, "postgres", args["name"])
		_, _ = w.Write([]byte("10485760"))
	})

	var size int64
	require.NoError(t, c.RPC(context.Background(), "pg_database_size", map[string]string{"name": "postgres"}, &size))
	assert.Equal(t, int64(10485760), size)
}

func TestErrorPayloadIsParsed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"PGRST205","message":"Could not find the table","details":null,"hint":"Perhaps you meant x"}`))
	})

	var rows []map[string]interface{}
	err := c.Select(context.Background(), "missing", Query{}, &rows)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "PGRST205", apiErr.Code)
	assert.Equal(t, "Perhaps you meant x", apiErr.Hint)
	assert.NotContains(t, apiErr.Error(), "service-key")
}

func TestProbeIsZeroRowGetWithErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/users", r.URL.Path)
		assert.Equal(t, "*", r.URL.Query().Get("select"))
		assert.Equal(t, "0", r.URL.Query().Get("limit"))
		assert.Equal(t, "auth", r.Header.Get("Accept-Profile"))
		w.WriteHeader(http.StatusNotAcceptable)
		_, _ = w.Write([]byte(`{"code":"PGRST106","message":"The schema must be one of the following: public"}`))
	})

	err := c.Probe(context.Background(), "auth.users")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotAcceptable, apiErr.StatusCode)
	assert.Equal(t, "PGRST106", apiErr.Code)
	assert.Contains(t, apiErr.Message, "schema must be one of")
}

func TestProbeSucceedsOnEmptyArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	assert.NoError(t, c.Probe(context.Background(), "profiles"))
}

func TestNewClientRejectsGarbage(t *testing.T) {
	_, err := NewClient("not a url", "k")
	assert.Error(t, err)
}

func TestParseContentRange(t *testing.T) {
	n, err := parseContentRange("*/7")
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	_, err = parseContentRange("")
	assert.Error(t, err)
}
