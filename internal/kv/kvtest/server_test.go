package kvtest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, h http.Handler, method, target, body string) (int, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, r))
	return rec.Code, strings.TrimSpace(rec.Body.String())
}

func TestStore_Contract(t *testing.T) {
	h := NewStore().Handler()

	code, body := do(t, h, http.MethodPut, "/kv/a", "value=1")
	assert.Equal(t, http.StatusNoContent, code)
	assert.Empty(t, body)

	code, body = do(t, h, http.MethodGet, "/kv/a", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"key":"a","value":"value=1"}`, body)

	code, body = do(t, h, http.MethodGet, "/kv/mget?keys=a,missing,a", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[{"key":"a","value":"value=1"},{"key":"missing","value":null}]`, body)

	code, _ = do(t, h, http.MethodDelete, "/kv/a", "")
	assert.Equal(t, http.StatusNoContent, code)

	code, body = do(t, h, http.MethodGet, "/kv/a", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.JSONEq(t, `{"key":"a","value":null}`, body)
}

func TestStore_TTLExpiry(t *testing.T) {
	s := NewStore()
	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }
	h := s.Handler()

	do(t, h, http.MethodPut, "/kv/a?ttl=5", "v")
	require.Equal(t, 1, s.Len())

	now = now.Add(5 * time.Second)
	code, _ := do(t, h, http.MethodGet, "/kv/a", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, 0, s.Len())
}

func TestStore_ResetAndHealth(t *testing.T) {
	s := NewStore()
	h := s.Handler()

	do(t, h, http.MethodPut, "/kv/a", "v")
	code, _ := do(t, h, http.MethodGet, "/reset", "")
	assert.Equal(t, http.StatusMethodNotAllowed, code)

	code, _ = do(t, h, http.MethodPost, "/reset", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, int64(1), s.Resets())

	code, _ = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	s.SetFaults(Faults{Unhealthy: true})
	code, _ = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestServer_Counts(t *testing.T) {
	srv := NewServer()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/kv/x")
	require.NoError(t, err)
	resp.Body.Close()

	_, gets, _, _ := srv.Counts()
	assert.Equal(t, int64(1), gets)
}
