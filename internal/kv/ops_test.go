package kv_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/kvlunge/internal/kv"
	"github.com/wesleyorama2/kvlunge/internal/kv/kvtest"
)

func newClient(t *testing.T) (*kv.Client, *kvtest.Server) {
	t.Helper()
	srv := kvtest.NewServer()
	t.Cleanup(srv.Close)
	return kv.NewClient(kv.WithBaseURL(srv.URL), kv.WithTimeout(5*time.Second)), srv
}

func TestClient_PutGetDelete(t *testing.T) {
	client, srv := newClient(t)
	ctx := context.Background()

	resp, err := client.Put(ctx, "bench000001", "12", 0)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.True(t, resp.IsEmpty())

	stored, ok := srv.Value("bench000001")
	require.True(t, ok)
	assert.Equal(t, "value=12", string(stored))

	resp, err = client.Get(ctx, "bench000001")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	rec, err := resp.Record()
	require.NoError(t, err)
	assert.Equal(t, "bench000001", rec.Key)
	assert.Equal(t, "value=12", rec.ValueOr(""))

	resp, err = client.Delete(ctx, "bench000001")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = client.Get(ctx, "bench000001")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	rec, err = resp.Record()
	require.NoError(t, err)
	assert.Equal(t, "bench000001", rec.Key)
	assert.False(t, rec.Present())
}

func TestClient_PutRawWithTTL(t *testing.T) {
	client, srv := newClient(t)
	ctx := context.Background()

	_, err := client.PutRaw(ctx, "k", []byte("raw"), 50)
	require.NoError(t, err)

	v, ok := srv.Value("k")
	require.True(t, ok)
	assert.Equal(t, "raw", string(v))
}

func TestClient_MGet(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()

	_, err := client.Put(ctx, "bench000010", "10", 0)
	require.NoError(t, err)

	resp, err := client.MGet(ctx, "bench000010", "bench000010__absent")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	recs, err := resp.Records()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "bench000010", recs[0].Key)
	assert.Equal(t, "value=10", recs[0].ValueOr(""))
	assert.Equal(t, "bench000010__absent", recs[1].Key)
	assert.Nil(t, recs[1].Value)
}

func TestClient_HealthAndReset(t *testing.T) {
	client, srv := newClient(t)
	ctx := context.Background()

	require.NoError(t, client.Health(ctx))

	_, err := client.Put(ctx, "a", "1", 0)
	require.NoError(t, err)
	require.NoError(t, client.Reset(ctx))
	assert.Equal(t, 0, srv.Len())
	assert.Equal(t, int64(1), srv.Resets())

	srv.SetFaults(kvtest.Faults{Unhealthy: true})
	err = client.Health(ctx)
	require.Error(t, err)

	var statusErr *kv.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Contains(t, err.Error(), "/health")
}

func TestClient_Stats(t *testing.T) {
	client, _ := newClient(t)

	body, err := client.Stats(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(body), "keys_count")
}

func TestStatusError_Error(t *testing.T) {
	err := &kv.StatusError{Method: "GET", Path: "/health", StatusCode: 500}
	assert.Equal(t, "GET /health: unexpected status 500", err.Error())

	err.Body = []byte("boom")
	assert.Equal(t, "GET /health: unexpected status 500: boom", err.Error())
}
