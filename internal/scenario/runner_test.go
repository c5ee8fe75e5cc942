package scenario

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/kvlunge/internal/keyspace"
	"github.com/wesleyorama2/kvlunge/internal/kv"
	"github.com/wesleyorama2/kvlunge/internal/kv/kvtest"
)

type checkCounter struct {
	mu     sync.Mutex
	passed map[string]int
	failed map[string]int
}

func newCheckCounter() *checkCounter {
	return &checkCounter{passed: map[string]int{}, failed: map[string]int{}}
}

func (c *checkCounter) RecordCheck(name string, passed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if passed {
		c.passed[name]++
	} else {
		c.failed[name]++
	}
}

func newRunner(t *testing.T, checks CheckRecorder) (*Runner, *kvtest.Server) {
	t.Helper()
	srv := kvtest.NewServer()
	t.Cleanup(srv.Close)

	client := kv.NewClient(kv.WithBaseURL(srv.URL), kv.WithTimeout(5*time.Second))
	return NewRunner(client, Config{Keys: 10, VUs: 2}, checks, nil), srv
}

func names(results []CheckResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Name
	}
	return out
}

func failed(results []CheckResult) []string {
	var out []string
	for _, r := range results {
		if !r.Passed {
			out = append(out, r.Name)
		}
	}
	return out
}

func TestRunner_FullIterationPasses(t *testing.T) {
	runner, srv := newRunner(t, nil)
	it := NewIteration(runner.Partitioner(), 1, 0)

	results, err := runner.Execute(context.Background(), it)
	require.NoError(t, err)

	assert.Equal(t, Checks, names(results))
	assert.Empty(t, failed(results))

	puts, gets, mgets, deletes := srv.Counts()
	assert.Equal(t, int64(1), puts)
	assert.Equal(t, int64(2), gets)
	assert.Equal(t, int64(1), mgets)
	assert.Equal(t, int64(1), deletes)
	assert.Equal(t, 0, srv.Len())
}

func TestRunner_StepsFollowPlan(t *testing.T) {
	runner, _ := newRunner(t, nil)
	p := runner.Partitioner()
	ctx := context.Background()

	results, err := runner.Execute(ctx, NewIteration(p, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, []string{CheckPutStatus, CheckGetStatus, CheckGetMatches, CheckDeleteStatus}, names(results))

	results, err = runner.Execute(ctx, NewIteration(p, 2, 5))
	require.NoError(t, err)
	assert.Equal(t, []string{
		CheckPutStatus, CheckGetStatus, CheckGetMatches, CheckDeleteStatus,
		CheckGoneStatus, CheckGoneNull,
	}, names(results))
	assert.Empty(t, failed(results))
}

func TestRunner_RequestCountsOverManyIterations(t *testing.T) {
	checks := newCheckCounter()
	runner, srv := newRunner(t, checks)

	const n = 100
	for i := int64(0); i < n; i++ {
		require.NoError(t, runner.RunIteration(context.Background(), 1, i))
	}

	puts, gets, mgets, deletes := srv.Counts()
	assert.Equal(t, int64(n), puts)
	assert.Equal(t, int64(n+n/5), gets)
	assert.Equal(t, int64(n/10), mgets)
	assert.Equal(t, int64(n), deletes)

	assert.Empty(t, checks.failed)
	assert.Equal(t, n, checks.passed[CheckPutStatus])
	assert.Equal(t, n/10, checks.passed[CheckMGetAbsent])
	assert.Equal(t, n/5, checks.passed[CheckGoneNull])
}

func TestRunner_ConcurrentUnits(t *testing.T) {
	checks := newCheckCounter()
	srv := kvtest.NewServer()
	defer srv.Close()

	client := kv.NewClient(kv.WithBaseURL(srv.URL))
	runner := NewRunner(client, Config{Keys: 100, VUs: 10}, checks, nil)

	var wg sync.WaitGroup
	for unit := 1; unit <= 10; unit++ {
		wg.Add(1)
		go func(unit int) {
			defer wg.Done()
			for i := int64(0); i < 30; i++ {
				assert.NoError(t, runner.RunIteration(context.Background(), unit, i))
			}
		}(unit)
	}
	wg.Wait()

	// disjoint key ranges: no unit ever observes another unit's write
	assert.Empty(t, checks.failed)
	assert.Equal(t, 300, checks.passed[CheckGetMatches])
}

func TestRunner_LastWriteWins(t *testing.T) {
	srv := kvtest.NewServer()
	defer srv.Close()
	client := kv.NewClient(kv.WithBaseURL(srv.URL))
	ctx := context.Background()

	p := keyspace.New(10, 2)
	first := NewIteration(p, 1, 0)
	second := NewIteration(p, 1, int64(p.PerUnit()))
	require.Equal(t, first.Key, second.Key)

	_, err := client.Put(ctx, first.Key, first.Value, 0)
	require.NoError(t, err)
	_, err = client.Put(ctx, second.Key, second.Value, 0)
	require.NoError(t, err)

	resp, err := client.Get(ctx, first.Key)
	require.NoError(t, err)
	rec, err := resp.Record()
	require.NoError(t, err)
	require.True(t, rec.Present())

	assert.True(t, second.Matches(*rec.Value))
	assert.False(t, first.Matches(*rec.Value))
}

func TestRunner_IgnoredDeleteFailsReadAfterDelete(t *testing.T) {
	runner, srv := newRunner(t, nil)
	srv.SetFaults(kvtest.Faults{IgnoreDeletes: true})

	results, err := runner.Execute(context.Background(), NewIteration(runner.Partitioner(), 1, 5))
	require.NoError(t, err)

	assert.Equal(t, []string{CheckGoneStatus, CheckGoneNull}, failed(results))
}

func TestRunner_MalformedBodyFailsCheck(t *testing.T) {
	runner, srv := newRunner(t, nil)
	srv.SetFaults(kvtest.Faults{MalformedGet: true})

	results, err := runner.Execute(context.Background(), NewIteration(runner.Partitioner(), 1, 1))
	require.NoError(t, err)

	assert.Equal(t, []string{CheckGetMatches}, failed(results))
}

func TestRunner_MGetMissingAbsentRecord(t *testing.T) {
	runner, srv := newRunner(t, nil)
	srv.SetFaults(kvtest.Faults{DropAbsentFromMGet: true})

	results, err := runner.Execute(context.Background(), NewIteration(runner.Partitioner(), 1, 10))
	require.NoError(t, err)

	assert.Equal(t, []string{CheckMGetOrdered, CheckMGetPresent, CheckMGetAbsent}, failed(results))
}

func TestRunner_TransportFailureIsNotFatal(t *testing.T) {
	srv := kvtest.NewServer()
	url := srv.URL
	srv.Close()

	client := kv.NewClient(kv.WithBaseURL(url), kv.WithTimeout(time.Second))
	checks := newCheckCounter()
	runner := NewRunner(client, Config{Keys: 10, VUs: 2}, checks, nil)

	err := runner.RunIteration(context.Background(), 1, 0)
	require.NoError(t, err)

	assert.Empty(t, checks.passed)
	for _, name := range Checks {
		assert.Equal(t, 1, checks.failed[name], name)
	}
}

func TestRunner_CancelledContext(t *testing.T) {
	checks := newCheckCounter()
	runner, srv := newRunner(t, checks)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runner.RunIteration(ctx, 1, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, checks.passed)
	assert.Empty(t, checks.failed)

	puts, _, _, _ := srv.Counts()
	assert.Zero(t, puts)
}

func TestNewRunner_DefaultTTL(t *testing.T) {
	runner := NewRunner(kv.NewClient(), Config{Keys: 10, VUs: 2}, nil, nil)
	assert.Equal(t, DefaultTTL, runner.ttl)

	runner = NewRunner(kv.NewClient(), Config{Keys: 10, VUs: 2, TTL: 7}, nil, nil)
	assert.Equal(t, 7, runner.ttl)
}

type capturedPut struct {
	ttl         string
	hasTTL      bool
	contentType string
	body        string
}

// recordPuts serves the kv contract and remembers every PUT it receives.
func recordPuts(t *testing.T) (*httptest.Server, func() []capturedPut) {
	t.Helper()

	var (
		mu   sync.Mutex
		puts []capturedPut
	)
	store := kvtest.NewStore().Handler()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			body, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))

			mu.Lock()
			puts = append(puts, capturedPut{
				ttl:         r.URL.Query().Get("ttl"),
				hasTTL:      r.URL.Query().Has("ttl"),
				contentType: r.Header.Get("Content-Type"),
				body:        string(body),
			})
			mu.Unlock()
		}
		store.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []capturedPut {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedPut(nil), puts...)
	}
}

func TestRunner_WriteSendsTTLOnEvenIterations(t *testing.T) {
	tests := []struct {
		name    string
		ttl     int
		wantTTL string
	}{
		{"default ttl", 0, strconv.Itoa(DefaultTTL)},
		{"configured ttl", 7, "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, puts := recordPuts(t)
			client := kv.NewClient(kv.WithBaseURL(srv.URL), kv.WithTimeout(5*time.Second))
			runner := NewRunner(client, Config{Keys: 10, VUs: 2, TTL: tt.ttl}, nil, nil)

			const n = 12
			for i := int64(0); i < n; i++ {
				require.NoError(t, runner.RunIteration(context.Background(), 1, i))
			}

			got := puts()
			require.Len(t, got, n)
			for i, put := range got {
				if i%2 == 0 {
					assert.True(t, put.hasTTL, "iteration %d", i)
					assert.Equal(t, tt.wantTTL, put.ttl, "iteration %d", i)
				} else {
					assert.False(t, put.hasTTL, "iteration %d sent ttl=%q", i, put.ttl)
				}
				assert.Equal(t, "application/x-www-form-urlencoded", put.contentType, "iteration %d", i)
				assert.Equal(t, "value="+strconv.Itoa(i), put.body, "iteration %d", i)
			}
		})
	}
}
