// Package kvtest provides an in-memory key-value service speaking the /kv
// HTTP contract, for tests and local runs.
package kvtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Faults alter the server's behaviour to exercise failure paths.
type Faults struct {
	// IgnoreDeletes answers 204 to DELETE without removing the key.
	IgnoreDeletes bool
	// MalformedGet makes GET /kv/{key} answer 200 with a non-JSON body.
	MalformedGet bool
	// DropAbsentFromMGet omits absent keys from mget responses.
	DropAbsentFromMGet bool
	// Unhealthy makes /health answer 503.
	Unhealthy bool
}

type entry struct {
	value   []byte
	expires time.Time
}

// Store is the in-memory service behind Server. Serve it with Handler.
type Store struct {
	mu     sync.Mutex
	data   map[string]entry
	faults Faults
	now    func() time.Time

	puts    atomic.Int64
	gets    atomic.Int64
	mgets   atomic.Int64
	deletes atomic.Int64
	resets  atomic.Int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]entry),
		now:  time.Now,
	}
}

// Handler routes the service endpoints to the store.
func (s *Store) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/reset", s.handleReset)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/kv/mget", s.handleMGet)
	mux.HandleFunc("/kv/", s.handleKey)
	return mux
}

// Server is a Store served by an httptest.Server.
type Server struct {
	*httptest.Server
	*Store
}

// NewServer starts a fake service. Close it when done.
func NewServer() *Server {
	store := NewStore()
	return &Server{
		Server: httptest.NewServer(store.Handler()),
		Store:  store,
	}
}

// SetFaults replaces the active faults.
func (s *Store) SetFaults(f Faults) {
	s.mu.Lock()
	s.faults = f
	s.mu.Unlock()
}

// Value returns the stored bytes for key.
func (s *Store) Value(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	return e.value, ok
}

// Len returns the number of live keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.data {
		if _, ok := s.lookup(k); ok {
			n++
		}
	}
	return n
}

// Counts returns the number of requests served per operation.
func (s *Store) Counts() (puts, gets, mgets, deletes int64) {
	return s.puts.Load(), s.gets.Load(), s.mgets.Load(), s.deletes.Load()
}

// Resets returns how many times /reset was called.
func (s *Store) Resets() int64 {
	return s.resets.Load()
}

// lookup must be called with mu held.
func (s *Store) lookup(key string) (entry, bool) {
	e, ok := s.data[key]
	if !ok {
		return entry{}, false
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.data, key)
		return entry{}, false
	}
	return e, true
}

func (s *Store) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	unhealthy := s.faults.Unhealthy
	s.mu.Unlock()

	if unhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Store) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.resets.Add(1)
	s.mu.Lock()
	s.data = make(map[string]entry)
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Store) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int64{
		"keys_count":     int64(s.Len()),
		"total_requests": s.puts.Load() + s.gets.Load() + s.mgets.Load() + s.deletes.Load(),
	})
}

type record struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
}

func (s *Store) handleKey(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/kv/")

	switch r.Method {
	case http.MethodPut:
		s.puts.Add(1)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		e := entry{value: body}
		if ttl, err := strconv.Atoi(r.URL.Query().Get("ttl")); err == nil && ttl > 0 {
			e.expires = s.now().Add(time.Duration(ttl) * time.Second)
		}
		s.mu.Lock()
		s.data[key] = e
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)

	case http.MethodGet:
		s.gets.Add(1)
		s.mu.Lock()
		e, ok := s.lookup(key)
		malformed := s.faults.MalformedGet
		s.mu.Unlock()

		if ok && malformed {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("{not json"))
			return
		}

		rec := record{Key: key}
		if ok {
			v := string(e.value)
			rec.Value = &v
		} else {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusNotFound)
		}
		_ = json.NewEncoder(w).Encode(rec)

	case http.MethodDelete:
		s.deletes.Add(1)
		s.mu.Lock()
		if !s.faults.IgnoreDeletes {
			delete(s.data, key)
		}
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Store) handleMGet(w http.ResponseWriter, r *http.Request) {
	s.mgets.Add(1)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	raw := strings.TrimSpace(r.URL.Query().Get("keys"))
	records := make([]record, 0)
	seen := make(map[string]struct{})

	s.mu.Lock()
	dropAbsent := s.faults.DropAbsentFromMGet
	for _, part := range strings.Split(raw, ",") {
		key := strings.TrimSpace(part)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		rec := record{Key: key}
		if e, ok := s.lookup(key); ok {
			v := string(e.value)
			rec.Value = &v
		} else if dropAbsent {
			continue
		}
		records = append(records, rec)
	}
	s.mu.Unlock()

	_ = json.NewEncoder(w).Encode(records)
}
