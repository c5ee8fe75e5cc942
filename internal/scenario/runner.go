// Package scenario implements the per-iteration write / read / delete
// sequence run by every virtual user, with a check at each step.
//
// A failed check never aborts the iteration and nothing is retried: the
// next step runs regardless and the outcome is left to the aggregated
// check rate. Only cancellation of the context stops an iteration early.
package scenario

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/wesleyorama2/kvlunge/internal/keyspace"
	"github.com/wesleyorama2/kvlunge/internal/kv"
)

// Config configures a Runner.
type Config struct {
	Keys int
	VUs  int
	// TTL in seconds for even-iteration writes. Zero means DefaultTTL.
	TTL int
}

// Runner executes the scenario against a key-value service.
type Runner struct {
	client *kv.Client
	keys   *keyspace.Partitioner
	ttl    int
	checks CheckRecorder
	logger *zap.Logger
}

// NewRunner creates a runner. checks may be nil.
func NewRunner(client *kv.Client, cfg Config, checks CheckRecorder, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Runner{
		client: client,
		keys:   keyspace.New(cfg.Keys, cfg.VUs),
		ttl:    ttl,
		checks: checks,
		logger: logger.With(zap.String("component", "scenario")),
	}
}

// Partitioner returns the key partitioner in use.
func (r *Runner) Partitioner() *keyspace.Partitioner {
	return r.keys
}

// RunIteration runs one iteration for unit and records its checks. It
// returns an error only when ctx is done.
func (r *Runner) RunIteration(ctx context.Context, unit int, iteration int64) error {
	results, err := r.Execute(ctx, NewIteration(r.keys, unit, iteration))
	if r.checks != nil {
		for _, res := range results {
			r.checks.RecordCheck(res.Name, res.Passed)
		}
	}
	return err
}

// Execute runs the sequence for it and returns the check outcomes of every
// step that completed. On cancellation the partial results are returned
// along with ctx's error; the interrupted step contributes nothing.
func (r *Runner) Execute(ctx context.Context, it Iteration) ([]CheckResult, error) {
	plan := PlanFor(it.Counter)
	s := &step{it: it, logger: r.logger}

	steps := []func(context.Context, *step){
		r.write(plan),
		r.readBack,
	}
	if plan.BatchRead {
		steps = append(steps, r.batchRead)
	}
	steps = append(steps, r.remove)
	if plan.ReadAfterDelete {
		steps = append(steps, r.readGone)
	}

	for _, run := range steps {
		if err := ctx.Err(); err != nil {
			return s.results, err
		}
		mark := len(s.results)
		run(ctx, s)
		if err := ctx.Err(); err != nil {
			return s.results[:mark], err
		}
	}

	return s.results, nil
}

// step accumulates the checks of one iteration.
type step struct {
	it      Iteration
	results []CheckResult
	logger  *zap.Logger
}

func (s *step) check(name string, passed bool) {
	s.results = append(s.results, CheckResult{Name: name, Passed: passed})
	if !passed {
		s.logger.Debug("check failed",
			zap.String("check", name),
			zap.Int("vu", s.it.Unit),
			zap.Int64("iteration", s.it.Counter),
			zap.String("key", s.it.Key))
	}
}

func (r *Runner) write(plan Plan) func(context.Context, *step) {
	return func(ctx context.Context, s *step) {
		ttl := 0
		if plan.UseTTL {
			ttl = r.ttl
		}

		resp, err := r.client.Put(ctx, s.it.Key, s.it.Value, ttl)
		s.check(CheckPutStatus, err == nil && resp.StatusCode == http.StatusNoContent && resp.IsEmpty())
	}
}

func (r *Runner) readBack(ctx context.Context, s *step) {
	resp, err := r.client.Get(ctx, s.it.Key)
	if err != nil {
		s.check(CheckGetStatus, false)
		s.check(CheckGetMatches, false)
		return
	}

	s.check(CheckGetStatus, resp.StatusCode == http.StatusOK && !resp.IsEmpty())

	rec, err := resp.Record()
	s.check(CheckGetMatches, err == nil && rec.Key == s.it.Key && rec.Present() && s.it.Matches(*rec.Value))
}

func (r *Runner) batchRead(ctx context.Context, s *step) {
	absent := s.it.AbsentKey()

	resp, err := r.client.MGet(ctx, s.it.Key, absent)
	if err != nil {
		s.check(CheckMGetStatus, false)
		s.check(CheckMGetOrdered, false)
		s.check(CheckMGetPresent, false)
		s.check(CheckMGetAbsent, false)
		return
	}

	s.check(CheckMGetStatus, resp.StatusCode == http.StatusOK)

	recs, err := resp.Records()
	ordered := err == nil && len(recs) == 2 && recs[0].Key == s.it.Key && recs[1].Key == absent
	s.check(CheckMGetOrdered, ordered)

	present := ordered && recs[0].Present() && s.it.Matches(*recs[0].Value)
	s.check(CheckMGetPresent, present)

	s.check(CheckMGetAbsent, ordered && !recs[1].Present())
}

func (r *Runner) remove(ctx context.Context, s *step) {
	resp, err := r.client.Delete(ctx, s.it.Key)
	s.check(CheckDeleteStatus, err == nil && resp.StatusCode == http.StatusNoContent && resp.IsEmpty())
}

func (r *Runner) readGone(ctx context.Context, s *step) {
	resp, err := r.client.Get(ctx, s.it.Key)
	if err != nil {
		s.check(CheckGoneStatus, false)
		s.check(CheckGoneNull, false)
		return
	}

	s.check(CheckGoneStatus, resp.StatusCode == http.StatusNotFound)

	rec, err := resp.Record()
	s.check(CheckGoneNull, err == nil && rec.Key == s.it.Key && !rec.Present())
}
