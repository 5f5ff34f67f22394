// Package scheduler drives Selector and Executor across a set of tables'
// worth of parts. It is a demonstration background worker, not a
// scheduling-policy implementation: table selection order, concurrency, and
// backoff are intentionally simple. It is grounded on replay/replay.go's use
// of golang.org/x/sync/errgroup to fan work out across a bounded pool of
// goroutines and wait for the round to finish.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/foldedb/mergetree"
)

// Table is one partitioned table's worth of merge state: its live part set
// and its executor options (row-combining mode). Its parts' rows live in the
// Scheduler's shared PartStore.
type Table struct {
	Name    string
	Parts   *mergetree.PartSet
	Options mergetree.TableOptions
}

// Scheduler repeatedly selects and executes one merge per registered table,
// up to a configured concurrency limit.
type Scheduler struct {
	selector *mergetree.Selector
	store    *mergetree.PartStore
	pacer    *mergetree.Pacer
	metrics  *mergetree.Metrics
	stats    *mergetree.RunStats
	claims   *mergetree.ClaimTracker

	concurrency        int
	availableDiskBytes uint64

	mu     sync.Mutex
	tables map[string]*Table
}

// Option configures a Scheduler at construction.
type Option func(*Scheduler)

// WithConcurrency bounds how many tables are merged concurrently per
// RunOnce call. The default is 1.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) { s.concurrency = n }
}

// WithAvailableDiskBytes reports the disk headroom SelectPartsToMerge should
// plan against.
func WithAvailableDiskBytes(n uint64) Option {
	return func(s *Scheduler) { s.availableDiskBytes = n }
}

// WithMetrics attaches a Metrics sink: RunsSelected counts every run the
// selector returns, and the other collectors are updated after every
// successful merge.
func WithMetrics(m *mergetree.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New returns a Scheduler backed by store, selecting with settings.
func New(settings mergetree.Settings, store *mergetree.PartStore, pacer *mergetree.Pacer, opts ...Option) *Scheduler {
	s := &Scheduler{
		selector:    mergetree.NewSelector(settings),
		store:       store,
		pacer:       pacer,
		stats:       mergetree.NewRunStats(),
		claims:      mergetree.NewClaimTracker(),
		concurrency: 1,
		tables:      make(map[string]*Table),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddTable registers a table for future RunOnce calls.
func (s *Scheduler) AddTable(t *Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[t.Name] = t
}

// Stats returns the scheduler's accumulated merge-run statistics.
func (s *Scheduler) Stats() *mergetree.RunStats { return s.stats }

// RunOnce attempts one merge per registered table, concurrently up to the
// configured limit, and reports how many tables actually merged. It returns
// the first error any table's Execute call returned; other tables in the
// same round still run to completion, mirroring errgroup's fail-fast-but-
// drain semantics in replay/replay.go.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	s.mu.Lock()
	tables := make([]*Table, 0, len(s.tables))
	for _, t := range s.tables {
		tables = append(tables, t)
	}
	s.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	var mergedCount atomic.Int64
	for _, t := range tables {
		t := t
		g.Go(func() error {
			ok, err := s.mergeOnePartition(ctx, t)
			if err != nil {
				return err
			}
			if ok {
				mergedCount.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()
	return int(mergedCount.Load()), err
}

func (s *Scheduler) mergeOnePartition(ctx context.Context, t *Table) (bool, error) {
	snapshot := t.Parts.Snapshot()

	run, ok := s.selector.SelectPartsToMerge(snapshot, mergetree.SelectOptions{
		AvailableDiskBytes: s.availableDiskBytes,
		CanMerge:           s.claims.Predicate(),
	})
	if !ok {
		return false, nil
	}
	if s.metrics != nil {
		s.metrics.RunsSelected.Inc()
	}
	if !s.claims.TryClaim(run) {
		return false, nil
	}
	defer s.claims.Release(run)

	executor := mergetree.NewExecutor(t.Options, s.store, s.pacer)
	token := mergetree.NewCancelToken()

	start := time.Now()
	result, err := executor.Execute(ctx, t.Parts, run, token)
	if err != nil {
		return false, err
	}
	if !result.Merged {
		return false, nil
	}
	duration := time.Since(start)

	s.stats.Record(len(run), result.Rows, duration)
	if s.metrics != nil {
		s.metrics.ObserveResult(run, result.Rows)
		s.metrics.MergeDuration.Observe(duration.Seconds())
	}
	return true, nil
}
