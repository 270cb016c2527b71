// Package store owns the published path index. Rebuilds run one at a time
// and publish by swapping an atomic pointer, so queries always see a
// complete snapshot and keep the previous one when a rebuild fails.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/phobologic/c3complete/internal/complete"
	"github.com/phobologic/c3complete/internal/graph"
	"github.com/phobologic/c3complete/internal/index"
	"github.com/phobologic/c3complete/internal/merge"
	"github.com/phobologic/c3complete/internal/model"
	"github.com/phobologic/c3complete/internal/resolve"
)

// ErrRootNotFound is returned when the root class is absent from both schemas.
var ErrRootNotFound = errors.New("root class not found")

const (
	resultPublished = "published"
	resultUnchanged = "unchanged"
	resultFailed    = "failed"
)

// Loader produces the inputs of a rebuild.
type Loader interface {
	Load(ctx context.Context) (*model.Bundle, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (*model.Bundle, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context) (*model.Bundle, error) {
	return f(ctx)
}

// Options configures index construction and queries.
type Options struct {
	RootSymbol string
	RootClass  string
	Graph      graph.Options
	Merge      merge.Options
	MaxResults int
}

// DefaultOptions returns the options for the game runtime declarations.
func DefaultOptions() Options {
	return Options{
		RootSymbol: "runtime",
		RootClass:  "IRuntime",
		Graph:      graph.DefaultOptions(),
		Merge:      merge.DefaultOptions(),
	}
}

// Snapshot is one published index with its provenance.
type Snapshot struct {
	ID          uuid.UUID
	Index       *index.Index
	Entries     int
	BuiltAt     time.Time
	Reason      string
	Fingerprint uint64
	Walk        graph.Stats
	Merge       merge.Result
}

// Build runs the pipeline over one bundle: validate, resolve the root class,
// flatten and merge. It never publishes anything.
func Build(b *model.Bundle, opts Options) (*Snapshot, error) {
	for _, s := range []*model.Schema{b.Primary, b.Ambient} {
		if s == nil {
			continue
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}

	r := resolve.New(b.Primary, b.Ambient)
	rootClass, ok := r.Resolve(opts.RootClass)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRootNotFound, opts.RootClass)
	}

	ix, walk := graph.Flatten(opts.RootSymbol, rootClass, r, opts.Graph)
	merged := merge.Apply(ix, opts.Merge)

	return &Snapshot{
		ID:          uuid.New(),
		Index:       ix,
		Entries:     ix.Size(),
		BuiltAt:     time.Now(),
		Fingerprint: b.Fingerprint,
		Walk:        walk,
		Merge:       merged,
	}, nil
}

// Store publishes snapshots and answers queries from the current one.
type Store struct {
	loader  Loader
	opts    Options
	logger  *slog.Logger
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
}

// New creates an empty store. Call Rebuild to publish the first snapshot.
func New(loader Loader, opts Options, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{loader: loader, opts: opts, logger: logger}
}

// Current returns the published snapshot, or nil before the first
// successful rebuild.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Rebuild loads the inputs and publishes a new snapshot. When the input
// fingerprint matches the published snapshot and force is false, nothing is
// rebuilt and the current snapshot is returned with published=false. On
// error the previous snapshot stays published.
func (s *Store) Rebuild(ctx context.Context, reason string, force bool) (snap *Snapshot, published bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() {
		result := resultPublished
		switch {
		case err != nil:
			result = resultFailed
		case !published:
			result = resultUnchanged
		}
		recordRebuild(result, time.Since(start).Seconds())
	}()

	bundle, err := s.loader.Load(ctx)
	if err != nil {
		s.fail(reason, err)
		return s.Current(), false, fmt.Errorf("loading declarations: %w", err)
	}

	prev := s.Current()
	if !force && prev != nil && prev.Fingerprint == bundle.Fingerprint {
		s.logger.Debug("index unchanged",
			slog.String("reason", reason),
			slog.String("snapshot", prev.ID.String()),
		)
		return prev, false, nil
	}

	next, err := Build(bundle, s.opts)
	if err != nil {
		s.fail(reason, err)
		return prev, false, fmt.Errorf("building index: %w", err)
	}
	next.Reason = reason

	s.current.Store(next)
	recordSnapshot(next)
	s.logger.Info("index published",
		slog.String("reason", reason),
		slog.String("snapshot", next.ID.String()),
		slog.Int("entries", next.Entries),
		slog.Int("expanded", next.Walk.Expanded),
		slog.Int("object_types", next.Merge.ObjectTypes),
		slog.Int("merge_conflicts", next.Merge.Conflicts),
		slog.Duration("elapsed", time.Since(start)),
	)
	return next, true, nil
}

func (s *Store) fail(reason string, err error) {
	attrs := []any{
		slog.String("reason", reason),
		slog.String("error", err.Error()),
	}
	if prev := s.Current(); prev != nil {
		attrs = append(attrs, slog.String("kept_snapshot", prev.ID.String()))
	}
	s.logger.Warn("regeneration failed, previous completions remain active", attrs...)
}

// Query answers a completion request from the current snapshot. Before the
// first publish it returns nil.
func (s *Store) Query(raw string) []complete.Candidate {
	snap := s.Current()
	if snap == nil {
		return nil
	}
	out := complete.Query(snap.Index, raw, s.opts.MaxResults)
	recordQuery(len(out))
	return out
}

// Symbols returns the flattened entries under prefix from the current
// snapshot.
func (s *Store) Symbols(prefix []string) []index.Entry {
	snap := s.Current()
	if snap == nil {
		return nil
	}
	return snap.Index.Entries(prefix)
}
