// Package engine wires extraction, graph construction, ranking, and
// rendering into the synchronous map pipeline.
package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"repomap/internal/cache"
	"repomap/internal/extract"
	"repomap/internal/graph"
	"repomap/internal/lang"
	"repomap/internal/rank"
	"repomap/internal/render"
	"repomap/internal/seed"
	"repomap/internal/tags"
	"repomap/internal/token"
)

// ErrNoCandidates is the only fatal condition: an empty or unloadable
// candidate file list.
var ErrNoCandidates = errors.New("no candidate files")

// File is one candidate: a path plus a content accessor returning the
// bytes and modification time.
type File struct {
	Path string
	Load func() ([]byte, int64, error)
}

// Request carries everything one map computation needs.
type Request struct {
	Files   []File
	Chat    seed.ChatState
	Budget  int
	Counter token.Counter
	// Progress, when set, is called after each file finishes extraction.
	// Calls are serialized.
	Progress func(done, total int)
}

// Stats aggregates recoverable per-file failures. None of these abort
// the computation.
type Stats struct {
	ParseErrors int
	Unsupported int
	Oversized   int
	CacheErrors int
}

// Result is one pipeline run's output. Ranked and Graph expose the raw
// scored tag list and reference graph for introspection.
type Result struct {
	Map       tags.MapResult
	Ranked    []tags.RankedTag
	Graph     *graph.Graph
	FileRanks map[string]float64
	Stats     Stats
}

// snapshot holds the graph and ranking reused across requests when the
// refresh policy permits.
type snapshot struct {
	fingerprints map[string]tags.Fingerprint
	graph        *graph.Graph
	ranked       []tags.RankedTag
	fileRanks    map[string]float64
}

// Engine runs the map pipeline. Safe for sequential reuse; transient
// structures are rebuilt per run rather than accumulated.
type Engine struct {
	cache       cache.Cache
	log         *zap.Logger
	workers     int
	maxFileSize int
	policy      Policy
	graphCfg    graph.Config
	rankCfg     rank.Config
	seedCfg     seed.Config
	renderOpts  render.Options

	mu    sync.Mutex
	snap  *snapshot
	dirty bool
}

// Option configures an Engine.
type Option func(*Engine)

func WithWorkers(n int) Option            { return func(e *Engine) { e.workers = n } }
func WithPolicy(p Policy) Option          { return func(e *Engine) { e.policy = p } }
func WithMaxFileSize(n int) Option        { return func(e *Engine) { e.maxFileSize = n } }
func WithGraphConfig(c graph.Config) Option { return func(e *Engine) { e.graphCfg = c } }
func WithRankConfig(c rank.Config) Option { return func(e *Engine) { e.rankCfg = c } }
func WithSeedConfig(c seed.Config) Option { return func(e *Engine) { e.seedCfg = c } }
func WithRenderOptions(o render.Options) Option { return func(e *Engine) { e.renderOpts = o } }

// New creates an engine. A nil cache selects an in-memory one; a nil
// logger disables logging.
func New(c cache.Cache, log *zap.Logger, opts ...Option) *Engine {
	if c == nil {
		c = cache.NewMemory()
	}
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		cache:       c,
		log:         log,
		workers:     runtime.GOMAXPROCS(0),
		maxFileSize: extract.DefaultMaxFileSize,
		policy:      PolicyAlways,
		graphCfg:    graph.DefaultConfig(),
		rankCfg:     rank.DefaultConfig(),
		seedCfg:     seed.DefaultConfig(),
		renderOpts:  render.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = 1
	}
	return e
}

// Invalidate forces the next Run to rebuild the graph and ranking
// regardless of policy.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	e.dirty = true
	e.mu.Unlock()
}

// Run executes the full pipeline. Cancellation via ctx stops cleanly:
// the cache stays consistent and no partial result is returned.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	if len(req.Files) == 0 {
		return nil, ErrNoCandidates
	}

	records, lines, stats, err := e.extractAll(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := e.snapshotFor(records, req.Chat)

	opts := e.renderOpts
	opts.ExcludeFiles = req.Chat.InContext
	opts.OpaqueFiles = opaquePaths(records)

	counter := req.Counter
	if counter == nil {
		counter = token.CounterFunc(func(s string) int { return (len(s) + 3) / 4 })
	}
	src := func(path string) ([]string, error) {
		if l, ok := lines[path]; ok {
			return l, nil
		}
		return nil, fmt.Errorf("no content for %s", path)
	}

	m := render.Fit(snap.ranked, src, counter, req.Budget, opts)

	return &Result{
		Map:       m,
		Ranked:    snap.ranked,
		Graph:     snap.graph,
		FileRanks: snap.fileRanks,
		Stats:     stats,
	}, nil
}

// snapshotFor returns the cached graph/ranking when the policy allows
// reuse, rebuilding otherwise. Reuse deliberately tolerates stale
// conversation signals; that trade is the policy's point.
func (e *Engine) snapshotFor(records []tags.FileRecord, chat seed.ChatState) *snapshot {
	fps := make(map[string]tags.Fingerprint, len(records))
	for i := range records {
		fps[records[i].Path] = records[i].Fingerprint
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.snap != nil && !e.dirty {
		switch e.policy {
		case PolicyManual:
			return e.snap
		case PolicyOnFileChange:
			if fingerprintsEqual(e.snap.fingerprints, fps) {
				return e.snap
			}
		}
	}

	mentioned := seed.Identifiers(chat.RecentText)
	g := graph.Build(records, graph.Signals{Mentioned: mentioned, Flagged: chat.Flagged}, e.graphCfg)
	p := seed.Build(records, chat, e.seedCfg)
	ranks := rank.Ranks(g, p, e.rankCfg)

	e.snap = &snapshot{
		fingerprints: fps,
		graph:        g,
		ranked:       rank.DistributeToTags(g, records, ranks),
		fileRanks:    rank.FileScores(g, ranks, e.rankCfg),
	}
	e.dirty = false
	e.log.Debug("recomputed ranking",
		zap.Int("nodes", len(g.Nodes)),
		zap.Int("edges", len(g.Edges)),
		zap.String("policy", e.policy.String()))
	return e.snap
}

// extractAll parses all candidates through the cache with a bounded
// worker pool, each worker owning its parsers. Results come back sorted
// by path so the pipeline is invariant to candidate order.
func (e *Engine) extractAll(ctx context.Context, req Request) ([]tags.FileRecord, map[string][]string, Stats, error) {
	files := req.Files
	total := len(files)

	workers := e.workers
	if workers > total {
		workers = total
	}

	records := make([]tags.FileRecord, total)
	valid := make([]bool, total)
	fileLines := make([][]string, total)

	var mu sync.Mutex
	var stats Stats
	done := 0

	before := e.cache.Stats()

	idxCh := make(chan int)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(idxCh)
		for i := range files {
			select {
			case idxCh <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			x := extract.New(e.maxFileSize)
			for idx := range idxCh {
				f := files[idx]
				rec, lns, outcome, err := e.extractOne(gctx, x, f)
				if err != nil {
					return err
				}

				mu.Lock()
				switch outcome {
				case outcomeParseError:
					stats.ParseErrors++
				case outcomeUnsupported:
					stats.Unsupported++
				case outcomeOversized:
					stats.Oversized++
				}
				if outcome != outcomeSkipped && outcome != outcomeParseError {
					records[idx] = rec
					valid[idx] = true
					fileLines[idx] = lns
				}
				done++
				if req.Progress != nil {
					req.Progress(done, total)
				}
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, stats, err
	}

	var out []tags.FileRecord
	lines := make(map[string][]string)
	for i, ok := range valid {
		if !ok {
			continue
		}
		out = append(out, records[i])
		lines[records[i].Path] = fileLines[i]
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	after := e.cache.Stats()
	stats.CacheErrors = int(after.IOErrors - before.IOErrors)

	if len(out) == 0 {
		return nil, nil, stats, ErrNoCandidates
	}
	return out, lines, stats, nil
}

type outcome int

const (
	outcomeTagged outcome = iota
	outcomeUnsupported
	outcomeOversized
	outcomeParseError
	outcomeSkipped
)

func (e *Engine) extractOne(ctx context.Context, x *extract.Extractor, f File) (tags.FileRecord, []string, outcome, error) {
	content, mtime, err := f.Load()
	if err != nil {
		e.log.Warn("skipping unreadable file", zap.String("path", f.Path), zap.Error(err))
		return tags.FileRecord{}, nil, outcomeSkipped, nil
	}

	langName := lang.ForExtension(filepath.Ext(f.Path))
	rec := tags.FileRecord{
		Path:        f.Path,
		Language:    langName,
		Fingerprint: tags.FingerprintOf(content, mtime),
	}
	lns := splitLines(content)

	// Size and language guards run before the cache so opaque files are
	// never parsed and never cached.
	if langName == "" {
		rec.Opaque = true
		return rec, lns, outcomeUnsupported, nil
	}
	if len(content) > e.maxFileSize {
		rec.Opaque = true
		return rec, lns, outcomeOversized, nil
	}

	ts, err := e.cache.GetOrParse(ctx, f.Path, content, mtime, func() ([]tags.Tag, error) {
		return x.Extract(ctx, langName, content, f.Path)
	})
	switch {
	case err == nil:
		rec.Tags = ts
		return rec, lns, outcomeTagged, nil
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return tags.FileRecord{}, nil, outcomeSkipped, err
	case errors.Is(err, extract.ErrUnsupported):
		rec.Opaque = true
		return rec, lns, outcomeUnsupported, nil
	case errors.Is(err, extract.ErrTooLarge):
		rec.Opaque = true
		return rec, lns, outcomeOversized, nil
	default:
		e.log.Warn("skipping unparseable file", zap.String("path", f.Path), zap.Error(err))
		return tags.FileRecord{}, nil, outcomeParseError, nil
	}
}

func opaquePaths(records []tags.FileRecord) []string {
	var out []string
	for i := range records {
		if records[i].Opaque {
			out = append(out, records[i].Path)
		}
	}
	sort.Strings(out)
	return out
}

func fingerprintsEqual(a, b map[string]tags.Fingerprint) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func splitLines(content []byte) []string {
	s := strings.TrimRight(string(content), "\n")
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}
