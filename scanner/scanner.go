package scanner

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"dirdiff/cache"
	"dirdiff/hasher"
	"dirdiff/logger"
	"dirdiff/tracing"
	"dirdiff/utils"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DigestCache short-circuits hashing for files whose stat metadata is
// unchanged. *cache.Store implements it.
type DigestCache interface {
	Lookup(ctx context.Context, key cache.Key) (hasher.Fingerprint, bool, error)
	Put(ctx context.Context, key cache.Key, fp hasher.Fingerprint) error
}

// ProgressReporter receives the number of files finished since the previous
// call. *progressbar.ProgressBar implements it.
type ProgressReporter interface {
	Add(n int) error
}

type Options struct {
	Concurrency     int
	Hash            hasher.Options
	IncludePatterns []string
	ExcludePatterns []string
	MaxIOPerSecond  int
	Sequential      bool
	Cache           DigestCache
	Progress        ProgressReporter
	Stats           *Stats
}

// Stats counts scan work. Counters may be read while a scan runs.
type Stats struct {
	Enumerated  atomic.Int64
	Hashed      atomic.Int64
	CacheHits   atomic.Int64
	Failed      atomic.Int64
	Skipped     atomic.Int64
	SkippedDirs atomic.Int64
	Processed   atomic.Int64
}

func (o Options) withDefaults() Options {
	if o.Concurrency < 1 {
		o.Concurrency = runtime.NumCPU()
	}
	if o.Hash.Algorithm == "" {
		o.Hash.Algorithm = hasher.DefaultAlgorithm
	}
	if o.Stats == nil {
		o.Stats = &Stats{}
	}
	return o
}

// Scan hashes every regular file under root and returns the fingerprints
// keyed by relative path. Files that fail to read are logged and left out.
// A cancelled scan returns the context error and no result.
func Scan(ctx context.Context, root string, opts Options) (Result, error) {
	opts = opts.withDefaults()
	if err := checkRoot(root); err != nil {
		return nil, err
	}

	ctx, endTask := tracing.StartTask(ctx, "scan_tree")
	defer endTask()
	tracing.Log(ctx, "root", root)

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var limiter *rate.Limiter
	if opts.MaxIOPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.MaxIOPerSecond), opts.MaxIOPerSecond)
	}

	progressCh := make(chan int, maxInt(opts.Concurrency*4, 64))
	var progressWG sync.WaitGroup
	progressWG.Add(1)
	go func() {
		defer progressWG.Done()
		for delta := range progressCh {
			if opts.Progress != nil {
				_ = opts.Progress.Add(delta)
			}
		}
	}()

	walker := treeWalker{
		root:    root,
		matcher: utils.NewPatternMatcher(opts.IncludePatterns, opts.ExcludePatterns),
		stats:   opts.Stats,
	}
	tasks := make(chan fileTask, opts.Concurrency)
	walkDone := make(chan struct{})
	var walkErr error
	go func() {
		defer close(walkDone)
		defer close(tasks)
		walkErr = walker.walk(ctx, func(task fileTask) error {
			opts.Stats.Enumerated.Add(1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case tasks <- task:
				return nil
			}
		})
		if walkErr != nil {
			cancel()
		}
	}()

	w := &worker{opts: opts, limiter: limiter, progress: progressCh}
	partials := make(chan Result, opts.Concurrency)
	workerErrs := make(chan error, opts.Concurrency)
	var wg sync.WaitGroup
	for range opts.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			partial, err := w.run(ctx, tasks)
			partials <- partial
			workerErrs <- err
		}()
	}

	wg.Wait()
	<-walkDone
	close(partials)
	close(workerErrs)
	close(progressCh)
	progressWG.Wait()

	if err := parent.Err(); err != nil {
		return nil, err
	}
	if walkErr != nil {
		return nil, walkErr
	}
	for err := range workerErrs {
		if err != nil {
			return nil, fmt.Errorf("%s: worker stopped early: %w", root, err)
		}
	}

	result := make(Result, opts.Stats.Enumerated.Load())
	for partial := range partials {
		for key, fp := range partial {
			result[key] = fp
		}
	}
	logger.Debugf("Scanned %s: %d files hashed", root, len(result))
	return result, nil
}

// ScanPair scans both roots, concurrently unless opts.Sequential is set. Both
// roots are checked before hashing starts and the first failure cancels the
// other scan.
func ScanPair(ctx context.Context, from, to string, opts Options) (Result, Result, error) {
	if err := checkRoot(from); err != nil {
		return nil, nil, fmt.Errorf("FROM %w", err)
	}
	if err := checkRoot(to); err != nil {
		return nil, nil, fmt.Errorf("TO %w", err)
	}
	if utils.RootsOverlap(from, to) {
		logger.Warnf("Roots overlap: %s and %s", from, to)
	}

	if opts.Sequential {
		a, err := Scan(ctx, from, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("FROM %w", err)
		}
		b, err := Scan(ctx, to, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("TO %w", err)
		}
		return a, b, nil
	}

	var a, b Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := Scan(gctx, from, opts)
		if err != nil {
			return fmt.Errorf("FROM %w", err)
		}
		a = r
		return nil
	})
	g.Go(func() error {
		r, err := Scan(gctx, to, opts)
		if err != nil {
			return fmt.Errorf("TO %w", err)
		}
		b = r
		return nil
	})
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, nil, err
	}
	return a, b, nil
}
