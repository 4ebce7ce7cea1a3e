package scanner

import (
	"context"
	"errors"
	"time"

	"dirdiff/cache"
	"dirdiff/hasher"
	"dirdiff/logger"
	"dirdiff/tracing"

	"golang.org/x/time/rate"
)

// hashFile is swapped in tests to inject read failures.
var hashFile = hasher.Hash

type worker struct {
	opts     Options
	limiter  *rate.Limiter
	progress chan<- int
}

// run drains tasks into a partial result owned by the calling goroutine. It
// stops taking work once ctx is done and then returns the context error, so a
// short partial is never mistaken for a complete one.
func (w *worker) run(ctx context.Context, tasks <-chan fileTask) (Result, error) {
	partial := make(Result)
	for task := range tasks {
		if err := ctx.Err(); err != nil {
			return partial, err
		}
		if err := w.throttle(ctx); err != nil {
			return partial, err
		}
		if fp, ok := w.fingerprint(ctx, task); ok {
			partial.add(FileRecord{Path: task.key, Fingerprint: fp})
		}
		w.opts.Stats.Processed.Add(1)
		w.progress <- 1
	}
	return partial, nil
}

// throttle blocks until the limiter grants one file open. Unlike
// rate.Limiter.Wait it never gives up early because a deadline is near; it
// only returns an error once ctx is actually done.
func (w *worker) throttle(ctx context.Context) error {
	if w.limiter == nil {
		return nil
	}
	r := w.limiter.Reserve()
	if !r.OK() {
		return nil
	}
	delay := r.Delay()
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (w *worker) fingerprint(ctx context.Context, task fileTask) (hasher.Fingerprint, bool) {
	endRegion := tracing.StartRegion(ctx, "hash_file")
	defer endRegion()

	var key cache.Key
	cached := w.opts.Cache != nil
	if cached {
		var err error
		key, err = cache.KeyFor(task.path, task.info, w.opts.Hash.Algorithm)
		if err != nil {
			logger.Debugf("No cache key for %s: %v", task.path, err)
			cached = false
		}
	}
	if cached {
		fp, ok, err := w.opts.Cache.Lookup(ctx, key)
		switch {
		case err != nil:
			logger.Warnf("Digest cache lookup failed for %s: %v", task.path, err)
		case ok:
			w.opts.Stats.CacheHits.Add(1)
			return fp, true
		}
	}

	fp, err := hashFile(task.path, w.opts.Hash)
	if err != nil {
		w.opts.Stats.Failed.Add(1)
		if errors.Is(err, hasher.ErrRead) {
			logger.Warnf("Skipping %s: %v", task.key, err)
		} else {
			logger.Errorf("Failed to hash %s: %v", task.key, err)
		}
		return hasher.Fingerprint{}, false
	}
	w.opts.Stats.Hashed.Add(1)

	if cached {
		if err := w.opts.Cache.Put(ctx, key, fp); err != nil {
			logger.Warnf("Digest cache store failed for %s: %v", task.path, err)
		}
	}
	return fp, true
}
