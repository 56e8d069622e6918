// Package ngram counts word-boundary delimited patterns in a corpus.
//
// Patterns are matched case-insensitively and anchored with \b on both
// sides. Matches never overlap: after a match the scan resumes at its end.
// Patterns are regular expression syntax unless the counter is built with
// WithMode(matcher.Literal).
//
// Templates may hold a {word} placeholder. CountCombinatorial fills it with
// every candidate word and returns one result map per word:
//
//	c := ngram.New(ngram.WithWorkers(8))
//	nested, err := c.CountCombinatorial(
//		[]string{"the {word} is big"}, "corpus.txt", []string{"dog", "cat"})
//
// Text read from a file or URL has runs of spaces collapsed before counting;
// text passed to CountInText is counted exactly as given.
package ngram

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/firefly/ngram-counter/internal/aggregator"
	"github.com/firefly/ngram-counter/internal/corpus"
	"github.com/firefly/ngram-counter/internal/expander"
	"github.com/firefly/ngram-counter/internal/logger"
	"github.com/firefly/ngram-counter/internal/matcher"
	"github.com/firefly/ngram-counter/internal/pool"
)

// ResultMap maps each concrete pattern to its match count
type ResultMap = aggregator.ResultMap

// NestedResultMap maps each candidate word to the counts of its expanded templates
type NestedResultMap = aggregator.NestedResultMap

// Counter dispatches compile and count work over a fixed-size worker pool.
// It holds configuration only and is safe for concurrent use.
type Counter struct {
	workers       int
	mode          matcher.Mode
	innerParallel bool
	partial       bool
	log           *log.Logger
}

// Option configures a Counter
type Option func(*Counter)

// WithWorkers sets the worker-pool size. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(c *Counter) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithMode chooses how pattern text is embedded in the matcher
func WithMode(mode matcher.Mode) Option {
	return func(c *Counter) {
		c.mode = mode
	}
}

// WithInnerParallel controls whether the templates of one candidate word are
// counted on the pool or one after another
func WithInnerParallel(parallel bool) Option {
	return func(c *Counter) {
		c.innerParallel = parallel
	}
}

// WithPartialResults keeps counting past patterns that fail. The call then
// returns the counts that succeeded together with a *PartialError.
func WithPartialResults(partial bool) Option {
	return func(c *Counter) {
		c.partial = partial
	}
}

// WithLogger sets the logger for dispatch diagnostics
func WithLogger(l *log.Logger) Option {
	return func(c *Counter) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a Counter. Without options it uses one worker per CPU, syntax
// mode, a parallel inner pass and all-or-nothing failures.
func New(opts ...Option) *Counter {
	c := &Counter{
		workers:       runtime.NumCPU(),
		mode:          matcher.Syntax,
		innerParallel: true,
		log:           logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Workers returns the worker-pool size
func (c *Counter) Workers() int {
	return c.workers
}

// CountInText counts each pattern in text, one pattern at a time in input order
func (c *Counter) CountInText(patterns []string, text string) (ResultMap, error) {
	return c.count(patterns, text, false)
}

// CountInTextParallel counts each pattern in text on the worker pool
func (c *Counter) CountInTextParallel(patterns []string, text string) (ResultMap, error) {
	return c.count(patterns, text, true)
}

// CountInFile loads and normalizes path, then counts like CountInText
func (c *Counter) CountInFile(patterns []string, path string) (ResultMap, error) {
	return c.CountInSource(context.Background(), patterns, corpus.File{Path: path}, false)
}

// CountInFileParallel loads and normalizes path, then counts like CountInTextParallel
func (c *Counter) CountInFileParallel(patterns []string, path string) (ResultMap, error) {
	return c.CountInSource(context.Background(), patterns, corpus.File{Path: path}, true)
}

// CountInSource loads src once and counts every pattern in it
func (c *Counter) CountInSource(ctx context.Context, patterns []string, src corpus.Source, parallel bool) (ResultMap, error) {
	corp, err := c.load(ctx, src)
	if err != nil {
		return nil, err
	}
	return c.count(patterns, corp.Text(), parallel)
}

// CountCombinatorial loads and normalizes path once, expands every template
// for each candidate word and counts the results on the pool
func (c *Counter) CountCombinatorial(templates []string, path string, words []string) (NestedResultMap, error) {
	return c.CountCombinatorialInSource(context.Background(), templates, corpus.File{Path: path}, words)
}

// CountCombinatorialInSource is CountCombinatorial over any corpus source
func (c *Counter) CountCombinatorialInSource(ctx context.Context, templates []string, src corpus.Source, words []string) (NestedResultMap, error) {
	corp, err := c.load(ctx, src)
	if err != nil {
		return nil, err
	}
	return c.combinatorial(ctx, templates, corp.Text(), words)
}

// CountCombinatorialInText is CountCombinatorial over text supplied directly,
// which is not normalized
func (c *Counter) CountCombinatorialInText(templates []string, text string, words []string) (NestedResultMap, error) {
	return c.combinatorial(context.Background(), templates, text, words)
}

func (c *Counter) load(ctx context.Context, src corpus.Source) (corpus.Corpus, error) {
	start := time.Now()
	corp, err := src.Load(ctx)
	if err != nil {
		return corpus.Corpus{}, fmt.Errorf("loading corpus: %w", err)
	}
	c.log.Debug("corpus loaded", "source", corp.Source(), "bytes", corp.Len(), "took", time.Since(start))
	return corp, nil
}

// count compiles and counts every pattern against text
func (c *Counter) count(patterns []string, text string, parallel bool) (ResultMap, error) {
	start := time.Now()

	if c.partial {
		result, failures := c.countCollect(patterns, text, parallel, "")
		c.log.Debug("counted patterns", "patterns", len(patterns), "failed", len(failures),
			"parallel", parallel, "took", time.Since(start))
		if len(failures) > 0 {
			return result, newPartialError(failures)
		}
		return result, nil
	}

	unit := c.unit(text)
	var (
		counts []int
		err    error
	)
	if parallel {
		counts, err = pool.Map(c.workers, patterns, unit)
	} else {
		counts, err = pool.Sequential(patterns, unit)
	}
	if err != nil {
		return nil, err
	}

	// merged in input order, so a repeated pattern keeps its last count
	agg := aggregator.New()
	agg.AddAll(patterns, counts)
	distinct, matches := agg.GetStats()
	c.log.Debug("counted patterns", "patterns", len(patterns), "distinct", distinct, "matches", matches,
		"parallel", parallel, "workers", c.workers, "took", time.Since(start))
	return agg.Result(), nil
}

// countCollect counts every pattern, keeping going past failures
func (c *Counter) countCollect(patterns []string, text string, parallel bool, word string) (ResultMap, []Failure) {
	workers := 1
	if parallel {
		workers = c.workers
	}

	// workers is always positive here
	counts, errs, _ := pool.Collect(workers, patterns, c.unit(text))

	agg := aggregator.New()
	var failures []Failure
	for i, pattern := range patterns {
		if errs[i] != nil {
			failures = append(failures, Failure{Word: word, Pattern: pattern, Err: errs[i]})
			continue
		}
		agg.Add(pattern, counts[i])
	}
	return agg.Result(), failures
}

func (c *Counter) unit(text string) pool.Func[string, int] {
	return func(pattern string) (int, error) {
		return matcher.CountPattern(pattern, text, c.mode)
	}
}

// combinatorial fans out over words; each branch expands all templates and
// counts them against the shared text. Words are started in input order and a
// started branch always runs to completion, so when several words fail the
// error returned is always that of the lowest index.
func (c *Counter) combinatorial(ctx context.Context, templates []string, text string, words []string) (NestedResultMap, error) {
	start := time.Now()
	c.warnWithoutMarker(templates)

	results := make([]ResultMap, len(words))
	failures := make([][]Failure, len(words))
	errs := make([]error, len(words))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, word := range words {
		// stop handing out words once one has failed or ctx is done
		if gctx.Err() != nil {
			break
		}
		i, word := i, word
		g.Go(func() error {
			if c.partial {
				results[i], failures[i] = c.expandCollect(templates, text, word)
				return nil
			}

			concrete, err := expander.ExpandAll(templates, word)
			if err != nil {
				errs[i] = err
				return err
			}
			result, err := c.count(concrete, text, c.innerParallel)
			if err != nil {
				errs[i] = fmt.Errorf("candidate word %q: %w", word, err)
				return errs[i]
			}
			results[i] = result
			return nil
		})
	}

	waitErr := g.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	if waitErr != nil {
		return nil, waitErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nested := aggregator.Nest(words, results)
	c.log.Debug("counted combinations", "words", len(words), "templates", len(templates),
		"workers", c.workers, "took", time.Since(start))

	var all []Failure
	for _, f := range failures {
		all = append(all, f...)
	}
	if len(all) > 0 {
		return nested, newPartialError(all)
	}
	return nested, nil
}

// warnWithoutMarker flags template lists where no entry takes the candidate word
func (c *Counter) warnWithoutMarker(templates []string) {
	for _, tmpl := range templates {
		if expander.HasMarker(tmpl) {
			return
		}
	}
	if len(templates) > 0 {
		c.log.Warn("no template contains the placeholder; every candidate word gets the same counts",
			"placeholder", expander.Marker, "templates", len(templates))
	}
}

// expandCollect expands and counts templates for word, keeping going past failures
func (c *Counter) expandCollect(templates []string, text, word string) (ResultMap, []Failure) {
	var failures []Failure
	concrete := make([]string, 0, len(templates))
	for _, tmpl := range templates {
		pattern, err := expander.Expand(tmpl, word)
		if err != nil {
			failures = append(failures, Failure{Word: word, Pattern: tmpl, Err: err})
			continue
		}
		concrete = append(concrete, pattern)
	}

	result, countFailures := c.countCollect(concrete, text, c.innerParallel, word)
	return result, append(failures, countFailures...)
}
