package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/firefly/ngram-counter/internal/config"
	"github.com/firefly/ngram-counter/internal/corpus"
	"github.com/firefly/ngram-counter/internal/fetcher"
	outputio "github.com/firefly/ngram-counter/internal/io"
	"github.com/firefly/ngram-counter/internal/parser"
	"github.com/firefly/ngram-counter/internal/wordbank"
	"github.com/firefly/ngram-counter/pkg/ngram"
)

// run loads the inputs named by cfg, counts, and writes the result to stdout
// or the configured output file
func run(ctx context.Context, cfg *config.Config, logger *log.Logger, stdout io.Writer) error {
	start := time.Now()

	patterns, err := wordbank.New(cfg.PatternsFile)
	if err != nil {
		return fmt.Errorf("loading patterns: %w", err)
	}
	logger.Debug("loaded patterns", "count", patterns.Size())

	counter := ngram.New(
		ngram.WithWorkers(cfg.Workers()),
		ngram.WithMode(cfg.Mode()),
		ngram.WithInnerParallel(!cfg.Counter.InnerSequential),
		ngram.WithPartialResults(cfg.Counter.Partial),
		ngram.WithLogger(logger),
	)

	src := buildSource(cfg, logger)

	var result outputio.Result
	if cfg.WordsFile != "" {
		words, err := wordbank.New(cfg.WordsFile)
		if err != nil {
			return fmt.Errorf("loading candidate words: %w", err)
		}
		logger.Debug("loaded candidate words", "count", words.Size())

		nested, err := counter.CountCombinatorialInSource(ctx, patterns.Words(), src, words.Words())
		failures, err := partialFailures(err, logger)
		if err != nil {
			return err
		}
		result = outputio.NewNestedResult(src.Describe(), nested, time.Since(start).Seconds())
		result.Failures = failures
	} else {
		counts, err := counter.CountInSource(ctx, patterns.Words(), src, !cfg.Counter.Sequential)
		failures, err := partialFailures(err, logger)
		if err != nil {
			return err
		}
		result = outputio.NewResult(src.Describe(), counts, cfg.Output.Top, time.Since(start).Seconds())
		result.Failures = failures
	}

	if cfg.Output.Path != "" {
		if err := outputio.OutputResultToFile(result, cfg.Output.Format, cfg.Output.Path); err != nil {
			return err
		}
		logger.Info("wrote results", "path", cfg.Output.Path, "total_matches", result.TotalMatches)
		return nil
	}
	return outputio.OutputResult(stdout, result, cfg.Output.Format)
}

// buildSource picks the corpus source named on the command line
func buildSource(cfg *config.Config, logger *log.Logger) corpus.Source {
	switch {
	case cfg.File != "":
		return corpus.File{Path: cfg.File}
	case cfg.URL != "":
		return corpus.URL{
			Address:    cfg.URL,
			Fetcher:    fetcher.New(cfg.Fetch.RateLimit, fetcher.WithLogger(logger)),
			Parser:     parser.New(cfg.Fetch.Selectors...),
			SkipRobots: cfg.Fetch.SkipRobots,
		}
	default:
		return corpus.Text(cfg.Text)
	}
}

// partialFailures turns a *ngram.PartialError into output lines; any other error is returned
func partialFailures(err error, logger *log.Logger) ([]string, error) {
	if err == nil {
		return nil, nil
	}
	var partial *ngram.PartialError
	if !errors.As(err, &partial) {
		return nil, err
	}
	failures := make([]string, len(partial.Failures))
	for i, f := range partial.Failures {
		failures[i] = f.Error()
		logger.Warn("pattern skipped", "word", f.Word, "pattern", f.Pattern, "err", f.Err)
	}
	return failures, nil
}
