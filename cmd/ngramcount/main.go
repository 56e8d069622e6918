package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/firefly/ngram-counter/internal/config"
	"github.com/firefly/ngram-counter/internal/logger"
)

func main() {
	log := logger.New("ngramcount", false)

	cfg, err := config.ParseFlags()
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatal("configuration error", "err", err)
	}

	if cfg.WriteConfig != "" {
		if err := config.SaveConfig(cfg, cfg.WriteConfig); err != nil {
			log.Fatal("writing config", "err", err)
		}
		log.Info("wrote default config", "path", cfg.WriteConfig)
		return
	}

	if err := cfg.ValidateFiles(); err != nil {
		log.Fatal("file validation error", "err", err)
	}

	log = logger.New("ngramcount", cfg.Log.Verbose)
	log.Debug("starting",
		"patterns_file", cfg.PatternsFile,
		"words_file", cfg.WordsFile,
		"workers", cfg.Workers(),
		"mode", cfg.Mode(),
		"sequential", cfg.Counter.Sequential,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Warn("received interrupt signal, shutting down")
		cancel()
	}()

	if err := run(ctx, cfg, log, os.Stdout); err != nil {
		log.Fatal("counting failed", "err", err)
	}
}
