package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pevans/historybrief/config"
	"github.com/pevans/historybrief/discovery"
	"github.com/pevans/historybrief/fetch"
	"github.com/pevans/historybrief/logger"
	"github.com/pevans/historybrief/pipeline"
	"github.com/pevans/historybrief/seen"
	"github.com/pevans/historybrief/sink"
	"github.com/pevans/historybrief/sources"
)

// app is the loaded configuration shared by every command.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	sources []sources.Source
}

// loadApp reads the configuration and the sources. It never touches the
// network.
func loadApp(opts *options) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.sourcesPath != "" {
		cfg.Sources = opts.sourcesPath
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	if err != nil {
		return nil, err
	}

	list, err := sources.Load(cfg.Sources)
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}

	return &app{cfg: cfg, log: log, sources: list}, nil
}

func (a *app) fetchClient() *fetch.Client {
	return fetch.NewClient(
		fetch.WithUserAgent(a.cfg.Fetch.UserAgent),
		fetch.WithTimeout(a.cfg.Fetch.Timeout),
	)
}

func (a *app) sourceNames() []string {
	names := make([]string, 0, len(a.sources))
	for _, src := range a.sources {
		names = append(names, src.Name)
	}
	return names
}

// openStore opens the configured seen store.
func (a *app) openStore() (seen.Store, error) {
	store, err := seen.Open(seen.Backend(a.cfg.Seen.Backend), a.cfg.Seen.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open seen store: %w", err)
	}
	return store, nil
}

// snapshotStore copies the configured seen state into a memory store, so a
// dry run filters like a real run without persisting anything.
func (a *app) snapshotStore(ctx context.Context) (seen.Store, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer store.Close()

	set, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load seen state: %w", err)
	}
	return seen.NewMemoryStore(set.Sorted()...), nil
}

func (a *app) newSink() (sink.Sink, error) {
	switch a.cfg.Sink {
	case config.SinkArchive:
		archive, err := sink.NewArchive(a.cfg.ArchiveDir)
		if err != nil {
			return nil, err
		}
		return sink.NewArchiveSink(archive, a.log), nil
	default:
		return sink.NewNotionSink(sink.NotionConfig{
			Token:        a.cfg.Notion.Token,
			ParentPageID: a.cfg.Notion.ParentPageID,
			DatabaseName: a.cfg.Notion.DatabaseName,
			BaseURL:      a.cfg.Notion.BaseURL,
			SourceNames:  a.sourceNames(),
		}, a.log)
	}
}

// runOptions selects how a run is wired.
type runOptions struct {
	dryRun   bool
	parallel bool
	out      io.Writer
}

// newRunner wires the adapters, the seen filter and the sink. The caller
// closes the returned store.
func (a *app) newRunner(ctx context.Context, opts runOptions) (*pipeline.Runner, seen.Store, error) {
	adapters, err := discovery.BuildAll(a.sources, a.fetchClient(), a.log)
	if err != nil {
		return nil, nil, err
	}

	var (
		store seen.Store
		dest  sink.Sink
	)
	if opts.dryRun {
		if store, err = a.snapshotStore(ctx); err != nil {
			return nil, nil, err
		}
		dest = sink.NewWriterSink(opts.out)
	} else {
		if dest, err = a.newSink(); err != nil {
			return nil, nil, err
		}
		if store, err = a.openStore(); err != nil {
			return nil, nil, err
		}
	}

	collector := pipeline.NewCollector(adapters, opts.parallel || a.cfg.Fetch.Parallel, a.log)
	return pipeline.NewRunner(collector, seen.NewFilter(store, a.log), dest, a.log), store, nil
}

// runOnce performs one run and prints its summary.
func (a *app) runOnce(ctx context.Context, opts runOptions) (pipeline.Summary, error) {
	runner, store, err := a.newRunner(ctx, opts)
	if err != nil {
		return pipeline.Summary{}, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			a.log.Warn("Failed to close seen store", logger.Error(err))
		}
	}()

	summary, err := runner.Run(ctx)
	if err != nil {
		return summary, err
	}
	printSummary(opts.out, summary)
	return summary, nil
}
