// Command dramamerge merges a directory of short video segments into
// episode files with ffmpeg stream copy.
//
// Configuration comes from defaults, then the YAML config file, then flags
// the user actually passed. Every subcommand shares one logger and, when a
// TMDB key is configured, one cached catalog client.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/backmassage/dramamerge/internal/catalog"
	"github.com/backmassage/dramamerge/internal/config"
	"github.com/backmassage/dramamerge/internal/logging"
	"github.com/backmassage/dramamerge/internal/metrics"
	"github.com/backmassage/dramamerge/internal/pipeline"
	"github.com/backmassage/dramamerge/internal/store"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "1.0.0"
	commit  = "unknown"
)

// errFailures makes the process exit 1 after a run whose errors were
// already reported.
var errFailures = errors.New("some merges failed")

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{}
	defer a.close()
	err := a.rootCommand().ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errFailures):
	case a.log != nil:
		a.log.Error().Err(err).Msg("dramamerge failed")
	default:
		fmt.Fprintf(os.Stderr, "dramamerge: %v\n", err)
	}
	return 1
}

// app is the state shared by subcommands after bootstrap.
type app struct {
	flags config.Flags
	cfg   config.Config
	log   *logging.Logger
	cache *store.Cache
	cat   *catalog.Client
	rec   *metrics.Recorder
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "dramamerge",
		Short:         "Merge short video segments into episodes by stream copy",
		Version:       version + " (" + commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.bootstrap(cmd)
		},
	}
	config.BindFlags(root.PersistentFlags(), &a.flags)

	root.AddCommand(
		a.mergeCommand(),
		a.batchCommand(),
		a.listCommand(),
		a.previewCommand(),
		a.lookupCommand(),
		a.checkCommand(),
		a.serveCommand(),
		a.versionCommand(),
	)
	return root
}

// bootstrap loads the config, applies flags and opens the logger. Until
// the logger exists, errors are returned to run() which prints them.
func (a *app) bootstrap(cmd *cobra.Command) error {
	a.cfg = config.DefaultConfig()
	path, required := config.DefaultConfigFile, false
	if a.flags.ConfigFile != "" {
		path, required = a.flags.ConfigFile, true
	}
	if err := config.Load(path, &a.cfg, required); err != nil {
		return err
	}
	a.flags.Apply(cmd.Root().PersistentFlags(), &a.cfg)
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.NewLogger(&a.cfg)
	if err != nil {
		return fmt.Errorf("open logger: %w", err)
	}
	a.log = log
	a.rec = metrics.NewRecorder()
	if a.cfg.ConfigFile != "" {
		a.log.Debug().Str(logging.FieldPath, a.cfg.ConfigFile).Msg("config loaded")
	}
	return nil
}

// catalogClient returns the TMDB client, or nil when no API key is configured.
// A cache that cannot be opened is logged and skipped.
func (a *app) catalogClient() *catalog.Client {
	if a.cat != nil || a.cfg.Defaults.TMDBAPIKey == "" {
		return a.cat
	}
	opts := catalog.Options{
		APIKey:            a.cfg.Defaults.TMDBAPIKey,
		BaseURL:           a.cfg.TMDB.BaseURL,
		ImageBaseURL:      a.cfg.TMDB.ImageBaseURL,
		Language:          a.cfg.TMDB.Language,
		ProxyURL:          a.cfg.Defaults.TMDBProxyURL,
		RequestsPerSecond: a.cfg.TMDB.RequestsPerSecond,
		Logger:            a.log.WithComponent("catalog"),
	}
	if path := a.cfg.TMDB.CacheFile; path != "" {
		c, err := store.Open(path, a.cfg.CacheTTL())
		if err != nil {
			a.log.Warn().Err(err).Str(logging.FieldPath, path).Msg("catalog cache unavailable")
		} else {
			a.cache = c
			opts.Cache = c
		}
	}
	cat, err := catalog.New(opts)
	if err != nil {
		a.log.Warn().Err(err).Msg("catalog disabled")
		return nil
	}
	a.cat = cat
	return cat
}

// deps returns the runner collaborators for this process.
func (a *app) deps() pipeline.Deps {
	d := pipeline.Deps{Recorder: a.rec}
	if cat := a.catalogClient(); cat != nil {
		d.Finder = cat
	}
	return d
}

func (a *app) close() {
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.log != nil {
		_ = a.log.Close()
	}
}
