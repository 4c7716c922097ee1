package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/backmassage/dramamerge/internal/catalog"
	"github.com/backmassage/dramamerge/internal/check"
	"github.com/backmassage/dramamerge/internal/config"
	"github.com/backmassage/dramamerge/internal/display"
	"github.com/backmassage/dramamerge/internal/pipeline"
	"github.com/backmassage/dramamerge/internal/server"
)

// mergeRequest binds the merge flags onto cmd and returns a builder that
// turns positional arguments into a request after flags are parsed.
func (a *app) mergeRequest(cmd *cobra.Command) func(args []string) pipeline.Request {
	var mf config.MergeFlags
	config.BindMergeFlags(cmd.Flags(), &mf)
	return func(args []string) pipeline.Request {
		mf.Apply(cmd.Flags(), &a.cfg)
		req := pipeline.Request{ShowName: mf.Show}
		if len(args) > 0 {
			req.SourceDir = args[0]
		}
		if len(args) > 1 {
			req.OutputDir = args[1]
		}
		return req
	}
}

func (a *app) mergeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge SOURCE [OUTPUT]",
		Short: "Merge the videos of one directory into episodes",
		Long: "Merge every video directly inside SOURCE, in file name order, into\n" +
			"{show}_S{season}E{episode}.mp4 files in OUTPUT. A new episode starts\n" +
			"whenever the next file would exceed --max-duration or --max-size.",
		Args: cobra.RangeArgs(1, 2),
	}
	build := a.mergeRequest(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := check.CheckDeps(ctx, &a.cfg); err != nil {
			return err
		}
		display.PrintBanner(os.Stdout)

		started := time.Now()
		r := pipeline.NewRunner(&a.cfg, a.log.Logger, a.deps())
		o, err := r.Run(ctx, build(args))
		if err != nil {
			return err
		}
		display.RenderResults(os.Stdout, o)

		var st pipeline.RunStats
		st.Add(o)
		display.RenderStats(os.Stdout, st)
		_ = r.Record("merge", started, []*pipeline.JobOutcome{o})
		if !st.OK() {
			return errFailures
		}
		return nil
	}
	return cmd
}

func (a *app) batchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch PARENT_SOURCE PARENT_OUTPUT",
		Short: "Merge every subdirectory of PARENT_SOURCE, one show per directory",
		Long: "Each immediate subdirectory of PARENT_SOURCE is merged into\n" +
			"PARENT_OUTPUT/<show>/ with its show name derived from the directory\n" +
			"name. --show is ignored.",
		Args: cobra.ExactArgs(2),
	}
	build := a.mergeRequest(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := check.CheckDeps(ctx, &a.cfg); err != nil {
			return err
		}
		display.PrintBanner(os.Stdout)

		started := time.Now()
		r := pipeline.NewRunner(&a.cfg, a.log.Logger, a.deps())
		outcomes, err := r.RunBatch(ctx, args[0], args[1], build(nil))
		if err != nil {
			return err
		}

		var st pipeline.RunStats
		for _, o := range outcomes {
			display.RenderResults(os.Stdout, o)
			st.Add(o)
		}
		display.RenderStats(os.Stdout, st)
		_ = r.Record("batch", started, outcomes)
		if !st.OK() {
			return errFailures
		}
		return nil
	}
	return cmd
}

func (a *app) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list SOURCE",
		Short: "List the videos a merge would use, with size and duration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := pipeline.NewRunner(&a.cfg, a.log.Logger, pipeline.Deps{})
			l, err := r.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			display.RenderListing(os.Stdout, l)
			return nil
		},
	}
}

func (a *app) previewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview SOURCE [OUTPUT]",
		Short: "Show the resolved show name and first output file name",
		Args:  cobra.RangeArgs(1, 2),
	}
	build := a.mergeRequest(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		r := pipeline.NewRunner(&a.cfg, a.log.Logger, a.deps())
		p, err := r.Preview(cmd.Context(), build(args))
		if err != nil {
			return err
		}
		display.RenderPreview(os.Stdout, p)
		return nil
	}
	return cmd
}

func (a *app) lookupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup NAME",
		Short: "Look a show up in TMDB and print its seasons and cast",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := a.catalogClient()
			if cat == nil {
				return catalog.ErrNoAPIKey
			}
			ctx := cmd.Context()
			show, err := cat.SearchTV(ctx, args[0])
			if err != nil {
				return err
			}
			if show == nil {
				return fmt.Errorf("no TMDB match for %q", args[0])
			}
			sum, err := catalog.Summarize(ctx, cat, show, a.log.WithComponent("catalog"))
			if err != nil {
				return err
			}
			display.RenderShow(os.Stdout, sum)
			return nil
		},
	}
}

func (a *app) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that ffmpeg and ffprobe can perform stream-copy merges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := check.RunCheck(cmd.Context(), &a.cfg, a.log.WithComponent("check")); err != nil {
				return errors.Join(errFailures, err)
			}
			return nil
		},
	}
}

func (a *app) serveCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			if err := check.CheckDeps(cmd.Context(), &a.cfg); err != nil {
				a.log.Warn().Err(err).Msg("merges will fail until this is fixed")
			}
			var cat server.Catalog
			if c := a.catalogClient(); c != nil {
				cat = c
			}
			s := server.New(&a.cfg, a.log.Logger, pipeline.Deps{Recorder: a.rec}, cat)
			return s.Serve(cmd.Context(), a.cfg.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8090)")
	return cmd
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dramamerge %s (%s)\n", version, commit)
		},
	}
}
