package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/repovec/internal/config"
	"github.com/fyrsmithlabs/repovec/internal/pipeline"
	"github.com/fyrsmithlabs/repovec/internal/progress"
)

type ingestFlags struct {
	mode     string
	url      string
	dest     string
	summary  string
	skipLoad bool
}

var ingestOpts ingestFlags

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Acquire, filter, count and load a repository",
	Long: `Run the full ingestion pipeline.

Examples:
  # Zip archive from ZIP_URL in .env
  repovec ingest

  # Shallow clone, stop after writing the summary
  repovec ingest --mode git --url https://github.com/org/repo.git --skip-load

  # Explicit config file
  repovec ingest --config repovec.yaml`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	f := ingestCmd.Flags()
	f.StringVar(&ingestOpts.mode, "mode", "", "source mode: zip, git or github")
	f.StringVar(&ingestOpts.url, "url", "", "zip URL or git remote")
	f.StringVar(&ingestOpts.dest, "dest", "", "directory receiving the repository")
	f.StringVar(&ingestOpts.summary, "summary", "", "corpus summary CSV path")
	f.BoolVar(&ingestOpts.skipLoad, "skip-load", false, "stop after writing the summary")
}

// apply copies flags that were set onto cfg.
func (o ingestFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Source.Mode = o.mode
	}
	if flags.Changed("url") {
		cfg.Source.URL = o.url
	}
	if flags.Changed("dest") {
		cfg.Source.Dest = o.dest
	}
	if flags.Changed("summary") {
		cfg.Summary.Path = o.summary
	}
}

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	ingestOpts.apply(cmd, a.cfg)
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	if !ingestOpts.skipLoad {
		if err := a.cfg.ValidateLoad(); err != nil {
			return err
		}
	}

	p, err := pipeline.New(a.cfg, pipeline.Deps{
		Progress: progress.New(os.Stderr, a.log),
		Logger:   a.log,
	})
	if err != nil {
		return err
	}

	res, err := p.Run(ctx, pipeline.Options{SkipLoad: ingestOpts.skipLoad})
	if err != nil {
		return err
	}
	printResult(cmd, res)
	return nil
}

func printResult(cmd *cobra.Command, res *pipeline.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s\n", res.RunID)
	if res.Tree != nil && res.Tree.Revision != "" {
		fmt.Fprintf(out, "revision: %s\n", res.Tree.Revision)
	}
	fmt.Fprintf(out, "files: %d, indexed: %d, tokens: %d\n", res.Files, len(res.Entries), res.Tokens)

	outcomes := make([]string, 0, len(res.Skipped))
	for o := range res.Skipped {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		fmt.Fprintf(out, "  skipped %s: %d\n", o, res.Skipped[o])
	}

	fmt.Fprintf(out, "summary: %s\n", res.SummaryPath)
	if res.Loaded {
		fmt.Fprintf(out, "chunks loaded: %d\n", res.Chunks)
	}
}
