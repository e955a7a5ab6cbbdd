package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/repovec/internal/metrics"
	"github.com/fyrsmithlabs/repovec/internal/pipeline"
	"github.com/fyrsmithlabs/repovec/internal/secrets"
)

var checkCmd = &cobra.Command{
	Use:   "check <dir>",
	Short: "Show which files of a local tree would be ingested",
	Long: `Run the filter and the secret scanner over a local directory and print
the decision for every file. Nothing is deleted, written or loaded.

Examples:
  repovec check .
  repovec check --config repovec.yaml data/repo`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	a.cfg.Secrets.Action = string(secrets.ActionReport)
	p, err := pipeline.New(a.cfg, pipeline.Deps{Logger: a.log})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	res, err := p.Check(ctx, args[0], func(fr pipeline.FileResult) {
		writeFileResult(out, fr)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d files, %d eligible, %d with secrets, %d tokens\n",
		res.Files, len(res.Entries), len(res.Secrets), res.Tokens)
	return nil
}

func writeFileResult(w io.Writer, fr pipeline.FileResult) {
	switch fr.Outcome {
	case metrics.OutcomeIndexed:
		fmt.Fprintf(w, "ok\t%s\t%d tokens\n", fr.Path, fr.Tokens)
	case metrics.OutcomeSecret:
		locs := make([]string, len(fr.Findings))
		for i, f := range fr.Findings {
			locs[i] = fmt.Sprintf("%s:%d", f.RuleID, f.Line)
		}
		fmt.Fprintf(w, "secret\t%s\t%s\n", fr.Path, strings.Join(locs, ", "))
	default:
		detail := fr.Outcome
		if fr.Match != "" {
			detail += " (" + fr.Match + ")"
		}
		fmt.Fprintf(w, "skip\t%s\t%s\n", fr.Path, detail)
	}
}
