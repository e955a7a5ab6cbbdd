package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/repovec/internal/config"
	"github.com/fyrsmithlabs/repovec/internal/tokenizer"
)

var countEncoding string

var countCmd = &cobra.Command{
	Use:   "count <file>...",
	Short: "Print token counts of files",
	Long: `Print the token count of each file and the total. The encoding is
chunk.encoding from the configuration, as used for ingestion, unless
--encoding is given.

Examples:
  repovec count README.md main.go
  repovec count --encoding gpt-4 notes.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCount,
}

func init() {
	countCmd.Flags().StringVar(&countEncoding, "encoding", tokenizer.DefaultEncoding, "encoding or model name, overriding chunk.encoding")
}

func runCount(cmd *cobra.Command, args []string) error {
	encoding, err := countEncodingFor(cmd, config.Options{ConfigFile: configFile, EnvFile: envFile})
	if err != nil {
		return err
	}
	counter, err := tokenizer.ForEncoding(encoding)
	if err != nil {
		return err
	}
	return countFiles(cmd, counter, args)
}

// countEncodingFor returns --encoding when set, otherwise the configured
// chunk encoding.
func countEncodingFor(cmd *cobra.Command, opts config.Options) (string, error) {
	if cmd.Flags().Changed("encoding") {
		return countEncoding, nil
	}
	cfg, err := config.Load(opts)
	if err != nil {
		return "", err
	}
	return cfg.Chunk.Encoding, nil
}

func countFiles(cmd *cobra.Command, counter interface{ Count(string) int }, paths []string) error {
	out := cmd.OutOrStdout()
	total := 0
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", p, err)
		}
		n := counter.Count(string(content))
		total += n
		fmt.Fprintf(out, "%d\t%s\n", n, p)
	}
	if len(paths) > 1 {
		fmt.Fprintf(out, "%d\ttotal\n", total)
	}
	return nil
}
