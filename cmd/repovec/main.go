// Package main implements the repovec CLI, which ingests a repository into
// a vector index.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/repovec/internal/config"
	"github.com/fyrsmithlabs/repovec/internal/logging"
	"github.com/fyrsmithlabs/repovec/internal/telemetry"
)

var (
	// version information, set at build time
	version = "dev"

	configFile string
	envFile    string
	logLevel   string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "repovec",
	Short: "Ingest a source repository into a vector index",
	Long: `repovec fetches a repository (zip archive, git clone or GitHub zipball),
drops unwanted and secret-bearing files, counts tokens, writes a corpus
summary and loads the chunked text into a vector index.

Configuration comes from an optional YAML file, a .env file and
REPOVEC_<SECTION>_<FIELD> environment variables. The flat names of older
setups (ZIP_URL, OPENAI_API_KEY, PINECONE_INDEX, ...) are honoured.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file (missing file is ignored)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (trace, debug, info, warn, error)")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "repovec %s\n", version)
	},
}

// app holds the process wide components shared by commands.
type app struct {
	cfg *config.Config
	log *logging.Logger
	tel *telemetry.Telemetry
}

// setup loads configuration and starts logging and tracing.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load(config.Options{ConfigFile: configFile, EnvFile: envFile})
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	tel, err := telemetry.New(ctx, cfg.Telemetry, telemetry.WithVersion(version))
	if err != nil {
		return nil, err
	}

	lp := global.GetLoggerProvider()
	if !tel.Enabled() {
		lp = nil
	}
	log, err := logging.NewLogger(logging.FromSettings(cfg.Logging.Level, cfg.Logging.Format), lp)
	if err != nil {
		tel.Shutdown(ctx)
		return nil, err
	}
	if reason, ok := tel.Degraded(); ok {
		log.Warn(ctx, "tracing disabled", zap.String("reason", reason))
	}

	return &app{cfg: cfg, log: log, tel: tel}, nil
}

// close flushes spans and logs. It runs on a fresh context so a canceled
// run still exports its spans.
func (a *app) close() {
	if err := a.tel.Shutdown(context.Background()); err != nil {
		a.log.Warn(context.Background(), "telemetry shutdown failed", zap.Error(err))
	}
	_ = a.log.Sync()
}
