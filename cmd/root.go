package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/fmuoria/resume-matcher/internal/agent"
	"github.com/fmuoria/resume-matcher/internal/config"
	"github.com/fmuoria/resume-matcher/internal/export"
	"github.com/fmuoria/resume-matcher/internal/history"
	"github.com/fmuoria/resume-matcher/internal/ingestion"
	"github.com/fmuoria/resume-matcher/internal/logger"
	"github.com/fmuoria/resume-matcher/internal/scoring"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	app = "resume-matcher"
)

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:           app,
		Short:         "resume-matcher scores resumes against a job description, one at a time or in zip batches",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is "+config.DefaultConfigName+" in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
}

// loadConfig reads the configuration and applies the logging flags on top
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Log.Debug = true
	}
	if json, _ := cmd.Flags().GetBool("json"); json {
		cfg.Log.JSON = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the logger writing to output (logger.Stdout or logger.Stderr)
func newLogger(cfg *config.Config, output string) (*zap.Logger, error) {
	l, err := logger.NewWithOutput(cfg.Log.JSON, cfg.Log.Debug, output)
	if err != nil {
		return nil, fmt.Errorf("creating a logger: %w", err)
	}
	return l, nil
}

type components struct {
	agent   *agent.Agent
	files   *ingestion.FileHandler
	release func()
}

// buildComponents wires the agent from cfg; release closes the scorer client
func buildComponents(ctx context.Context, cfg *config.Config, log *zap.Logger) (*components, error) {
	scorer, err := scoring.New(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("creating %s scorer: %w", cfg.Scorer.Backend, err)
	}

	files := ingestion.NewFileHandler(cfg.Paths.UploadsDir)

	store := history.NewStore(cfg.Paths.DataDir, log)
	store.Load()

	a := agent.New(agent.Options{
		Extractor:     ingestion.NewDocumentExtractor(),
		Scorer:        scorer,
		BasicScorer:   scoring.NewSimilarityScorer(cfg.Similarity.Command, log),
		Expander:      ingestion.NewArchiveExpander(files, log),
		Reports:       export.NewReportWriter(cfg.Paths.OutputDir, cfg.Paths.DataDir),
		History:       store,
		Logger:        log,
		ScorerTimeout: cfg.Scorer.Timeout,
	})

	return &components{
		agent: a,
		files: files,
		release: func() {
			if c, ok := scorer.(io.Closer); ok {
				if err := c.Close(); err != nil {
					log.Warn("closing scorer client", zap.Error(err))
				}
			}
		},
	}, nil
}
