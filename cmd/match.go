package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/fmuoria/resume-matcher/internal/logger"
	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Score one resume against a job description and print the result as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return match(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("resume", "r", "", "resume file (pdf, docx or txt)")
	matchCmd.Flags().String("jd", "", "job description file")
	matchCmd.Flags().String("jd-text", "", "job description text")
	matchCmd.Flags().Bool("basic", false, "score by text similarity regardless of the configured backend")

	matchCmd.MarkFlagRequired("resume")
	matchCmd.MarkFlagsMutuallyExclusive("jd", "jd-text")
}

func match(cmd *cobra.Command) error {
	resumePath, _ := cmd.Flags().GetString("resume")
	jdPath, _ := cmd.Flags().GetString("jd")
	jdText, _ := cmd.Flags().GetString("jd-text")
	basic, _ := cmd.Flags().GetBool("basic")

	if jdPath == "" && strings.TrimSpace(jdText) == "" {
		return errors.New("a job description is required: pass --jd or --jd-text")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// stdout carries only the JSON result
	log, err := newLogger(cfg, logger.Stderr)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := context.Background()

	c, err := buildComponents(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer c.release()

	if jdPath != "" {
		if jdText, err = c.agent.ExtractDocument(jdPath); err != nil {
			return err
		}
	}

	scorer := c.agent.Scorer()
	if basic {
		scorer = c.agent.BasicScorer()
	}

	resp, err := c.agent.Match(ctx, scorer, resumePath, jdText)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
