package cli

import (
	"context"
	"fmt"

	"aligncv/internal/common"
	"aligncv/internal/types"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [resume-file] [job-description-file]",
	Short: "Score how well a resume matches a job description",
	Long: `Score a resume against a job description. Input files may be PDF,
DOCX or plain text.

The report includes:
- Match percentage from semantic (embedding) or lexical (TF-IDF) similarity
- Experience gap and role mismatch warnings
- Keywords from the job description missing in the resume`,
	Args: cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		resolveOutput(cmd, &analyzeConfig)
		if !cmd.Flags().Changed("min-match") {
			analyzeMinMatch = getConfigFromContext(cmd.Context()).Matching.DefaultMinMatch
		}
		return common.ValidateFraction("--min-match", analyzeMinMatch)
	},
	RunE: runAnalyze,
}

var (
	analyzeConfig   common.CommandConfig
	analyzeMinMatch float64
)

func init() {
	addOutputFlags(analyzeCmd, &analyzeConfig)
	analyzeCmd.Flags().Float64Var(&analyzeMinMatch, "min-match", 0.40, "Warn when similarity is below this fraction (0-1)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	logger := getLoggerFromContext(cmd.Context())

	components, err := buildComponents(cmd)
	if err != nil {
		return err
	}

	analyze := func(ctx context.Context, contents []string) (types.AnalyzeOutput, error) {
		if len(contents) != 2 {
			return types.AnalyzeOutput{}, fmt.Errorf("expected 2 file paths, got %d", len(contents))
		}
		logger.Info("Starting resume analysis",
			"resume_chars", len(contents[0]),
			"job_chars", len(contents[1]),
			"min_match", analyzeMinMatch,
			"output_format", analyzeConfig.OutputFormat)

		report := components.Analyzer.Analyze(ctx, contents[0], contents[1], analyzeMinMatch)
		return types.NewAnalyzeOutput(report, nil), nil
	}

	if err := common.RunFileCommand(cmd.Context(), logger, analyzeConfig, args, analyze); err != nil {
		return fmt.Errorf("failed to analyze resume: %w", err)
	}
	logger.Info("Resume analysis completed successfully")
	return nil
}
