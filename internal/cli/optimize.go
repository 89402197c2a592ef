package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"aligncv/internal/common"
	"aligncv/internal/optimize"
	"aligncv/internal/types"

	"github.com/spf13/cobra"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize [resume-file] [job-description-file]",
	Short: "Rewrite a resume for a job description with AI",
	Long: `Rewrite a resume so it better matches a job description.

The resume must already reach the required match percentage. Personal data
(emails, phone numbers, URLs and similar) is replaced by placeholders before
the AI call and restored in the result. Requires an AI API key
(ALIGNCV_AI_APIKEY, GEMINI_API_KEY or GOOGLE_API_KEY).`,
	Args: cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		resolveOutput(cmd, &optimizeConfig)
		if !cmd.Flags().Changed("required-match") {
			optimizeRequiredMatch = getConfigFromContext(cmd.Context()).Matching.DefaultRequiredMatch
		}
		return common.ValidateFraction("--required-match", optimizeRequiredMatch)
	},
	RunE: runOptimize,
}

var (
	optimizeConfig        common.CommandConfig
	optimizeRequiredMatch float64
)

func init() {
	addOutputFlags(optimizeCmd, &optimizeConfig)
	optimizeCmd.Flags().Float64Var(&optimizeRequiredMatch, "required-match", 0.40, "Minimum match fraction (0-1) before optimizing")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	logger := getLoggerFromContext(cmd.Context())

	components, err := buildComponents(cmd)
	if err != nil {
		return err
	}

	run := func(ctx context.Context, contents []string) (types.OptimizeOutput, error) {
		if len(contents) != 2 {
			return types.OptimizeOutput{}, fmt.Errorf("expected 2 file paths, got %d", len(contents))
		}
		logger.Info("Starting resume optimization",
			"resume_chars", len(contents[0]),
			"job_chars", len(contents[1]),
			"required_match", optimizeRequiredMatch)

		result, err := components.Optimizer.Optimize(ctx, optimize.Request{
			Resume:        contents[0],
			JD:            contents[1],
			RequiredMatch: optimizeRequiredMatch,
			FileName:      filepath.Base(args[0]),
		})
		if err != nil {
			return types.OptimizeOutput{}, err
		}
		return types.NewOptimizeOutput(result, ""), nil
	}

	if err := common.RunFileCommand(cmd.Context(), logger, optimizeConfig, args, run); err != nil {
		return fmt.Errorf("failed to optimize resume: %w", err)
	}
	logger.Info("Resume optimization completed successfully")
	return nil
}
