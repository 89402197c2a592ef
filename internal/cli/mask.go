package cli

import (
	"context"
	"fmt"

	"aligncv/internal/common"
	"aligncv/internal/errors"
	"aligncv/internal/privacy"
	"aligncv/internal/types"

	"github.com/spf13/cobra"
)

var maskCmd = &cobra.Command{
	Use:   "mask [file]",
	Short: "Replace personal data in a document with placeholders",
	Long: `Detect personal data in a document and print the masked text together
with the placeholder map. This is the text the optimize command sends to the
AI model.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		resolveOutput(cmd, &maskConfig)
		return nil
	},
	RunE: runMask,
}

var maskConfig common.CommandConfig

func init() {
	addOutputFlags(maskCmd, &maskConfig)
}

func runMask(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	detector, err := privacy.NewDetector(cfg.Privacy)
	if err != nil {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "Failed to create PII detector", err)
	}
	masker := privacy.NewMasker(detector,
		privacy.WithLanguage(cfg.Privacy.Language),
		privacy.WithMaskLogger(logger))

	mask := func(ctx context.Context, contents []string) (types.MaskOutput, error) {
		result := masker.Mask(ctx, contents[0])
		if result.Degraded {
			logger.Warn("PII detection unavailable, output is not masked", "detector", cfg.Privacy.Detector)
		} else if result.Partial {
			logger.Warn("PII detection partially unavailable, some entity types are not masked",
				"detector", cfg.Privacy.Detector,
				"error", result.Reason.Error())
		}
		return types.NewMaskOutput(result), nil
	}

	if err := common.RunFileCommand(cmd.Context(), logger, maskConfig, args, mask); err != nil {
		return fmt.Errorf("failed to mask document: %w", err)
	}
	return nil
}
