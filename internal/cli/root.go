package cli

import (
	"context"

	"aligncv/internal/app"
	"aligncv/internal/common"
	"aligncv/internal/config"
	"aligncv/internal/errors"

	"github.com/spf13/cobra"
)

// Define custom private types for context keys.
type configKeyType struct{}
type loggerKeyType struct{}

// Use variables of these types as the keys.
var configKey = configKeyType{}
var loggerKey = loggerKeyType{}

var rootCmd = &cobra.Command{
	Use:   "aligncv",
	Short: "Match resumes against job descriptions and optimize them with AI",
	Long: `aligncv scores how well a resume matches a job description using
semantic and lexical similarity, experience and role signals, and suggests
missing keywords. It can also rewrite a resume for a job description through
an AI model without sending personal data to it: PII is masked before the
call and restored afterwards.`,
	SilenceUsage: true,
}

func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	// Attach the config and logger to the context, making them available to all subcommands
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

// getConfigFromContext is a helper function to get config from context
func getConfigFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg
	}
	panic("config not found in context") // Should not happen if properly initialized
}

// getLoggerFromContext is a helper function to get logger from context
func getLoggerFromContext(ctx context.Context) *errors.Logger {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok {
		return logger
	}
	panic("logger not found in context") // Should not happen if properly initialized
}

// addOutputFlags registers --output and --format on a file command
func addOutputFlags(cmd *cobra.Command, cmdConfig *common.CommandConfig) {
	cmd.Flags().StringVarP(&cmdConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&cmdConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return common.NewOutputHandler(nil).GetSupportedFormats(), cobra.ShellCompDirectiveNoFileComp
	})
}

// resolveOutput applies the configured default format and supported formats
func resolveOutput(cmd *cobra.Command, cmdConfig *common.CommandConfig) {
	cfg := getConfigFromContext(cmd.Context())
	cmdConfig.OutputFormat = common.ResolveFormat(cmdConfig.OutputFormat, cfg.App.DefaultFormat)
	cmdConfig.SupportedFormats = cfg.App.SupportedFormats
}

// buildComponents assembles the analyzer, masker and optimizer from config
func buildComponents(cmd *cobra.Command, opts ...app.Option) (*app.Components, error) {
	return app.Build(cmd.Context(), getConfigFromContext(cmd.Context()), getLoggerFromContext(cmd.Context()), opts...)
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(maskCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(versionCmd)
}
