package common

import (
	"context"

	"aligncv/internal/errors"
)

// OperationFunc runs a command's operation on the text read from its input files.
type OperationFunc[Output any] func(ctx context.Context, contents []string) (Output, error)

// RunFileCommand encapsulates the common logic for file-based CLI commands:
// read and extract every input file, run the operation, write the formatted
// output.
func RunFileCommand[Output any](
	ctx context.Context,
	logger *errors.Logger,
	cmdConfig CommandConfig,
	args []string,
	operation OperationFunc[Output],
) error {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	fileProcessor := NewFileProcessor(logger)
	outputHandler := NewOutputHandler(logger)

	if err := ValidateOutputFormat(cmdConfig.OutputFormat, cmdConfig.SupportedFormats); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidFormat, err.Error(), nil)
	}

	contents, err := fileProcessor.ValidateAndReadFiles(args...)
	if err != nil {
		return err
	}

	logger.Debug("Input files read", "files", args, "format", cmdConfig.OutputFormat)

	result, err := operation(ctx, contents)
	if err != nil {
		return err
	}

	return outputHandler.HandleOutput(result, cmdConfig)
}
