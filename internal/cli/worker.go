package cli

import (
	"aligncv/internal/app"
	"aligncv/internal/errors"
	"aligncv/internal/queue"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process analysis jobs from RabbitMQ",
	Long: `Consume analysis jobs from the configured RabbitMQ queue. Each job names
a resume and a job description in object storage; the worker analyzes them,
optionally optimizes the resume, stores the JSON result under
results/{job id}.json and publishes status updates with routing key
job.{job id}.`,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().Int("workers", 0, "Number of concurrent consumers (default from config)")
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	queueCfg := cfg.Queue
	if n, _ := cmd.Flags().GetInt("workers"); n > 0 {
		queueCfg.Workers = n
	}

	om, err := initObservability(cmd)
	if err != nil {
		return err
	}
	defer shutdownObservability(cmd, om)

	components, err := buildComponents(cmd, app.WithRecorder(om))
	if err != nil {
		return err
	}
	if components.Store == nil {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig,
			"The worker needs a storage backend (storage.backend file or s3)", nil)
	}

	processor := queue.NewProcessor(components.Store, components.Analyzer, components.Optimizer,
		cfg.Matching.DefaultMinMatch, cfg.Matching.DefaultRequiredMatch, logger)

	logger.Info("Starting worker pool",
		"queue", queueCfg.Queue,
		"exchange", queueCfg.Exchange,
		"workers", queueCfg.Workers)
	return queue.NewPool(queueCfg, processor, logger).Run(cmd.Context())
}
