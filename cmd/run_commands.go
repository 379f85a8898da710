package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest-guardian/fmc-pipeline/internal/storage"
	"github.com/forest-guardian/fmc-pipeline/internal/tasks"
)

// One message is held at a time, hidden for longer than a dataset takes to process.
const (
	defaultMaxMessages       = 1
	defaultVisibilityTimeout = 2 * time.Hour
)

// runBatch drains source through a freshly wired processor. Per-dataset failures are
// reported in the summary and do not fail the command.
func runBatch(cmd *cobra.Command, ctx *commandContext, source tasks.Source, cfgURI string, overwrite bool) error {
	defer source.Close()
	defer ctx.close()

	processor, err := ctx.newProcessor(cmd.Context(), cfgURI, overwrite)
	if err != nil {
		return err
	}
	summary, err := processor.RunBatch(cmd.Context(), source, ctx.batchOptions())
	fmt.Fprintln(cmd.OutOrStdout(), summary.String())
	return err
}

func newRunSingleCommand(ctx *commandContext) *cobra.Command {
	var datasetID, cfgURI string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "run-single",
		Short: "Process one dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, ok := tasks.ExtractDatasetID(datasetID)
			if !ok {
				return fmt.Errorf("%q is not a dataset uuid", datasetID)
			}
			return runBatch(cmd, ctx, tasks.NewSingle(id), cfgURI, overwrite)
		},
	}
	cmd.Flags().StringVar(&datasetID, "dataset-uuid", "", "Source dataset identifier")
	cmd.Flags().StringVar(&cfgURI, "process-cfg-url", "", "URI of the process configuration YAML")
	cmd.Flags().BoolVar(&overwrite, "overwrite", true, "Reprocess datasets whose output already exists")
	_ = cmd.MarkFlagRequired("dataset-uuid")
	_ = cmd.MarkFlagRequired("process-cfg-url")
	return cmd
}

func newRunFromFileCommand(ctx *commandContext) *cobra.Command {
	var fileURI, cfgURI string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "run-from-file",
		Short: "Process every dataset identifier listed one per line in a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.NewDefault(cmd.Context(), ctx.clientConfig(false))
			if err != nil {
				return err
			}
			source, err := tasks.NewRemoteFile(cmd.Context(), store, fileURI, ctx.logger)
			if err != nil {
				return err
			}
			return runBatch(cmd, ctx, source, cfgURI, overwrite)
		},
	}
	cmd.Flags().StringVar(&fileURI, "s3-txt-file", "", "URI of the identifier list")
	cmd.Flags().StringVar(&cfgURI, "process-cfg-url", "", "URI of the process configuration YAML")
	cmd.Flags().BoolVar(&overwrite, "overwrite", true, "Reprocess datasets whose output already exists")
	_ = cmd.MarkFlagRequired("s3-txt-file")
	_ = cmd.MarkFlagRequired("process-cfg-url")
	return cmd
}

func newRunFromSQSCommand(ctx *commandContext) *cobra.Command {
	var queueURL, cfgURI string
	var overwrite bool
	var maxEmptyPolls int
	var maxMessages int32
	var visibilityTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "run-from-sqs",
		Short: "Process dataset identifiers from an SQS queue until it stays empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.sqsClient(cmd.Context())
			if err != nil {
				return err
			}
			queue := tasks.NewQueue(client, tasks.QueueOptions{
				URL:               queueURL,
				MaxMessages:       maxMessages,
				VisibilityTimeout: visibilityTimeout,
				MaxEmptyPolls:     maxEmptyPolls,
				Logger:            ctx.logger,
			})
			return runBatch(cmd, ctx, queue, cfgURI, overwrite)
		},
	}
	cmd.Flags().StringVar(&queueURL, "queue-url", "", "SQS queue URL")
	cmd.Flags().StringVar(&cfgURI, "process-cfg-url", "", "URI of the process configuration YAML")
	cmd.Flags().BoolVar(&overwrite, "overwrite", true, "Reprocess datasets whose output already exists")
	cmd.Flags().IntVar(&maxEmptyPolls, "max-empty-polls", tasks.DefaultMaxEmptyPolls, "Stop after this many consecutive empty polls")
	cmd.Flags().Int32Var(&maxMessages, "max-messages", defaultMaxMessages, "Messages received per poll (1-10)")
	cmd.Flags().DurationVar(&visibilityTimeout, "visibility-timeout", defaultVisibilityTimeout, "How long a received message stays hidden from other consumers")
	_ = cmd.MarkFlagRequired("queue-url")
	_ = cmd.MarkFlagRequired("process-cfg-url")
	return cmd
}
