package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forest-guardian/fmc-pipeline/internal/tasks"
)

func newSubmitMessageCommand(ctx *commandContext) *cobra.Command {
	var datasetID, queueURL string

	cmd := &cobra.Command{
		Use:   "submit-message",
		Short: "Send a dataset identifier to an SQS queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.sqsClient(cmd.Context())
			if err != nil {
				return err
			}
			messageID, err := tasks.Submit(cmd.Context(), client, queueURL, datasetID)
			if err != nil {
				return err
			}
			ctx.logger.Info("message submitted", zap.String("dataset_id", datasetID), zap.String("message_id", messageID))
			fmt.Fprintln(cmd.OutOrStdout(), messageID)
			return nil
		},
	}
	cmd.Flags().StringVar(&datasetID, "dataset-uuid", "", "Source dataset identifier")
	cmd.Flags().StringVar(&queueURL, "queue-url", "", "SQS queue URL")
	_ = cmd.MarkFlagRequired("dataset-uuid")
	_ = cmd.MarkFlagRequired("queue-url")
	return cmd
}
