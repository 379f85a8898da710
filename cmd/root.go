package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "fmc-pipeline",
		Short:         "Fuel moisture content pipeline for Sentinel-2 ARD",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !ctx.quiet {
				printBanner(cmd.ErrOrStderr())
			}
			return ctx.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&ctx.debug, "debug", false, "Log at debug level to the console")
	flags.BoolVar(&ctx.quiet, "quiet", false, "Do not print the banner")
	flags.BoolVar(&ctx.progress, "progress", false, "Show a progress bar while processing")
	flags.StringVar(&ctx.report, "report", "", "Write a CSV run report to this URI")
	flags.StringVar(&ctx.scratchDir, "scratch-dir", "", "Directory for per-dataset scratch files")

	rootCmd.AddCommand(newRunSingleCommand(ctx))
	rootCmd.AddCommand(newRunFromFileCommand(ctx))
	rootCmd.AddCommand(newRunFromSQSCommand(ctx))
	rootCmd.AddCommand(newSubmitMessageCommand(ctx))

	return rootCmd
}
