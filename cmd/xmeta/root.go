package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string
	var readOnlyFlag bool

	ctx := newCommandContext(&configFlag, &logLevelFlag, &readOnlyFlag)

	rootCmd := &cobra.Command{
		Use:           "xmeta",
		Short:         "Searchable file metadata in extended attributes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&readOnlyFlag, "read-only", false, "Never write extended attributes, not even automatic restores")

	rootCmd.AddCommand(newTagsCommand(ctx))
	rootCmd.AddCommand(newCommonCommand(ctx))
	rootCmd.AddCommand(newRatingCommand(ctx))
	rootCmd.AddCommand(newBackupCommand(ctx))
	rootCmd.AddCommand(newRestoreCommand(ctx))
	rootCmd.AddCommand(newRestoreAllCommand(ctx))
	rootCmd.AddCommand(newSyncCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))

	return rootCmd
}
