package main

import (
	"fmt"

	"github.com/mwantia/xmeta"
	"github.com/mwantia/xmeta/backup"
	"github.com/spf13/cobra"
)

func newBackupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "backup <file>...",
		Short: "Record the current metadata of files in the backup store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absolutePaths(args)
			if err != nil {
				return err
			}
			return ctx.withService(cmd.Context(), func(service *xmeta.Service) error {
				for _, path := range paths {
					if err := service.BackupMetadata(cmd.Context(), path); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: backed up\n", path)
				}
				return nil
			})
		},
	}
}

func newRestoreCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <file>...",
		Short: "Restore missing metadata of files from the backup store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absolutePaths(args)
			if err != nil {
				return err
			}
			return ctx.withService(cmd.Context(), func(service *xmeta.Service) error {
				for _, path := range paths {
					result, err := service.RestoreMetadata(cmd.Context(), path)
					if err != nil {
						return err
					}
					printResult(cmd, path, result)
				}
				return nil
			})
		},
	}
}

func newRestoreAllCommand(ctx *commandContext) *cobra.Command {
	var prefix string
	var limit int

	cmd := &cobra.Command{
		Use:   "restore-all",
		Short: "Restore missing metadata of every file in the backup store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := &backup.Query{Limit: limit}
			if prefix != "" {
				paths, err := absolutePaths([]string{prefix})
				if err != nil {
					return err
				}
				query.PathPrefix = paths[0]
			}

			return ctx.withService(cmd.Context(), func(service *xmeta.Service) error {
				pass, err := service.RestoreAllOnBackgroundThread(query)
				if err != nil {
					return err
				}

				report, err := pass.Wait(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pass %s %s: %s\n", pass.ID, pass.State(), report)
				return report.Err
			})
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Only restore files below this path")
	cmd.Flags().IntVar(&limit, "limit", 0, "Restore at most this many files")

	return cmd
}
