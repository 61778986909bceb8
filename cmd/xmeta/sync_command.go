package main

import (
	"fmt"

	"github.com/mwantia/xmeta"
	"github.com/spf13/cobra"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var aggressive bool

	cmd := &cobra.Command{
		Use:   "sync <source> <target>...",
		Short: "Copy tags and rating from the source to every target",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absolutePaths(args)
			if err != nil {
				return err
			}
			return ctx.withService(cmd.Context(), func(service *xmeta.Service) error {
				report, err := service.Sync(cmd.Context(), paths, aggressive)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "tags=%v rating=%s\n", report.Tags.Strings(), report.Rating)
				for _, path := range paths {
					if err := report.Results[path]; err != nil {
						fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", path, err)
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: synced\n", path)
				}
				if failed := report.Failed(); failed > 0 {
					return fmt.Errorf("%d of %d locations failed", failed, len(paths))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&aggressive, "aggressive", false, "Restore the source from the backup store when it lacks tags or rating")

	return cmd
}
