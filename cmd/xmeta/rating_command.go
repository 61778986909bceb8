package main

import (
	"fmt"
	"strconv"

	"github.com/mwantia/xmeta"
	"github.com/mwantia/xmeta/data"
	"github.com/spf13/cobra"
)

func newRatingCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rating",
		Short: "Read and edit the star rating of a file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <file>",
		Short: "Print the rating of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absolutePaths(args)
			if err != nil {
				return err
			}
			return ctx.withService(cmd.Context(), func(service *xmeta.Service) error {
				r, err := service.GetRating(cmd.Context(), paths[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), r)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <file> <0-5>",
		Short: "Rate a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid rating %q: %w", args[1], err)
			}
			return setRating(ctx, cmd, args[0], data.NewRating(value))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "unset <file>",
		Short: "Remove the rating of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setRating(ctx, cmd, args[0], data.Unset)
		},
	})

	return cmd
}

func setRating(ctx *commandContext, cmd *cobra.Command, location string, r data.Rating) error {
	paths, err := absolutePaths([]string{location})
	if err != nil {
		return err
	}
	return ctx.withService(cmd.Context(), func(service *xmeta.Service) error {
		result, err := service.SetRating(cmd.Context(), paths[0], r)
		if err != nil {
			return err
		}
		printResult(cmd, paths[0], result)
		return nil
	})
}
