package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mwantia/xmeta"
	"github.com/mwantia/xmeta/data"
	"github.com/spf13/cobra"
)

func newTagsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Read and edit the user tags of a file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <file>",
		Short: "Print the user tags of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absolutePaths(args)
			if err != nil {
				return err
			}
			return ctx.withService(cmd.Context(), func(service *xmeta.Service) error {
				set, err := service.GetUserTags(cmd.Context(), paths[0])
				if errors.Is(err, data.ErrNoData) {
					return nil
				}
				if err != nil {
					return err
				}
				for _, tag := range set {
					fmt.Fprintln(cmd.OutOrStdout(), tag)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(newTagsEditCommand(ctx, "set", "Replace the user tags of a file", (*xmeta.Service).SetUserTags))
	cmd.AddCommand(newTagsEditCommand(ctx, "add", "Add user tags to a file", (*xmeta.Service).AddUserTags))
	cmd.AddCommand(newTagsEditCommand(ctx, "clear", "Remove user tags from a file", (*xmeta.Service).ClearUserTags))

	return cmd
}

type tagsEdit func(s *xmeta.Service, ctx context.Context, location string, tags []string) (data.Result, error)

func newTagsEditCommand(ctx *commandContext, use, short string, edit tagsEdit) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <file> [tag...]",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absolutePaths(args[:1])
			if err != nil {
				return err
			}
			return ctx.withService(cmd.Context(), func(service *xmeta.Service) error {
				result, err := edit(service, cmd.Context(), paths[0], args[1:])
				if err != nil {
					return err
				}
				printResult(cmd, paths[0], result)
				return nil
			})
		},
	}
}

func newCommonCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "common",
		Short: "Read and edit the tags shared by several files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <file>...",
		Short: "Print the tags every file carries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absolutePaths(args)
			if err != nil {
				return err
			}
			return ctx.withService(cmd.Context(), func(service *xmeta.Service) error {
				snapshot, err := service.GetCommonUserTags(cmd.Context(), paths)
				if err != nil {
					return err
				}
				for _, tag := range snapshot.Shared {
					fmt.Fprintln(cmd.OutOrStdout(), tag)
				}
				return nil
			})
		},
	})

	var tagList string
	setCmd := &cobra.Command{
		Use:   "set --tags a,b <file>...",
		Short: "Replace the shared tags of every file, keeping their own tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absolutePaths(args)
			if err != nil {
				return err
			}
			return ctx.withService(cmd.Context(), func(service *xmeta.Service) error {
				snapshot, err := service.GetCommonUserTags(cmd.Context(), paths)
				if err != nil {
					return err
				}
				result, err := service.SetCommonUserTags(cmd.Context(), paths, snapshot, splitList(tagList))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d files: %s\n", len(paths), result)
				return nil
			})
		},
	}
	setCmd.Flags().StringVar(&tagList, "tags", "", "Comma separated shared tags")
	cmd.AddCommand(setCmd)

	return cmd
}

func printResult(cmd *cobra.Command, location string, result data.Result) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", location, result)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
