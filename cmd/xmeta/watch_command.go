package main

import (
	"context"
	"errors"

	"github.com/mwantia/xmeta"
	"github.com/mwantia/xmeta/data"
	"github.com/mwantia/xmeta/watch"
	"github.com/spf13/cobra"
)

// watchHandler backs up files whose attributes changed and restores files
// that appear without metadata.
type watchHandler struct {
	service *xmeta.Service
}

func (h *watchHandler) OnAttributesChanged(ctx context.Context, path string) error {
	return h.service.BackupMetadata(ctx, path)
}

func (h *watchHandler) OnCreated(ctx context.Context, path string) error {
	_, err := h.service.RestoreMetadata(ctx, path)
	if errors.Is(err, data.ErrNotFound) {
		return nil
	}
	return err
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir>...",
		Short: "Keep the backup store current while files change",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs, err := absolutePaths(args)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			return ctx.withService(cmd.Context(), func(service *xmeta.Service) error {
				watcher, err := watch.NewWatcher(&watchHandler{service: service},
					watch.WithDebounce(cfg.WatchDebounce()),
					watch.WithLogger(ctx.logger))
				if err != nil {
					return err
				}
				defer watcher.Close()

				for _, dir := range dirs {
					if err := watcher.Add(dir); err != nil {
						return err
					}
				}

				ctx.logger.Info("Watching %d directories", len(dirs))
				return watcher.Run(cmd.Context())
			})
		},
	}
}
