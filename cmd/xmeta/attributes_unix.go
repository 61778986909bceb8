//go:build linux || darwin

package main

import (
	"github.com/mwantia/xmeta/attr"
	"github.com/mwantia/xmeta/attr/local"
	"github.com/mwantia/xmeta/config"
	"github.com/mwantia/xmeta/log"
)

func newAttributeStore(cfg *config.Config, logger *log.Logger) (attr.IdentifyingStore, error) {
	options := []local.LocalOption{local.WithLogger(logger)}
	if cfg.Attributes.TouchModifyTime {
		options = append(options, local.WithTouchModifyTime())
	}
	return local.NewLocalStore(options...)
}
