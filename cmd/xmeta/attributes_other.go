//go:build !linux && !darwin

package main

import (
	"fmt"
	"runtime"

	"github.com/mwantia/xmeta/attr"
	"github.com/mwantia/xmeta/config"
	"github.com/mwantia/xmeta/data"
	"github.com/mwantia/xmeta/log"
)

func newAttributeStore(cfg *config.Config, logger *log.Logger) (attr.IdentifyingStore, error) {
	return nil, fmt.Errorf("%w: extended attributes on %s", data.ErrUnsupported, runtime.GOOS)
}
