package cmd

import (
	"os"

	"github.com/dragonhoard/dragon/pkg/catalog"
	"github.com/dragonhoard/dragon/pkg/core"
	"github.com/dragonhoard/dragon/pkg/dlogger"
	"github.com/dragonhoard/dragon/pkg/storage/localfs"
)

// newHoard assembles the engine from the CLI configuration: it opens the
// catalog and registers every configured cave over its mounted tree.
// The returned closer releases the catalog.
func newHoard() (*core.Hoard, func(), error) {
	logger, err := dlogger.GetConsoleLogger(dragonFlags.root.logLevel, os.Stderr)
	if err != nil {
		return nil, nil, err
	}

	cat, err := catalog.New(config.Catalog, catalog.Logger(logger))
	if err != nil {
		return nil, nil, err
	}

	opts := []core.Option{core.Logger(logger)}
	if dragonFlags.push.ChunkSize > 0 {
		opts = append(opts, core.ChunkSize(dragonFlags.push.ChunkSize))
	}
	hoard := core.New(cat, opts...)

	for _, cave := range config.Caves {
		if err := hoard.AddCave(cave.CaveDescriptor, localfs.NewAtRoot(cave.MountPath), cave.Rules); err != nil {
			_ = cat.Close()
			return nil, nil, err
		}
	}
	closer := func() {
		_ = cat.Close()
	}
	return hoard, closer, nil
}
