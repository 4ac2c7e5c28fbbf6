package cmd

import (
	"path/filepath"

	"github.com/dragonhoard/dragon/pkg/model"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"
)

var caveAdd = &cobra.Command{
	Use:   "add",
	Short: "Register a cave",
	Long: `Register a storage location as a cave of the hoard.

The cave gets a stable generated id; its mounted path is recorded in the
configuration file, along with an empty policy to be filled with
"dragon policy set".`,
	Example: `% dragon cave add --name nas --path /mnt/nas/hoard --type backup --min-copies 2`,
	Run: func(cmd *cobra.Command, args []string) {
		if _, found := config.cave(dragonFlags.cave.Name); found {
			wrapFatalWithCodef(1, "cave %q is already registered", dragonFlags.cave.Name)
			return
		}
		mount, err := filepath.Abs(dragonFlags.cave.Path)
		if err != nil {
			wrapFatalln("resolve cave path", err)
			return
		}
		descr := model.CaveDescriptor{
			ID:        ksuid.New().String(),
			Name:      dragonFlags.cave.Name,
			MountPath: mount,
			Type:      model.CaveType(dragonFlags.cave.CaveType),
			MinCopies: dragonFlags.cave.MinCopies,
		}
		config.Caves = append(config.Caves, CaveConfig{CaveDescriptor: descr})
		if err := config.save(); err != nil {
			wrapFatalln("save configuration", err)
			return
		}
		infoLogger.Printf("registered cave %s (%s) at %s", descr.Name, descr.ID, descr.MountPath)
	},
}

func init() {
	addCaveNameFlag(caveAdd)
	addCavePathFlag(caveAdd)
	addCaveTypeFlag(caveAdd)
	addMinCopiesFlag(caveAdd)
	caveCmd.AddCommand(caveAdd)
}
