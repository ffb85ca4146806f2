package commands

import (
	"github.com/meshworks/manifold/src/config"
	"github.com/spf13/cobra"
)

var (
	_config = config.NewDefaultConfig()
)

//RootCmd is the root command for Manifold
var RootCmd = &cobra.Command{
	Use:              "manifold",
	Short:            "manifold artifact mesh",
	TraverseChildren: true,
}

func init() {
	RootCmd.AddCommand(
		NewRunCmd(),
		NewVersionCmd(),
	)
}
