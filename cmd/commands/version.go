package commands

import (
	"fmt"
	"github.com/spf13/cobra"
	"roundbft/node"
)

// VersionCmd ...
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(node.Version)
	},
}
