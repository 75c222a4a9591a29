package commands

import (
	"github.com/mosaicnetworks/nodekit/src/config"
	"github.com/spf13/cobra"
)

var (
	_config = config.NewDefaultConfig()
)

//RootCmd is the root command for nodekit
var RootCmd = &cobra.Command{
	Use:   "nodekit",
	Short: "protocol nodes speaking JSON over stdin/stdout",
	Long: `nodekit runs a single protocol node. The node reads one JSON envelope
per line on stdin and writes its replies, one per line, on stdout. Logs go to
stderr.`,
	TraverseChildren: true,
}
