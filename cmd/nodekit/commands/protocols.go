package commands

import (
	"github.com/mosaicnetworks/nodekit/src/config"
	"github.com/mosaicnetworks/nodekit/src/net"
	"github.com/mosaicnetworks/nodekit/src/protocol/broadcast"
	"github.com/mosaicnetworks/nodekit/src/protocol/echo"
	"github.com/mosaicnetworks/nodekit/src/protocol/gcounter"
	"github.com/mosaicnetworks/nodekit/src/protocol/uniqueid"
	"github.com/spf13/cobra"
)

//NewEchoCmd returns the command that runs an echo node
func NewEchoCmd() *cobra.Command {
	return newProtocolCmd("echo", "Run an echo node",
		func(conf *config.Config, trans net.Transport) runner {
			return echo.New(conf, trans)
		})
}

//NewUniqueIDsCmd returns the command that runs a unique-id node
func NewUniqueIDsCmd() *cobra.Command {
	return newProtocolCmd("unique-ids", "Run a unique id generation node",
		func(conf *config.Config, trans net.Transport) runner {
			return uniqueid.New(conf, trans)
		})
}

//NewBroadcastCmd returns the command that runs a flood broadcast node
func NewBroadcastCmd() *cobra.Command {
	return newProtocolCmd("broadcast", "Run a flood broadcast node",
		func(conf *config.Config, trans net.Transport) runner {
			return broadcast.New(conf, trans)
		})
}

//NewGCounterCmd returns the command that runs a grow-only counter node
func NewGCounterCmd() *cobra.Command {
	return newProtocolCmd("g-counter", "Run a grow-only counter node",
		func(conf *config.Config, trans net.Transport) runner {
			return gcounter.New(conf, trans)
		})
}
