// Package echo answers every echo request with its own payload.
package echo

import (
	"context"

	"github.com/mosaicnetworks/nodekit/src/common"
	"github.com/mosaicnetworks/nodekit/src/config"
	"github.com/mosaicnetworks/nodekit/src/net"
	"github.com/mosaicnetworks/nodekit/src/node"
)

// Message types.
const (
	TypeEcho   = "echo"
	TypeEchoOk = "echo_ok"
)

// Register adds the echo handler to r.
func Register(r *node.Registry[struct{}]) {
	r.RegisterFunc(TypeEcho, handleEcho)
}

// New returns an echo node.
func New(conf *config.Config, trans net.Transport) *node.Node[struct{}] {
	r := node.NewRegistry[struct{}]()
	Register(r)
	return node.NewNode(conf, trans, struct{}{}, r)
}

func handleEcho(ctx context.Context, n *node.Node[struct{}], env *net.Envelope) error {
	payload, ok := env.Body["echo"]
	if !ok {
		return common.NewNodeErr(TypeEcho, common.InvalidPayload, "missing echo")
	}
	return n.Reply(env, TypeEchoOk, net.Body{"echo": payload})
}
