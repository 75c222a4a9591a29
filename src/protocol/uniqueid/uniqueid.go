// Package uniqueid hands out globally unique ids without coordination between
// nodes, using random (version 4) UUIDs.
package uniqueid

import (
	"context"

	"github.com/mosaicnetworks/nodekit/src/config"
	"github.com/mosaicnetworks/nodekit/src/net"
	"github.com/mosaicnetworks/nodekit/src/node"
	uuid "github.com/satori/go.uuid"
)

// Message types.
const (
	TypeGenerate   = "generate"
	TypeGenerateOk = "generate_ok"
)

// Register adds the generate handler to r.
func Register(r *node.Registry[struct{}]) {
	r.RegisterFunc(TypeGenerate, handleGenerate)
}

// New returns a unique-id node.
func New(conf *config.Config, trans net.Transport) *node.Node[struct{}] {
	r := node.NewRegistry[struct{}]()
	Register(r)
	return node.NewNode(conf, trans, struct{}{}, r)
}

func handleGenerate(ctx context.Context, n *node.Node[struct{}], env *net.Envelope) error {
	id, err := uuid.NewV4()
	if err != nil {
		return err
	}
	return n.Reply(env, TypeGenerateOk, net.Body{"id": id.String()})
}
