// Package broadcast implements flood broadcast. A node that learns a new value
// stores it, acknowledges it and forwards it to all its peers except the one
// it came from. Forwarding uses SendSync, so values keep being resent to a
// peer until that peer acknowledges them; duplicates are acknowledged and
// dropped.
package broadcast

import (
	"context"

	"github.com/mosaicnetworks/nodekit/src/common"
	"github.com/mosaicnetworks/nodekit/src/config"
	"github.com/mosaicnetworks/nodekit/src/net"
	"github.com/mosaicnetworks/nodekit/src/node"
	"github.com/sirupsen/logrus"
)

// Message types.
const (
	TypeBroadcast   = "broadcast"
	TypeBroadcastOk = "broadcast_ok"
	TypeRead        = "read"
	TypeReadOk      = "read_ok"
)

// Register adds the broadcast and read handlers to r.
func Register(r *node.Registry[Set]) {
	r.RegisterFunc(TypeBroadcast, handleBroadcast)
	r.RegisterFunc(TypeRead, handleRead)
}

// New returns a broadcast node.
func New(conf *config.Config, trans net.Transport) *node.Node[Set] {
	r := node.NewRegistry[Set]()
	Register(r)
	return node.NewNode(conf, trans, NewSet(), r)
}

func handleBroadcast(ctx context.Context, n *node.Node[Set], env *net.Envelope) error {
	message, ok := env.Body.Uint64("message")
	if !ok {
		return common.NewNodeErr(TypeBroadcast, common.InvalidPayload, "message is not a non-negative integer")
	}

	var fresh bool
	n.WithState(func(s *node.NodeState[Set]) {
		fresh = s.Data.Add(message)
	})

	replyErr := n.Reply(env, TypeBroadcastOk, nil)

	if !fresh {
		return replyErr
	}

	body := env.Body.Without(net.FieldMsgID)
	peers := n.Peers(env.Src)

	n.Logger().WithFields(logrus.Fields{
		"node":    n.ID(),
		"message": message,
		"peers":   peers,
	}).Debug("Flooding")

	for _, p := range peers {
		if _, err := n.SendSync(ctx, p, body); err != nil {
			return err
		}
	}

	return replyErr
}

func handleRead(ctx context.Context, n *node.Node[Set], env *net.Envelope) error {
	var messages []uint64
	n.WithState(func(s *node.NodeState[Set]) {
		messages = s.Data.Sorted()
	})
	return n.Reply(env, TypeReadOk, net.Body{"messages": messages})
}
