// Package gcounter implements a grow-only counter replicated by every node.
//
// An addition received from a client is identified by the fingerprint of its
// envelope. The node applies it once, acknowledges it, and forwards it to all
// its peers with the fingerprint in the "hash" field, so that every replica
// recognises the same addition however many times it is delivered.
package gcounter

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
	TypeAdd    = "add"
	TypeAddOk  = "add_ok"
	TypeRead   = "read"
	TypeReadOk = "read_ok"
)

// FieldHash carries the fingerprint of a replicated addition.
const FieldHash = "hash"

// Register adds the add and read handlers to r.
func Register(r *node.Registry[Counter]) {
	r.RegisterFunc(TypeAdd, handleAdd)
	r.RegisterFunc(TypeRead, handleRead)
}

// New returns a counter node.
func New(conf *config.Config, trans net.Transport) *node.Node[Counter] {
	r := node.NewRegistry[Counter]()
	Register(r)
	return node.NewNode(conf, trans, NewCounter(), r)
}

func handleAdd(ctx context.Context, n *node.Node[Counter], env *net.Envelope) error {
	delta, ok := env.Body.Uint64("delta")
	if !ok {
		return common.NewNodeErr(TypeAdd, common.InvalidPayload, "delta is not a non-negative integer")
	}

	fingerprint, ok := env.Body.String(FieldHash)
	if !ok {
		var err error
		if fingerprint, err = net.Fingerprint(env); err != nil {
			return err
		}
	}

	var applied bool
	var value uint64
	n.WithState(func(s *node.NodeState[Counter]) {
		applied = s.Data.Apply(fingerprint, delta)
		value = s.Data.Value
	})

	replyErr := n.Reply(env, TypeAddOk, nil)

	if !applied {
		return replyErr
	}

	peers := n.Peers()

	n.Logger().WithFields(logrus.Fields{
		"node":  n.ID(),
		"delta": delta,
		"value": value,
		"peers": peers,
	}).Debug("Applied")

	body := net.Body{
		net.FieldType: TypeAdd,
		"delta":       delta,
		FieldHash:     fingerprint,
	}
	for _, p := range peers {
		if _, err := n.SendSync(ctx, p, body); err != nil {
			return err
		}
	}

	return replyErr
}

func handleRead(ctx context.Context, n *node.Node[Counter], env *net.Envelope) error {
	var value uint64
	n.WithState(func(s *node.NodeState[Counter]) {
		value = s.Data.Value
	})
	return n.Reply(env, TypeReadOk, net.Body{"value": value})
}
