package node

import (
	"context"

	"github.com/mosaicnetworks/nodekit/src/common"
	"github.com/mosaicnetworks/nodekit/src/net"
	"github.com/sirupsen/logrus"
)

// Types handled by every node.
const (
	TypeInit       = "init"
	TypeInitOk     = "init_ok"
	TypeTopology   = "topology"
	TypeTopologyOk = "topology_ok"
)

// handleInit assigns the node id and seeds the topology with node_ids. The id
// is only assigned once; later init messages leave the state untouched but
// are still acknowledged.
func handleInit[T any](ctx context.Context, n *Node[T], env *net.Envelope) error {
	var err error
	var assigned bool

	n.WithState(func(s *NodeState[T]) {
		if s.ID() != "" {
			return
		}

		id, ok := env.Body.String("node_id")
		if !ok || id == "" {
			err = common.NewNodeErr(TypeInit, common.InvalidPayload, "missing node_id")
			return
		}

		assigned = s.SetID(id)

		if ids, ok := env.Body.Strings("node_ids"); ok {
			s.MergeTopology(ids)
		}
	})

	if err != nil {
		return err
	}

	if assigned {
		n.logger.WithFields(logrus.Fields{
			"node":     n.ID(),
			"topology": n.Topology(),
		}).Info("Initialised")
	} else {
		n.logger.WithField("node", n.ID()).Debug("Ignoring repeated init")
	}

	return n.Reply(env, TypeInitOk, nil)
}

// handleTopology merges the keys of the topology object into the known peers.
func handleTopology[T any](ctx context.Context, n *Node[T], env *net.Envelope) error {
	ids, ok := env.Body.Keys("topology")
	if !ok {
		return common.NewNodeErr(TypeTopology, common.InvalidPayload, "topology is not an object")
	}

	var added int
	n.WithState(func(s *NodeState[T]) {
		added = s.MergeTopology(ids)
	})

	n.logger.WithFields(logrus.Fields{
		"node":  n.ID(),
		"added": added,
	}).Debug("Topology merged")

	return n.Reply(env, TypeTopologyOk, nil)
}
